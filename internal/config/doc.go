// Package config provides configuration loading and validation for the
// capture service. It handles the YAML harness configuration as well as the
// string-keyed capture settings resolved against a profile into a typed,
// immutable CaptureConfig at initialization time.
package config
