// Package capture provides the push-driven audio source collaborators:
// an external recorder process reading raw PCM from stdout, and a sine-tone
// generator used when no real capture device is available.
package capture
