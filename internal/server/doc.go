// Package server provides the HTTP status and metrics endpoints for the
// capture service.
package server
