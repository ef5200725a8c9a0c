// Package api implements the HTTP API for running and reviewing
// recommendation runs.
package api

// contextKey is a private type for context values to avoid collisions.
type contextKey string

const (
	// requestIDKey is the context key for the request ID.
	requestIDKey contextKey = "request_id"
)
