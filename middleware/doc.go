// Package middleware provides the per-request authentication gate for
// protected routes. It validates the bearer access token statelessly (no
// registry lookup) and attaches the resolved identity to the request
// context.
package middleware
