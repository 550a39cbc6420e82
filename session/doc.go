// Package session orchestrates the token lifecycle: login mints an
// access/refresh pair and registers the refresh token, refresh rotates it
// (single use, atomically), logout revokes it. A refresh token moves
// Issued → Active → {Rotated | Revoked | Expired} and never leaves a
// terminal state.
package session
