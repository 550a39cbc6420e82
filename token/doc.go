// Package token issues and verifies the signed, time-bounded credentials used
// by the session subsystem: short-lived access tokens and long-lived refresh
// tokens, both HMAC-signed JWTs carrying a subject and expiry.
package token
