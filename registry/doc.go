// Package registry tracks live refresh tokens in Redis. An entry maps the
// refresh-token string to its owning subject and carries a TTL equal to the
// token's own lifetime, so revocation is a delete and stale entries evict
// themselves. Rotation is a single Lua script, which is what makes
// "exactly one successful rotation per presented token" hold under
// concurrent refresh calls.
package registry
