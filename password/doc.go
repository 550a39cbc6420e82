// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Parameters travel with the hash, so stored hashes keep verifying after the
// service tightens its defaults.
//
// This package owns hashing and verification only. Password policy (minimum
// length) is enforced at the registration boundary.
package password
