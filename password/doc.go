// Package password implements the credential verifier: Argon2id digests in
// PHC string format with constant-time verification.
package password
