// Package verification persists single-use, purpose-scoped, time-limited
// tokens for out-of-band confirmation flows: email verification, password
// reset, and email change.
//
// Consumption is atomic: the consumed flag flips in the same optimistic
// transaction as the lookup, so a token presented twice concurrently is
// honored exactly once. Issuing a new token for a subject+purpose supersedes
// the previous one, and records store secret digests, never raw secrets.
package verification
