// Package token signs and verifies the session token claim set using a
// process-wide HMAC secret and strict validation semantics. An embedded kind
// claim separates access tokens from refresh tokens so neither can stand in
// for the other.
package token
