// Package goidentity is the authentication and authorization core of a
// multi-tenant identity service: session token issuance, rotation, and
// revocation; single-use purpose-bound verification tokens for out-of-band
// flows; and role/permission gating applied per request.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goidentity is the public surface. It exposes [Engine], [Builder], [Config],
// the [Directory] and [Notifier] collaborator contracts, and value types
// ([RequestUser], [TokenPair], [SubjectRecord]). Token signing, session
// persistence, verification-token persistence, and RBAC evaluation live in the
// token, session, verification, and rbac subpackages respectively.
//
// # What this package must NOT do
//
//   - Persist plain entity records (users, roles, permissions) beyond the
//     fields the core needs; that is the embedder's [Directory].
//   - Deliver email or notifications; delivery goes through [Notifier] and is
//     fire-and-forget from the engine's perspective.
//   - Re-derive an authenticated caller mid-request: [Engine.Verify] computes
//     a [RequestUser] once and callers thread it explicitly.
//
// # Concurrency contract
//
// The session store's rotation and the verification store's consume are the
// only two operations requiring atomicity: both are compare-and-swap shaped,
// so two concurrent refresh attempts with the same refresh token (or two
// consumes of the same verification token) resolve to exactly one winner.
package goidentity
