// Package session provides Redis-backed session persistence for the
// authentication hot path: one hash per refresh lineage plus a per-subject
// index set.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT interpret signed tokens, evaluate permissions, or enforce
// authentication policy; those responsibilities belong to the Engine.
//
// # Rotation invariant
//
// Rotate is a Lua compare-and-swap on the stored refresh id. Two concurrent
// rotations presenting the same superseded id resolve to exactly one winner;
// the loser observes [ErrStale].
package session
