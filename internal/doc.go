// Package internal holds random-material helpers shared by the engine and its
// stores: identifier generation, secret generation and hashing, opaque token
// packing, and numeric one-time codes. Nothing here touches Redis or policy.
package internal
