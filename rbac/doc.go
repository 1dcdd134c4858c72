// Package rbac evaluates role- and permission-based access requirements. It
// is pure: no storage, no context, just the caller's held sets against an
// operation's declared [Requirement].
package rbac
