package rbac

import (
	"errors"
	"sort"
)

var (
	// ErrRoleRequired is returned when the caller holds none of the required
	// roles.
	ErrRoleRequired = errors.New("none of the required roles held")
	// ErrPermissionRequired is returned when the caller holds none of the
	// required permissions.
	ErrPermissionRequired = errors.New("none of the required permissions held")
)

// Requirement is the static guard metadata an operation declares: zero or
// more required role names and zero or more required permission keys. It
// replaces runtime-discovered annotations with an explicit value passed into
// the evaluator.
type Requirement struct {
	Roles       []string
	Permissions []string
}

// Empty reports whether the requirement declares no gates at all, i.e. the
// operation is open to any authenticated caller.
func (r Requirement) Empty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// Allow decides whether a caller holding the given role and permission sets
// passes the requirement. Each gate uses OR semantics: holding at least one
// required entry passes that gate. Both gates must pass when both are
// declared. The two failures are distinguishable so callers can report which
// gate tripped.
func Allow(heldRoles, heldPermissions []string, req Requirement) error {
	if len(req.Roles) > 0 && !holdsAny(heldRoles, req.Roles) {
		return ErrRoleRequired
	}
	if len(req.Permissions) > 0 && !holdsAny(heldPermissions, req.Permissions) {
		return ErrPermissionRequired
	}
	return nil
}

func holdsAny(held, required []string) bool {
	for _, want := range required {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Key builds the canonical permission key for an (action, module) pair,
// e.g. Key("update", "user") == "user.update".
func Key(action, module string) string {
	return module + "." + action
}

// Union computes a subject's effective permission set: the deduplicated union
// of the grants attached to every role the subject holds. Unknown roles
// contribute nothing. The result is sorted for stable comparison.
func Union(grants map[string][]string, roles []string) []string {
	seen := map[string]struct{}{}
	for _, role := range roles {
		for _, perm := range grants[role] {
			seen[perm] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for perm := range seen {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}
