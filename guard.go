package goidentity

import (
	"errors"

	"github.com/wizardcld/goidentity/rbac"
)

// Guard declares what an operation demands of its caller: at least one of the
// listed roles AND at least one of the listed permission keys. An empty gate
// is vacuously satisfied, so a roles-only guard leaves Permissions nil.
type Guard struct {
	Roles       []string
	Permissions []string
}

// GuardRoleManagement protects role assignment and revocation.
var GuardRoleManagement = Guard{
	Roles:       []string{"admin", "developer"},
	Permissions: []string{rbac.Key("update", "user")},
}

// Authorize evaluates a guard against the caller's held roles and permission
// keys. It is pure apart from the denial counter; no storage is consulted, the
// RequestUser from Verify is the single source of truth for the request.
func (e *Engine) Authorize(user RequestUser, g Guard) error {
	err := rbac.Allow(user.Roles, user.Permissions, rbac.Requirement{
		Roles:       g.Roles,
		Permissions: g.Permissions,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rbac.ErrRoleRequired):
		e.metrics.Inc(MetricAuthorizationDenied)
		return ErrInsufficientRole
	case errors.Is(err, rbac.ErrPermissionRequired):
		e.metrics.Inc(MetricAuthorizationDenied)
		return ErrInsufficientPermission
	default:
		return err
	}
}
