package goidentity

import "context"

// AssignRole adds a role edge to a subject on behalf of caller. The operation
// is gated by GuardRoleManagement; assigning a role the subject already holds
// succeeds without effect. The change surfaces in sessions on their next
// Verify, outstanding tokens are not revoked.
func (e *Engine) AssignRole(ctx context.Context, caller RequestUser, subjectID, role string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	if err := e.Authorize(caller, GuardRoleManagement); err != nil {
		return err
	}

	if err := e.directory.AssignRole(ctx, subjectID, role); err != nil {
		return err
	}

	e.metrics.Inc(MetricRoleAssigned)
	return nil
}

// RevokeRole removes a role edge from a subject on behalf of caller. Revoking
// an assignment that does not exist fails with ErrAssignmentNotFound.
func (e *Engine) RevokeRole(ctx context.Context, caller RequestUser, subjectID, role string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	if err := e.Authorize(caller, GuardRoleManagement); err != nil {
		return err
	}

	if err := e.directory.RevokeRole(ctx, subjectID, role); err != nil {
		return err
	}

	e.metrics.Inc(MetricRoleRevoked)
	return nil
}
