package goidentity

import (
	"context"
	"errors"
	"testing"
)

func adminUser() RequestUser {
	return RequestUser{
		SubjectID:   "admin-1",
		Roles:       []string{"admin"},
		Permissions: []string{"user.update", "user.delete"},
	}
}

func TestAuthorize(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	cases := []struct {
		name  string
		user  RequestUser
		guard Guard
		want  error
	}{
		{
			name:  "empty guard admits anyone",
			user:  RequestUser{SubjectID: "s"},
			guard: Guard{},
		},
		{
			name:  "admin passes role management",
			user:  adminUser(),
			guard: GuardRoleManagement,
		},
		{
			name: "developer passes role management",
			user: RequestUser{
				SubjectID:   "dev-1",
				Roles:       []string{"developer"},
				Permissions: []string{"user.update", "deploy.create"},
			},
			guard: GuardRoleManagement,
		},
		{
			name: "viewer lacks the role",
			user: RequestUser{
				SubjectID:   "viewer-1",
				Roles:       []string{"viewer"},
				Permissions: []string{"user.update"},
			},
			guard: GuardRoleManagement,
			want:  ErrInsufficientRole,
		},
		{
			name: "role without the permission",
			user: RequestUser{
				SubjectID: "admin-2",
				Roles:     []string{"admin"},
			},
			guard: GuardRoleManagement,
			want:  ErrInsufficientPermission,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.Authorize(tc.user, tc.guard)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Authorize = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestAssignAndRevokeRole(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	subject := registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")

	if err := engine.AssignRole(ctx, adminUser(), subject.ID, "developer"); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}

	roles, permissions, err := directory.GrantsFor(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GrantsFor failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "developer" {
		t.Fatalf("unexpected roles %v", roles)
	}
	if len(permissions) == 0 {
		t.Fatal("no derived permissions after assignment")
	}

	// Assignment is idempotent.
	if err := engine.AssignRole(ctx, adminUser(), subject.ID, "developer"); err != nil {
		t.Fatalf("repeat AssignRole failed: %v", err)
	}

	if err := engine.RevokeRole(ctx, adminUser(), subject.ID, "developer"); err != nil {
		t.Fatalf("RevokeRole failed: %v", err)
	}
	if err := engine.RevokeRole(ctx, adminUser(), subject.ID, "developer"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestRoleManagementRequiresGuard(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	subject := registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	caller := RequestUser{SubjectID: "viewer-1", Roles: []string{"viewer"}, Permissions: []string{"user.read"}}

	if err := engine.AssignRole(ctx, caller, subject.ID, "admin"); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	if err := engine.RevokeRole(ctx, caller, subject.ID, "admin"); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}

	// Nothing changed behind the denied calls.
	roles, _, err := directory.GrantsFor(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GrantsFor failed: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("denied assignment took effect: %v", roles)
	}
}

func TestRoleChangeVisibleOnNextVerify(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	subject := registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	before, err := engine.Verify(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if before.HasRole("developer") {
		t.Fatal("role held before assignment")
	}

	if err := engine.AssignRole(ctx, adminUser(), subject.ID, "developer"); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}

	// Same token, fresh verification, fresh grants.
	after, err := engine.Verify(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !after.HasRole("developer") {
		t.Fatalf("assigned role not visible: %v", after.Roles)
	}
}

func TestAssignRoleUnknownTargets(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	subject := registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")

	if err := engine.AssignRole(ctx, adminUser(), "ghost", "developer"); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound for unknown subject, got %v", err)
	}
	if err := engine.AssignRole(ctx, adminUser(), subject.ID, "nonexistent-role"); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound for unknown role, got %v", err)
	}
}
