package goidentity

import (
	"context"

	"github.com/wizardcld/goidentity/verification"
)

// AccountStatus represents the lifecycle state of a subject.
type AccountStatus uint8

const (
	// StatusUnverified is the state of a freshly registered subject whose
	// email has not been confirmed.
	StatusUnverified AccountStatus = iota
	// StatusActive subjects may log in and act.
	StatusActive
	// StatusSuspended subjects are locked out of every flow.
	StatusSuspended
)

// String returns the stable wire name of the status.
func (s AccountStatus) String() string {
	switch s {
	case StatusUnverified:
		return "unverified"
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Purpose is re-exported from the verification package so embedders only
// implementing [Notifier] need not import it.
type Purpose = verification.Purpose

const (
	// PurposeVerifyEmail is an alias of [verification.PurposeVerifyEmail].
	PurposeVerifyEmail = verification.PurposeVerifyEmail
	// PurposeResetPassword is an alias of [verification.PurposeResetPassword].
	PurposeResetPassword = verification.PurposeResetPassword
	// PurposeChangeEmail is an alias of [verification.PurposeChangeEmail].
	PurposeChangeEmail = verification.PurposeChangeEmail
)

// SubjectRecord is the slice of a user identity this core needs: stable id,
// email, stored digest, lifecycle status. Role names are derived through
// [Directory.GrantsFor], not carried here.
type SubjectRecord struct {
	ID             string
	Email          string
	PasswordDigest string
	Status         AccountStatus
}

// CreateSubjectInput is passed to [Directory.CreateSubject].
type CreateSubjectInput struct {
	Email          string
	PasswordDigest string
	Status         AccountStatus
}

// RegisterInput is the input for [Engine.Register]. Input-shape validation is
// assumed to have happened at the boundary.
type RegisterInput struct {
	Email    string
	Password string
}

// TokenPair is one access/refresh pair bound to a single session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RequestUser is the authenticated caller derived once per request by
// [Engine.Verify]: subject id plus the role names and permission keys held at
// verification time. It is threaded explicitly into downstream calls and
// never re-derived mid-request, so one request sees one consistent view.
type RequestUser struct {
	SubjectID   string
	Roles       []string
	Permissions []string
}

// HasRole reports whether the caller holds the named role.
func (u RequestUser) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether the caller holds the permission key.
func (u RequestUser) HasPermission(key string) bool {
	for _, p := range u.Permissions {
		if p == key {
			return true
		}
	}
	return false
}

// Directory is the entity-store collaborator the embedder must implement. It
// owns persistence of subjects, roles, permissions, and assignment edges; the
// engine only reads the fields it needs and writes through the narrow update
// methods below.
//
// Implementations signal outcomes with this module's sentinel errors:
// [ErrEntityNotFound] for unknown subjects or roles, [ErrDuplicateEmail] when
// an address is already taken, and [ErrAssignmentNotFound] when revoking an
// absent role edge. AssignRole is idempotent: assigning an edge that already
// exists succeeds without effect.
type Directory interface {
	SubjectByEmail(ctx context.Context, email string) (SubjectRecord, error)
	SubjectByID(ctx context.Context, id string) (SubjectRecord, error)
	CreateSubject(ctx context.Context, in CreateSubjectInput) (SubjectRecord, error)
	UpdatePasswordDigest(ctx context.Context, subjectID, digest string) error
	UpdateEmail(ctx context.Context, subjectID, email string) error
	UpdateStatus(ctx context.Context, subjectID string, status AccountStatus) error

	// GrantsFor returns the subject's current role names and effective
	// permission keys (the union across assigned roles).
	GrantsFor(ctx context.Context, subjectID string) (roles []string, permissions []string, err error)

	AssignRole(ctx context.Context, subjectID, role string) error
	RevokeRole(ctx context.Context, subjectID, role string) error
}

// Message is one outbound verification delivery. Code is set only for flows
// that issue a short numeric confirmation code alongside the opaque token.
type Message struct {
	Purpose   Purpose
	Recipient string
	Token     string
	Code      string
}

// Notifier delivers verification material out of band. Delivery is
// fire-and-forget from the engine's perspective: failures are logged, never
// surfaced to the initiating flow.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
