package goidentity

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// password mismatch. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotActive is returned when the subject's lifecycle status does
	// not permit the attempted operation.
	ErrAccountNotActive = errors.New("account not active")
	// ErrAccountAlreadyVerified is returned when resending verification for a
	// subject that is already active.
	ErrAccountAlreadyVerified = errors.New("account already verified")
	// ErrTokenExpired is returned when a session token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens, bad signatures, and
	// tokens of the wrong kind.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenReused is returned when a refresh token is presented after it
	// has already been superseded by a prior rotation.
	ErrTokenReused = errors.New("refresh token reuse detected")
	// ErrSessionRevoked is returned when the session behind a token is no
	// longer active.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrPairMismatch is returned by Refresh when the presented access and
	// refresh tokens do not belong to the same subject and session.
	ErrPairMismatch = errors.New("token pair mismatch")
	// ErrVerificationNotFound is returned when a verification token does not
	// exist or has been superseded by a newer one.
	ErrVerificationNotFound = errors.New("verification token not found")
	// ErrVerificationExpired is returned when a verification token's expiry
	// has passed.
	ErrVerificationExpired = errors.New("verification token expired")
	// ErrVerificationConsumed is returned on a second consume of the same
	// verification token.
	ErrVerificationConsumed = errors.New("verification token already consumed")
	// ErrVerificationPurposeMismatch is returned when a verification token is
	// consumed under a purpose other than the one it was created for.
	ErrVerificationPurposeMismatch = errors.New("verification token purpose mismatch")
	// ErrInsufficientRole is returned when the caller holds none of a guard's
	// required roles.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrInsufficientPermission is returned when the caller holds none of a
	// guard's required permissions.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrDuplicateEmail is returned when an email address already belongs to
	// another subject.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrEntityNotFound is returned for lookups of unknown subjects or roles.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrAssignmentNotFound is returned when revoking a role edge that does
	// not exist.
	ErrAssignmentNotFound = errors.New("role assignment not found")
	// ErrPasswordReused is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReused = errors.New("new password must be different from current password")
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or with a missing collaborator.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorCode maps an engine error to the stable string code exposed to the
// boundary layer. Unknown errors map to "INTERNAL" so persistence and
// transport details never leak through the core's contract.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrAccountNotActive):
		return "ACCOUNT_NOT_ACTIVE"
	case errors.Is(err, ErrAccountAlreadyVerified):
		return "ACCOUNT_ALREADY_VERIFIED"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTokenReused):
		return "TOKEN_REUSED"
	case errors.Is(err, ErrPairMismatch), errors.Is(err, ErrTokenInvalid):
		return "TOKEN_INVALID"
	case errors.Is(err, ErrSessionRevoked):
		return "SESSION_REVOKED"
	case errors.Is(err, ErrVerificationNotFound):
		return "VERIFICATION_TOKEN_NOT_FOUND"
	case errors.Is(err, ErrVerificationExpired):
		return "VERIFICATION_TOKEN_EXPIRED"
	case errors.Is(err, ErrVerificationConsumed):
		return "VERIFICATION_TOKEN_ALREADY_CONSUMED"
	case errors.Is(err, ErrVerificationPurposeMismatch):
		return "VERIFICATION_PURPOSE_MISMATCH"
	case errors.Is(err, ErrInsufficientRole):
		return "INSUFFICIENT_ROLE"
	case errors.Is(err, ErrInsufficientPermission):
		return "INSUFFICIENT_PERMISSION"
	case errors.Is(err, ErrDuplicateEmail):
		return "DUPLICATE_EMAIL"
	case errors.Is(err, ErrAssignmentNotFound):
		return "ASSIGNMENT_NOT_FOUND"
	case errors.Is(err, ErrEntityNotFound):
		return "ENTITY_NOT_FOUND"
	case errors.Is(err, ErrPasswordReused):
		return "PASSWORD_REUSED"
	default:
		return "INTERNAL"
	}
}
