package session

// Session is one active refresh lineage: created on login, rotated on refresh,
// terminated on logout or expiry. RefreshID is the identifier (jti) of the one
// refresh token currently valid for the lineage; presenting any other id to
// Rotate is how replay is detected.
type Session struct {
	SessionID string
	SubjectID string
	RefreshID string
	Revoked   bool
	CreatedAt int64
	ExpiresAt int64
}

const (
	fieldSubjectID = "subject_id"
	fieldRefreshID = "refresh_id"
	fieldRevoked   = "revoked"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)
