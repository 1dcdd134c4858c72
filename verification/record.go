package verification

import "time"

// Purpose scopes a verification token to exactly one out-of-band flow. The
// stored purpose must match the purpose declared at consume time, so a
// password-reset link can never be replayed as an email confirmation.
type Purpose string

const (
	// PurposeVerifyEmail confirms ownership of the address a subject
	// registered with.
	PurposeVerifyEmail Purpose = "verify_email"
	// PurposeResetPassword authorizes setting a new password without the old
	// one.
	PurposeResetPassword Purpose = "reset_password"
	// PurposeChangeEmail confirms ownership of a pending replacement address.
	PurposeChangeEmail Purpose = "change_email"
)

// Valid reports whether p is one of the closed set of purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeVerifyEmail, PurposeResetPassword, PurposeChangeEmail:
		return true
	}
	return false
}

// Record is the persisted form of one verification token. Only digests of the
// secret and code are stored; the raw material exists solely in the issued
// token string and the notifier payload.
type Record struct {
	ID           string  `json:"id"`
	SubjectID    string  `json:"subject_id"`
	Email        string  `json:"email"`
	Purpose      Purpose `json:"purpose"`
	PendingEmail string  `json:"pending_email,omitempty"`
	SecretHash   []byte  `json:"secret_hash"`
	CodeHash     []byte  `json:"code_hash,omitempty"`
	// CreatedAt and ExpiresAt are Unix nanoseconds.
	CreatedAt int64 `json:"created_at"`
	ExpiresAt int64 `json:"expires_at"`
	Consumed  bool  `json:"consumed"`
}

func (r *Record) expired(now time.Time) bool {
	return now.UnixNano() > r.ExpiresAt
}

// CreateInput describes the token to issue. CodeDigits > 0 additionally
// generates a short numeric code consuming the same record, used by flows
// that confirm with a typed code instead of a link.
type CreateInput struct {
	SubjectID    string
	Email        string
	Purpose      Purpose
	PendingEmail string
	TTL          time.Duration
	CodeDigits   int
}

// Issued is the raw material handed back exactly once at creation.
type Issued struct {
	RecordID string
	Token    string
	Code     string
}
