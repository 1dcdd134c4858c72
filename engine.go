package goidentity

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/wizardcld/goidentity/internal"
	"github.com/wizardcld/goidentity/password"
	"github.com/wizardcld/goidentity/session"
	"github.com/wizardcld/goidentity/token"
	"github.com/wizardcld/goidentity/verification"
)

// Engine is the authentication and authorization core. It orchestrates the
// token codec, the Redis-backed session and verification stores, the password
// hasher, and the embedder's Directory and Notifier into complete flows.
//
// An Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config        Config
	codec         *token.Codec
	sessions      *session.Store
	verifications *verification.Store
	hasher        *password.Hasher
	directory     Directory
	notifier      Notifier
	metrics       *Metrics
}

// Metrics exposes the engine's in-process counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counters and histograms. This is the
// read side the exporters under metrics/export consume.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Register creates a subject in StatusUnverified and issues an email
// verification token. The duplicate check happens before hashing; a race on
// the same address is caught again by the directory's uniqueness constraint.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (SubjectRecord, error) {
	if e == nil || e.directory == nil {
		return SubjectRecord{}, ErrEngineNotReady
	}

	email := normalizeEmail(in.Email)
	if _, err := e.directory.SubjectByEmail(ctx, email); err == nil {
		e.metrics.Inc(MetricRegisterDuplicate)
		return SubjectRecord{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrEntityNotFound) {
		return SubjectRecord{}, err
	}

	digest, err := e.hasher.Hash(in.Password)
	if err != nil {
		return SubjectRecord{}, err
	}

	subject, err := e.directory.CreateSubject(ctx, CreateSubjectInput{
		Email:          email,
		PasswordDigest: digest,
		Status:         StatusUnverified,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metrics.Inc(MetricRegisterDuplicate)
		}
		return SubjectRecord{}, err
	}

	e.metrics.Inc(MetricRegisterSuccess)

	// The subject exists at this point; a failed issuance must not undo the
	// registration, and ResendVerification recovers the token later.
	if err := e.issueVerification(ctx, subject.ID, subject.Email, PurposeVerifyEmail, "", false); err != nil {
		log.Printf("goidentity: issuing %s verification failed: %v", PurposeVerifyEmail, err)
	} else {
		e.metrics.Inc(MetricEmailVerificationRequest)
	}

	return subject, nil
}

// Login authenticates an email/password pair and opens a fresh session. Every
// credential failure collapses to ErrInvalidCredentials; only the lifecycle
// rejection for admitted credentials is distinguishable.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (TokenPair, error) {
	if e == nil || e.directory == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	subject, err := e.directory.SubjectByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			e.metrics.Inc(MetricLoginFailure)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	ok, err := e.hasher.Verify(plaintext, subject.PasswordDigest)
	if err != nil || !ok {
		e.metrics.Inc(MetricLoginFailure)
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := e.admit(subject.Status); err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return TokenPair{}, err
	}

	pair, err := e.issuePair(ctx, subject.ID)
	if err != nil {
		return TokenPair{}, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Inc(MetricSessionOpened)
	return pair, nil
}

// Verify authenticates one request: it decodes the access token, confirms the
// backing session is live, and resolves the caller's current roles and
// permissions into a RequestUser. This is the hot path; it performs exactly
// one session-store read plus one directory grant lookup.
func (e *Engine) Verify(ctx context.Context, accessToken string) (RequestUser, error) {
	if e == nil || e.directory == nil {
		return RequestUser{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}()

	claims, err := e.codec.Decode(accessToken, token.KindAccess)
	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		return RequestUser{}, mapTokenError(err)
	}

	if err := e.sessions.Live(ctx, claims.SessionID); err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		return RequestUser{}, mapSessionError(err)
	}

	roles, permissions, err := e.directory.GrantsFor(ctx, claims.SubjectID)
	if err != nil {
		return RequestUser{}, err
	}

	e.metrics.Inc(MetricVerifySuccess)
	return RequestUser{
		SubjectID:   claims.SubjectID,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

// Refresh rotates a session's pair: both presented tokens must verify, agree
// on subject and session, and the refresh token must be the one the session
// currently accepts. Presenting a superseded refresh token is treated as
// replay and fails with ErrTokenReused without advancing the session.
func (e *Engine) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	refreshClaims, err := e.codec.Decode(refreshToken, token.KindRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return TokenPair{}, mapTokenError(err)
	}

	accessClaims, err := e.codec.Decode(accessToken, token.KindAccess)
	if err != nil && !errors.Is(err, token.ErrExpired) {
		e.metrics.Inc(MetricRefreshFailure)
		return TokenPair{}, mapTokenError(err)
	}
	if err != nil {
		// An expired access token is the normal refresh trigger; re-parse
		// without expiry enforcement to recover its pair binding.
		accessClaims, err = e.codec.DecodeExpired(accessToken, token.KindAccess)
		if err != nil {
			e.metrics.Inc(MetricRefreshFailure)
			return TokenPair{}, mapTokenError(err)
		}
	}

	if accessClaims.SubjectID != refreshClaims.SubjectID || accessClaims.SessionID != refreshClaims.SessionID {
		e.metrics.Inc(MetricRefreshFailure)
		return TokenPair{}, ErrPairMismatch
	}

	subjectID := refreshClaims.SubjectID
	sessionID := refreshClaims.SessionID

	newAccess, _, err := e.codec.Encode(subjectID, sessionID, token.KindAccess, e.config.Token.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	newRefresh, newRefreshID, err := e.codec.Encode(subjectID, sessionID, token.KindRefresh, e.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	err = e.sessions.Rotate(ctx, sessionID, refreshClaims.RefreshID(), newRefreshID, e.config.Token.RefreshTTL)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		switch {
		case errors.Is(err, session.ErrStale):
			e.metrics.Inc(MetricRefreshReuseDetected)
			return TokenPair{}, ErrTokenReused
		case errors.Is(err, session.ErrRevoked), errors.Is(err, session.ErrNotFound):
			return TokenPair{}, ErrSessionRevoked
		default:
			return TokenPair{}, err
		}
	}

	e.metrics.Inc(MetricRefreshSuccess)
	return TokenPair{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}

// Logout revokes the session named by the access token. Logging out twice is
// not an error; the second call finds the session already revoked and
// succeeds.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Decode(accessToken, token.KindAccess)
	if err != nil {
		return mapTokenError(err)
	}

	if err := e.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return err
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricSessionRevoked)
	return nil
}

// admit applies the login admission policy to a subject's lifecycle status.
func (e *Engine) admit(status AccountStatus) error {
	switch status {
	case StatusActive:
		return nil
	case StatusUnverified:
		if e.config.Login.AllowUnverified {
			return nil
		}
		return ErrAccountNotActive
	default:
		return ErrAccountNotActive
	}
}

// issuePair mints one access/refresh pair and opens the session that backs it.
// The session id is generated here so both tokens can embed it before the
// session record exists.
func (e *Engine) issuePair(ctx context.Context, subjectID string) (TokenPair, error) {
	sessionID, err := internal.NewID()
	if err != nil {
		return TokenPair{}, err
	}

	access, _, err := e.codec.Encode(subjectID, sessionID, token.KindAccess, e.config.Token.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshID, err := e.codec.Encode(subjectID, sessionID, token.KindRefresh, e.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.sessions.Open(ctx, sessionID, subjectID, refreshID, e.config.Token.RefreshTTL); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// issueVerification creates a verification record for the subject and hands
// it to the notifier. A store failure is returned because without a persisted
// record the flow produced nothing; delivery failures are logged and
// swallowed, the token stays issued and consumable either way.
func (e *Engine) issueVerification(ctx context.Context, subjectID, email string, purpose Purpose, pendingEmail string, withCode bool) error {
	in := verification.CreateInput{
		SubjectID:    subjectID,
		Email:        email,
		Purpose:      purpose,
		PendingEmail: pendingEmail,
		TTL:          e.config.Verification.TTL,
	}
	if withCode {
		in.CodeDigits = e.config.Verification.CodeDigits
	}

	issued, err := e.verifications.Create(ctx, in)
	if err != nil {
		return err
	}

	if e.notifier == nil {
		return nil
	}

	recipient := email
	if purpose == PurposeChangeEmail {
		recipient = pendingEmail
	}
	msg := Message{
		Purpose:   purpose,
		Recipient: recipient,
		Token:     issued.Token,
		Code:      issued.Code,
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		log.Printf("goidentity: %s delivery to %s failed: %v", purpose, recipient, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongKind):
		return ErrTokenInvalid
	default:
		return err
	}
}

// mapSessionError folds a missing session into ErrSessionRevoked: from the
// token holder's perspective an expired-and-purged session and an explicitly
// revoked one are the same dead end.
func mapSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrRevoked):
		return ErrSessionRevoked
	default:
		return err
	}
}

func mapVerificationError(err error) error {
	switch {
	case errors.Is(err, verification.ErrNotFound):
		return ErrVerificationNotFound
	case errors.Is(err, verification.ErrExpired):
		return ErrVerificationExpired
	case errors.Is(err, verification.ErrConsumed):
		return ErrVerificationConsumed
	case errors.Is(err, verification.ErrPurposeMismatch):
		return ErrVerificationPurposeMismatch
	default:
		return err
	}
}
