package goidentity

import (
	"context"
	"errors"
)

// VerifyEmail consumes an email-verification token and promotes the subject
// from StatusUnverified to StatusActive. The email must match the one the
// token was issued for.
func (e *Engine) VerifyEmail(ctx context.Context, email, tok string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	record, err := e.verifications.ConsumeToken(ctx, tok, PurposeVerifyEmail, normalizeEmail(email))
	if err != nil {
		e.metrics.Inc(MetricEmailVerificationFailure)
		return mapVerificationError(err)
	}

	if err := e.directory.UpdateStatus(ctx, record.SubjectID, StatusActive); err != nil {
		return err
	}

	e.metrics.Inc(MetricEmailVerificationSuccess)
	return nil
}

// ResendVerification reissues the email-verification token. The previous
// token is superseded and stops working. Already-active subjects are told so
// instead of receiving a useless token.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	subject, err := e.directory.SubjectByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if subject.Status == StatusActive {
		return ErrAccountAlreadyVerified
	}
	if subject.Status == StatusSuspended {
		return ErrAccountNotActive
	}

	if err := e.issueVerification(ctx, subject.ID, subject.Email, PurposeVerifyEmail, "", false); err != nil {
		return err
	}
	e.metrics.Inc(MetricEmailVerificationRequest)
	return nil
}

// ChangeEmail starts the email-swap flow: the current address stays in effect
// and a confirmation token is delivered to the proposed one. Requesting again
// supersedes the previous pending change.
func (e *Engine) ChangeEmail(ctx context.Context, subjectID, newEmail string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	subject, err := e.directory.SubjectByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if subject.Status == StatusSuspended {
		return ErrAccountNotActive
	}

	pending := normalizeEmail(newEmail)
	if pending == subject.Email {
		return ErrDuplicateEmail
	}
	if _, err := e.directory.SubjectByEmail(ctx, pending); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrEntityNotFound) {
		return err
	}

	if err := e.issueVerification(ctx, subject.ID, subject.Email, PurposeChangeEmail, pending, false); err != nil {
		return err
	}
	e.metrics.Inc(MetricEmailChangeRequest)
	return nil
}

// VerifyChangeEmail consumes a change-email token and swaps the address. The
// uniqueness of the pending address is re-checked at swap time by the
// directory; an address taken since the request fails the flow here.
func (e *Engine) VerifyChangeEmail(ctx context.Context, tok string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	record, err := e.verifications.ConsumeToken(ctx, tok, PurposeChangeEmail, "")
	if err != nil {
		return mapVerificationError(err)
	}

	if err := e.directory.UpdateEmail(ctx, record.SubjectID, record.PendingEmail); err != nil {
		return err
	}

	e.metrics.Inc(MetricEmailChangeSuccess)
	return nil
}

// CancelChangeEmail withdraws a pending email change. The outstanding token
// stops working immediately; cancelling with nothing pending is a no-op.
func (e *Engine) CancelChangeEmail(ctx context.Context, subjectID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.verifications.Cancel(ctx, subjectID, PurposeChangeEmail); err != nil {
		return err
	}

	e.metrics.Inc(MetricEmailChangeCancelled)
	return nil
}
