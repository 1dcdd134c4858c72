package goidentity

import (
	"context"
	"errors"
)

// ChangePassword replaces the subject's credential after re-verifying the
// current one. A new password equal to the old is rejected. Success revokes
// every session the subject holds; outstanding token pairs die with them.
func (e *Engine) ChangePassword(ctx context.Context, subjectID, current, next string) error {
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

	ok, err := e.hasher.Verify(current, subject.PasswordDigest)
	if err != nil || !ok {
		e.metrics.Inc(MetricPasswordChangeRejected)
		return ErrInvalidCredentials
	}

	same, err := e.hasher.Verify(next, subject.PasswordDigest)
	if err == nil && same {
		e.metrics.Inc(MetricPasswordChangeRejected)
		return ErrPasswordReused
	}

	digest, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.directory.UpdatePasswordDigest(ctx, subject.ID, digest); err != nil {
		return err
	}

	if err := e.sessions.RevokeAllForSubject(ctx, subject.ID); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.metrics.Inc(MetricSessionRevoked)
	return nil
}

// ForgotPassword issues a reset token plus a short numeric code for the
// account behind the email. An unknown address fails with ErrEntityNotFound;
// hiding the miss is the boundary's call, not this layer's.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	subject, err := e.directory.SubjectByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	if err := e.issueVerification(ctx, subject.ID, subject.Email, PurposeResetPassword, "", true); err != nil {
		return err
	}
	e.metrics.Inc(MetricPasswordResetRequest)
	return nil
}

// VerifyForgotPassword consumes a reset token and installs the new password.
// The email must match the one the token was issued for. All sessions of the
// subject are revoked on success.
func (e *Engine) VerifyForgotPassword(ctx context.Context, email, tok, next string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	record, err := e.verifications.ConsumeToken(ctx, tok, PurposeResetPassword, normalizeEmail(email))
	if err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		return mapVerificationError(err)
	}

	return e.completeReset(ctx, record.SubjectID, next)
}

// VerifyForgotPasswordCode is the numeric-code variant of reset confirmation.
// The code is located through the account's email since it carries no record
// id of its own.
func (e *Engine) VerifyForgotPasswordCode(ctx context.Context, email, code, next string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	subject, err := e.directory.SubjectByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			e.metrics.Inc(MetricPasswordResetFailure)
			return ErrVerificationNotFound
		}
		return err
	}

	_, err = e.verifications.ConsumeCode(ctx, subject.ID, PurposeResetPassword, code)
	if err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		return mapVerificationError(err)
	}

	return e.completeReset(ctx, subject.ID, next)
}

func (e *Engine) completeReset(ctx context.Context, subjectID, next string) error {
	digest, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.directory.UpdatePasswordDigest(ctx, subjectID, digest); err != nil {
		return err
	}
	if err := e.sessions.RevokeAllForSubject(ctx, subjectID); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.metrics.Inc(MetricSessionRevoked)
	return nil
}
