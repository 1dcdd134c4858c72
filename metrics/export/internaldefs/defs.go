package internaldefs

import (
	goidentity "github.com/wizardcld/goidentity"
)

// CounterDef binds a core metric id to its stable exported name.
type CounterDef struct {
	ID   goidentity.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram id to its stable exported name.
type HistogramDef struct {
	ID   goidentity.MetricID
	Name string
	Help string
}

// CounterDefs is the full exported counter set, in metric-id order.
var CounterDefs = []CounterDef{
	{ID: goidentity.MetricRegisterSuccess, Name: "goidentity_register_success_total", Help: "Successful registrations."},
	{ID: goidentity.MetricRegisterDuplicate, Name: "goidentity_register_duplicate_total", Help: "Registrations rejected for a taken email."},
	{ID: goidentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful login attempts."},
	{ID: goidentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed login attempts."},
	{ID: goidentity.MetricVerifySuccess, Name: "goidentity_verify_success_total", Help: "Access tokens accepted by verification."},
	{ID: goidentity.MetricVerifyFailure, Name: "goidentity_verify_failure_total", Help: "Access tokens rejected by verification."},
	{ID: goidentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Successful pair rotations."},
	{ID: goidentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: goidentity.MetricRefreshReuseDetected, Name: "goidentity_refresh_reuse_detected_total", Help: "Superseded refresh tokens presented again."},
	{ID: goidentity.MetricSessionOpened, Name: "goidentity_session_opened_total", Help: "Sessions opened at login."},
	{ID: goidentity.MetricSessionRevoked, Name: "goidentity_session_revoked_total", Help: "Session revocations."},
	{ID: goidentity.MetricLogout, Name: "goidentity_logout_total", Help: "Explicit logouts."},
	{ID: goidentity.MetricPasswordChangeSuccess, Name: "goidentity_password_change_success_total", Help: "Completed password changes."},
	{ID: goidentity.MetricPasswordChangeRejected, Name: "goidentity_password_change_rejected_total", Help: "Password changes refused for a bad or reused password."},
	{ID: goidentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Password reset tokens issued."},
	{ID: goidentity.MetricPasswordResetSuccess, Name: "goidentity_password_reset_success_total", Help: "Completed password resets."},
	{ID: goidentity.MetricPasswordResetFailure, Name: "goidentity_password_reset_failure_total", Help: "Rejected password reset confirmations."},
	{ID: goidentity.MetricEmailVerificationRequest, Name: "goidentity_email_verification_request_total", Help: "Email verification tokens issued."},
	{ID: goidentity.MetricEmailVerificationSuccess, Name: "goidentity_email_verification_success_total", Help: "Confirmed email verifications."},
	{ID: goidentity.MetricEmailVerificationFailure, Name: "goidentity_email_verification_failure_total", Help: "Rejected email verifications."},
	{ID: goidentity.MetricEmailChangeRequest, Name: "goidentity_email_change_request_total", Help: "Email change tokens issued."},
	{ID: goidentity.MetricEmailChangeSuccess, Name: "goidentity_email_change_success_total", Help: "Completed email changes."},
	{ID: goidentity.MetricEmailChangeCancelled, Name: "goidentity_email_change_cancelled_total", Help: "Cancelled email change flows."},
	{ID: goidentity.MetricRoleAssigned, Name: "goidentity_role_assigned_total", Help: "Role assignments."},
	{ID: goidentity.MetricRoleRevoked, Name: "goidentity_role_revoked_total", Help: "Role revocations."},
	{ID: goidentity.MetricAuthorizationDenied, Name: "goidentity_authorization_denied_total", Help: "Guard rejections."},
}

// HistogramDefs is the full exported histogram set.
var HistogramDefs = []HistogramDef{
	{ID: goidentity.MetricVerifyLatency, Name: "goidentity_verify_latency_seconds", Help: "Verify latency histogram."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding the
// implicit +Inf bucket. They mirror the core's millisecond bucket layout.
var HistogramUpperBounds = []float64{
	0.005,
	0.01,
	0.025,
	0.05,
	0.1,
	0.25,
	0.5,
}

// HistogramBoundSuffix names each bucket, +Inf included, for backends that
// flatten histograms into per-bucket series.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// eight-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// Prometheus and OpenTelemetry expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
