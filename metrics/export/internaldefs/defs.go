package internaldefs

import (
	"github.com/MrEthical07/carauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   carauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   carauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter.
var CounterDefs = []CounterDef{
	{ID: carauth.MetricRegisterSuccess, Name: "carauth_register_success_total", Help: "Created accounts."},
	{ID: carauth.MetricRegisterDuplicate, Name: "carauth_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: carauth.MetricLoginSuccess, Name: "carauth_login_success_total", Help: "Successful logins."},
	{ID: carauth.MetricLoginFailure, Name: "carauth_login_failure_total", Help: "Logins with an unknown email or a wrong password."},
	{ID: carauth.MetricLoginLocked, Name: "carauth_login_locked_total", Help: "Logins refused because the account was locked."},
	{ID: carauth.MetricLoginRateLimited, Name: "carauth_login_rate_limited_total", Help: "Logins refused by the per-IP throttle."},
	{ID: carauth.MetricAccountLocked, Name: "carauth_account_locked_total", Help: "Failures that locked an account."},
	{ID: carauth.MetricEmailVerificationSuccess, Name: "carauth_email_verification_success_total", Help: "Consumed verification tokens."},
	{ID: carauth.MetricEmailVerificationFailure, Name: "carauth_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: carauth.MetricPasswordResetRequest, Name: "carauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: carauth.MetricPasswordResetConfirmSuccess, Name: "carauth_password_reset_confirm_success_total", Help: "Consumed reset tokens."},
	{ID: carauth.MetricPasswordResetConfirmFailure, Name: "carauth_password_reset_confirm_failure_total", Help: "Rejected reset tokens."},
	{ID: carauth.MetricProfileUpdate, Name: "carauth_profile_update_total", Help: "Successful profile updates."},
	{ID: carauth.MetricPasswordChangeSuccess, Name: "carauth_password_change_success_total", Help: "Password changes through the profile."},
	{ID: carauth.MetricPasswordChangeInvalidCurrent, Name: "carauth_password_change_invalid_current_total", Help: "Password changes refused for a wrong current password."},
	{ID: carauth.MetricTokenRejected, Name: "carauth_token_rejected_total", Help: "Session tokens that failed verification."},
	{ID: carauth.MetricStoreUnavailable, Name: "carauth_store_unavailable_total", Help: "Credential store calls that failed or timed out."},
	{ID: carauth.MetricEmailSent, Name: "carauth_email_sent_total", Help: "Emails accepted by the sender."},
	{ID: carauth.MetricEmailFailed, Name: "carauth_email_failed_total", Help: "Emails the sender failed to deliver."},
}

// HistogramDefs lists every exported engine histogram.
var HistogramDefs = []HistogramDef{
	{ID: carauth.MetricValidateLatency, Name: "carauth_validate_latency_seconds", Help: "Session token validation latency."},
}

// Dropped-event counters read from the engine dispatchers.
const (
	AuditDroppedName = "carauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher queue was full."
	EmailDroppedName = "carauth_email_dropped_total"
	EmailDroppedHelp = "Emails dropped because the dispatcher queue was full."
)

// HistogramBounds are the upper bounds, in seconds, of the engine latency
// buckets (50µs up to 5ms).
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.0025",
	"0.005",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as metric-name suffixes.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_0025",
	"0_005",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
