package application

import "expvar"

// Counters published on /api/debug/vars.
var (
	metricLoginSuccess  = expvar.NewInt("auth_login_success")
	metricLoginFailure  = expvar.NewInt("auth_login_failure")
	metricLockouts      = expvar.NewInt("auth_lockouts")
	metricRateLimited   = expvar.NewInt("auth_rate_limited")
	metricResetIssued   = expvar.NewInt("auth_reset_issued")
	metricResetConsumed = expvar.NewInt("auth_reset_consumed")
	metricAuditDropped  = expvar.NewInt("audit_dropped")
	metricAuditFailed   = expvar.NewInt("audit_failed")
)
