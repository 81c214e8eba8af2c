package entity

import "time"

// Audit actions recorded by the credential core.
const (
	ActionUserCreated    = "User Created"
	ActionLogin          = "User Login"
	ActionLoginFailed    = "Login Failed"
	ActionAccountLocked  = "Account Locked"
	ActionLogout         = "User Logout"
	ActionPasswordChange = "Password Change"
	ActionResetRequested = "Password Reset Requested"
	ActionPasswordReset  = "Password Reset"
	ActionProfileUpdate  = "Profile Update"
	ActionAccountDeleted = "Account Deleted"
)

// AuditEntry is a write-once record of a security relevant action.
type AuditEntry struct {
	ID        int64
	AccountID string
	Action    string
	Detail    string
	IP        string
	CreatedAt time.Time
}
