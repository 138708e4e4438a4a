package model

import "time"

const (
	AuditActionLogin           = "auth.login"
	AuditActionPasswordReset   = "account.password_reset"
	AuditActionUserCreate      = "user.create"
	AuditActionUserUpdate      = "user.update"
	AuditActionUserDelete      = "user.delete"
	AuditActionPreRegistration = "pre_registration.create"
	AuditActionPatientCreate   = "patient.create"
	AuditActionPatientLink     = "pre_registration.link_patient"

	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

type AuditActor struct {
	AccountID string `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role,omitempty"`
	IP        string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt time.Time  `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	From    *time.Time
	To      *time.Time
	Page    int
	Limit   int
}

type AuditList struct {
	Items []AuditEntry `json:"items"`
}
