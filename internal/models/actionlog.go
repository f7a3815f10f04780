package models

import "time"

// Action constants represent user actions recorded in the trail.
const (
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionRegister       = "REGISTER"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionPasswordReset  = "PASSWORD_RESET"
	ActionOnboarding     = "ONBOARDING_SUBMIT"
	ActionDocumentUpload = "DOCUMENT_UPLOAD"
	ActionHistoryClear   = "HISTORY_CLEAR"
)

// ActionLog represents one entry in the user action trail.
type ActionLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
