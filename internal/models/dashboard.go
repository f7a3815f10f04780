package models

import "time"

// PriorityLevel orders dashboard actions; High sorts first.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// Rank converts a priority to a sortable integer, highest first.
func (p PriorityLevel) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// PriorityAction kinds emitted by the aggregator.
const (
	ActionTypeCompleteProfile = "complete-profile"
	ActionTypeRunFirstAudit   = "run-first-audit"
	ActionTypeAuditOutdated   = "audit-outdated"
	ActionTypeImproveDocument = "improve-document"
)

// PriorityAction is a derived read-only recommendation; computed fresh on
// every aggregation call, never persisted.
type PriorityAction struct {
	Type         string        `json:"type"`
	Priority     PriorityLevel `json:"priority"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	DocumentName string        `json:"document_name,omitempty"`
	Score        *int          `json:"score,omitempty"`
}

// ActivityItem is one row of the dashboard activity feed.
type ActivityItem struct {
	Type       string    `json:"type"`
	Label      string    `json:"label"`
	SessionID  string    `json:"session_id"`
	Score      *int      `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Activity item types.
const (
	ActivityAuditCompleted      = "audit-completed"
	ActivityGenerationCompleted = "generation-completed"
)
