package dto

import (
	"time"

	"github.com/masedocs/mase-audit-api/internal/models"
)

// DashboardOverviewResponse is the composed dashboard payload.
type DashboardOverviewResponse struct {
	GlobalScore        *int                    `json:"global_score"`
	AxisScores         []models.AxisScore      `json:"axis_scores"`
	PriorityActions    []models.PriorityAction `json:"priority_actions"`
	Activity           []models.ActivityItem   `json:"activity"`
	LastAuditAt        *time.Time              `json:"last_audit_at,omitempty"`
	AuditsCompleted    int                     `json:"audits_completed"`
	OnboardingRequired bool                    `json:"onboarding_required"`
}
