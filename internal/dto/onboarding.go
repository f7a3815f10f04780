package dto

import "github.com/masedocs/mase-audit-api/internal/models"

// OnboardingStatusResponse reports the gate state for the current user.
type OnboardingStatusResponse struct {
	State   models.OnboardingState `json:"state"`
	Profile *models.UserProfile    `json:"profile,omitempty"`
}
