package models

import "time"

// OnboardingState is the two-state gate controlling dashboard access.
type OnboardingState string

const (
	OnboardingPending   OnboardingState = "pending"
	OnboardingCompleted OnboardingState = "completed"
)

// UserProfile stores the one-time company questionnaire. The completed flag
// only ever transitions pending -> completed; Reset exists for tests.
type UserProfile struct {
	UserID                string    `db:"user_id" json:"user_id"`
	FullName              string    `db:"full_name" json:"full_name"`
	CompanyName           string    `db:"company_name" json:"company_name"`
	Sector                string    `db:"sector" json:"sector"`
	CompanySize           string    `db:"company_size" json:"company_size"`
	MainActivities        string    `db:"main_activities" json:"main_activities"`
	IsOnboardingCompleted bool      `db:"is_onboarding_completed" json:"is_onboarding_completed"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// State derives the onboarding state from the stored row.
func (p *UserProfile) State() OnboardingState {
	if p != nil && p.IsOnboardingCompleted {
		return OnboardingCompleted
	}
	return OnboardingPending
}

// OnboardingRequest is the questionnaire submission; all five fields are
// required for the pending -> completed transition.
type OnboardingRequest struct {
	FullName       string `json:"full_name" validate:"required"`
	CompanyName    string `json:"company_name" validate:"required"`
	Sector         string `json:"sector" validate:"required"`
	CompanySize    string `json:"company_size" validate:"required"`
	MainActivities string `json:"main_activities" validate:"required"`
}
