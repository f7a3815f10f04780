package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

type profileRepository interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
	ResetOnboarding(ctx context.Context, userID string) error
}

type onboardingActionRecorder interface {
	CreateActionLog(ctx context.Context, log *models.ActionLog) error
}

// OnboardingService owns the one-time company questionnaire that gates the
// dashboard. The gate is two-state: pending until the full questionnaire is
// submitted, completed forever after.
type OnboardingService struct {
	profiles  profileRepository
	actions   onboardingActionRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOnboardingService constructs an OnboardingService.
func NewOnboardingService(profiles profileRepository, actions onboardingActionRecorder, validate *validator.Validate, logger *zap.Logger) *OnboardingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingService{profiles: profiles, actions: actions, validator: validate, logger: logger}
}

// Status returns the gate state for a user. A missing profile row reads as
// pending, never as an error.
func (s *OnboardingService) Status(ctx context.Context, userID string) (*dto.OnboardingStatusResponse, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.OnboardingStatusResponse{State: models.OnboardingPending}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return &dto.OnboardingStatusResponse{State: profile.State(), Profile: profile}, nil
}

// Completed reports whether the user has passed the gate.
func (s *OnboardingService) Completed(ctx context.Context, userID string) (bool, error) {
	status, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.State == models.OnboardingCompleted, nil
}

// Submit stores the questionnaire and flips the gate. A submission with any
// missing field is rejected and the state stays pending. Resubmission after
// completion updates the company details but cannot reopen the gate.
func (s *OnboardingService) Submit(ctx context.Context, userID string, req models.OnboardingRequest) (*dto.OnboardingStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "all onboarding fields are required")
	}

	profile := &models.UserProfile{
		UserID:                userID,
		FullName:              req.FullName,
		CompanyName:           req.CompanyName,
		Sector:                req.Sector,
		CompanySize:           req.CompanySize,
		MainActivities:        req.MainActivities,
		IsOnboardingCompleted: true,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save profile")
	}

	if s.actions != nil {
		if err := s.actions.CreateActionLog(ctx, &models.ActionLog{
			UserID:     &userID,
			Action:     models.ActionOnboarding,
			Resource:   "onboarding",
			ResourceID: &userID,
			NewValues:  []byte(`{"state":"completed"}`),
		}); err != nil {
			s.logger.Warn("failed to record onboarding action", zap.Error(err))
		}
	}

	return &dto.OnboardingStatusResponse{State: models.OnboardingCompleted, Profile: profile}, nil
}

// Reset reopens the gate for a user. Support-only escape hatch: the normal
// flow never reopens a completed questionnaire.
func (s *OnboardingService) Reset(ctx context.Context, userID string) error {
	if err := s.profiles.ResetOnboarding(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset onboarding")
	}

	if s.actions != nil {
		if err := s.actions.CreateActionLog(ctx, &models.ActionLog{
			UserID:     &userID,
			Action:     models.ActionOnboarding,
			Resource:   "onboarding",
			ResourceID: &userID,
			NewValues:  []byte(`{"state":"pending"}`),
		}); err != nil {
			s.logger.Warn("failed to record onboarding reset", zap.Error(err))
		}
	}
	return nil
}
