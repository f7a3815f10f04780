package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/masedocs/mase-audit-api/internal/models"
)

// ProfileRepository reads and writes the user_profiles onboarding rows.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a profile repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the profile for a user, or sql.ErrNoRows when absent.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	const query = `SELECT user_id, full_name, company_name, sector, company_size, main_activities, is_onboarding_completed, created_at, updated_at FROM user_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.UserProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// Upsert inserts or replaces the profile row, preserving the one-way
// completed flag: once true in the database it stays true.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO user_profiles (user_id, full_name, company_name, sector, company_size, main_activities, is_onboarding_completed, created_at, updated_at)
VALUES (:user_id, :full_name, :company_name, :sector, :company_size, :main_activities, :is_onboarding_completed, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET
	full_name = EXCLUDED.full_name,
	company_name = EXCLUDED.company_name,
	sector = EXCLUDED.sector,
	company_size = EXCLUDED.company_size,
	main_activities = EXCLUDED.main_activities,
	is_onboarding_completed = user_profiles.is_onboarding_completed OR EXCLUDED.is_onboarding_completed,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ResetOnboarding clears the completed flag. Test helper only.
func (r *ProfileRepository) ResetOnboarding(ctx context.Context, userID string) error {
	const query = `UPDATE user_profiles SET is_onboarding_completed = FALSE, updated_at = $2 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset onboarding: %w", err)
	}
	return nil
}
