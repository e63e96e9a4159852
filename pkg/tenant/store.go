package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/safesight/hseai/pkg/auth"
)

// Service defines tenant persistence operations.
type Service interface {
	GetProfile(ctx context.Context, principalID string) (*UserProfile, error)
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	GetUsage(ctx context.Context, orgID string) (*UsageLedger, error)
	Onboard(ctx context.Context, principal *auth.Principal, orgName string, orgType OrganizationType) (*Organization, *UserProfile, error)
	ResetMonthlyCounters(ctx context.Context) (int64, error)
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// GetProfile retrieves a user profile by principal ID
func (s *PostgresService) GetProfile(ctx context.Context, principalID string) (*UserProfile, error) {
	query := `
		SELECT id, email, display_name, organization_id, role, permissions,
		       is_active, onboarding_completed, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`
	profile := &UserProfile{}
	var orgID sql.NullString
	err := s.db.QueryRowContext(ctx, query, principalID).Scan(
		&profile.ID, &profile.Email, &profile.DisplayName, &orgID,
		&profile.Role, pq.Array(&profile.Permissions),
		&profile.IsActive, &profile.OnboardingCompleted,
		&profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	profile.OrganizationID = orgID.String
	return profile, nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	query := `
		SELECT id, name, type, owner_id, plan, subscription_status, subscription_expires_at,
		       ai_reports_limit, max_users, max_reports, features, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&org.ID, &org.Name, &org.Type, &org.OwnerID,
		&org.Subscription.Plan, &org.Subscription.Status, &expiresAt,
		&org.Settings.AIReportsLimit, &org.Settings.MaxUsers, &org.Settings.MaxReports,
		pq.Array(&org.Settings.Features),
		&org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if expiresAt.Valid {
		org.Subscription.ExpiresAt = &expiresAt.Time
	}
	return org, nil
}

// GetUsage retrieves the usage ledger for an organization. A missing row is
// treated as a ledger with zero counters, never as an error.
func (s *PostgresService) GetUsage(ctx context.Context, orgID string) (*UsageLedger, error) {
	query := `
		SELECT org_id, total_reports, monthly_reports, last_reset_date, updated_at
		FROM usage_ledgers
		WHERE org_id = $1
	`
	ledger := &UsageLedger{}
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&ledger.OrgID, &ledger.TotalReports, &ledger.MonthlyReports,
		&ledger.LastResetDate, &ledger.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &UsageLedger{OrgID: orgID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage ledger: %w", err)
	}
	return ledger, nil
}

// Onboard creates an organization, binds the principal's profile to it and
// seeds a zeroed usage ledger in a single transaction.
//
// The profile write is an upsert guarded by organization_id IS NULL. When a
// concurrent request already attached this principal to an organization the
// guard matches no row, the transaction rolls back and ErrAlreadyOnboarded is
// returned. The winner's records are left untouched.
func (s *PostgresService) Onboard(ctx context.Context, principal *auth.Principal, orgName string, orgType OrganizationType) (*Organization, *UserProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	org := &Organization{
		ID:      fmt.Sprintf("org_%s_%d", principal.ID, now.UnixMilli()),
		Name:    orgName,
		Type:    orgType,
		OwnerID: principal.ID,
		Subscription: Subscription{
			Plan:   PlanStarter,
			Status: SubscriptionActive,
		},
		Settings:  DefaultOrgSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	orgQuery := `
		INSERT INTO organizations (id, name, type, owner_id, plan, subscription_status,
		                           ai_reports_limit, max_users, max_reports, features,
		                           created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, orgQuery, org.ID, org.Name, org.Type, org.OwnerID,
		org.Subscription.Plan, org.Subscription.Status,
		org.Settings.AIReportsLimit, org.Settings.MaxUsers, org.Settings.MaxReports,
		pq.Array(org.Settings.Features), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create organization: %w", err)
	}

	profile := &UserProfile{
		ID:                  principal.ID,
		Email:               principal.Email,
		DisplayName:         principal.DisplayName,
		OrganizationID:      org.ID,
		Role:                auth.RoleOwner,
		Permissions:         []string{"all"},
		IsActive:            true,
		OnboardingCompleted: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	profileQuery := `
		INSERT INTO user_profiles (id, email, display_name, organization_id, role,
		                           permissions, is_active, onboarding_completed,
		                           created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			organization_id = EXCLUDED.organization_id,
			role = EXCLUDED.role,
			permissions = EXCLUDED.permissions,
			is_active = EXCLUDED.is_active,
			onboarding_completed = EXCLUDED.onboarding_completed,
			updated_at = EXCLUDED.updated_at
		WHERE user_profiles.organization_id IS NULL
		RETURNING id
	`
	var claimedID string
	err = tx.QueryRowContext(ctx, profileQuery, profile.ID, profile.Email, profile.DisplayName,
		profile.OrganizationID, profile.Role, pq.Array(profile.Permissions),
		profile.IsActive, profile.OnboardingCompleted,
		profile.CreatedAt, profile.UpdatedAt).Scan(&claimedID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrAlreadyOnboarded
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert user profile: %w", err)
	}

	ledgerQuery := `
		INSERT INTO usage_ledgers (org_id, total_reports, monthly_reports, last_reset_date, updated_at)
		VALUES ($1, 0, 0, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, ledgerQuery, org.ID, now, now); err != nil {
		return nil, nil, fmt.Errorf("failed to create usage ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit onboarding: %w", err)
	}
	return org, profile, nil
}

// ResetMonthlyCounters zeroes the monthly report counter on every ledger.
// Returns the number of ledgers reset.
func (s *PostgresService) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	query := `
		UPDATE usage_ledgers
		SET monthly_reports = 0, last_reset_date = NOW(), updated_at = NOW()
	`
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset ledgers: %w", err)
	}
	return n, nil
}
