package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesight/hseai/pkg/auth"
)

func testPrincipal() *auth.Principal {
	return &auth.Principal{
		ID:          "user-1",
		Email:       "owner@example.com",
		DisplayName: "Owner",
	}
}

func TestGetProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "email", "display_name", "organization_id", "role", "permissions",
		"is_active", "onboarding_completed", "created_at", "updated_at",
	}).AddRow("user-1", "owner@example.com", "Owner", "org_user-1_1", "owner",
		"{all}", true, true, now, now)

	mock.ExpectQuery("SELECT (.+) FROM user_profiles").
		WithArgs("user-1").
		WillReturnRows(rows)

	svc := NewPostgresService(db)
	profile, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.ID)
	assert.Equal(t, "org_user-1_1", profile.OrganizationID)
	assert.Equal(t, auth.RoleOwner, profile.Role)
	assert.True(t, profile.OnboardingCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM user_profiles").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	svc := NewPostgresService(db)
	_, err = svc.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "type", "owner_id", "plan", "subscription_status",
		"subscription_expires_at", "ai_reports_limit", "max_users", "max_reports",
		"features", "created_at", "updated_at",
	}).AddRow("org-1", "Acme Safety", "sme", "user-1", "starter", "active",
		nil, 50, 10, 100, "{ai-reports,dashboard,analytics}", now, now)

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs("org-1").
		WillReturnRows(rows)

	svc := NewPostgresService(db)
	org, err := svc.GetOrganization(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Safety", org.Name)
	assert.Equal(t, PlanStarter, org.Subscription.Plan)
	assert.Equal(t, 50, org.Settings.AIReportsLimit)
	assert.Nil(t, org.Subscription.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrganization_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	svc := NewPostgresService(db)
	_, err = svc.GetOrganization(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsage_MissingRowDefaultsToZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM usage_ledgers").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}))

	svc := NewPostgresService(db)
	ledger, err := svc.GetUsage(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", ledger.OrgID)
	assert.Equal(t, 0, ledger.MonthlyReports)
	assert.Equal(t, 0, ledger.TotalReports)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"org_id", "total_reports", "monthly_reports", "last_reset_date", "updated_at",
	}).AddRow("org-1", 42, 7, now, now)

	mock.ExpectQuery("SELECT (.+) FROM usage_ledgers").
		WithArgs("org-1").
		WillReturnRows(rows)

	svc := NewPostgresService(db)
	ledger, err := svc.GetUsage(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 42, ledger.TotalReports)
	assert.Equal(t, 7, ledger.MonthlyReports)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboard(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO user_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectExec("INSERT INTO usage_ledgers").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewPostgresService(db)
	org, profile, err := svc.Onboard(context.Background(), testPrincipal(), "Acme Safety", OrgTypeSME)
	require.NoError(t, err)

	assert.Contains(t, org.ID, "org_user-1_")
	assert.Equal(t, PlanStarter, org.Subscription.Plan)
	assert.Equal(t, SubscriptionActive, org.Subscription.Status)
	assert.Equal(t, DefaultOrgSettings(), org.Settings)
	assert.Equal(t, org.ID, profile.OrganizationID)
	assert.Equal(t, auth.RoleOwner, profile.Role)
	assert.True(t, profile.OnboardingCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboard_AlreadyBoundToOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The guarded upsert matches no row when the profile already carries an
	// organization, so the whole transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO user_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	svc := NewPostgresService(db)
	_, _, err = svc.Onboard(context.Background(), testPrincipal(), "Acme Safety", OrgTypeSME)
	assert.ErrorIs(t, err, ErrAlreadyOnboarded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboard_OrganizationInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	svc := NewPostgresService(db)
	_, _, err = svc.Onboard(context.Background(), testPrincipal(), "Acme Safety", OrgTypeSME)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create organization")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetMonthlyCounters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE usage_ledgers").
		WillReturnResult(sqlmock.NewResult(0, 3))

	svc := NewPostgresService(db)
	n, err := svc.ResetMonthlyCounters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
