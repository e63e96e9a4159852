package tenant

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations for the tenant and report tables
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					owner_id TEXT NOT NULL,
					ai_reports_limit INTEGER NOT NULL DEFAULT 50,
					max_users INTEGER NOT NULL DEFAULT 10,
					max_reports INTEGER NOT NULL DEFAULT 100,
					features TEXT[] NOT NULL DEFAULT '{}',
					plan TEXT NOT NULL DEFAULT 'free',
					subscription_status TEXT NOT NULL DEFAULT 'active',
					subscription_expires_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_owner_id ON organizations(owner_id);
			`,
		},
		{
			Version:     2,
			Description: "Create user_profiles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_profiles (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL DEFAULT '',
					display_name TEXT NOT NULL DEFAULT '',
					organization_id TEXT REFERENCES organizations(id),
					role TEXT NOT NULL DEFAULT 'member',
					permissions TEXT[] NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_user_profiles_organization_id ON user_profiles(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create usage_ledgers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS usage_ledgers (
					org_id TEXT PRIMARY KEY REFERENCES organizations(id) ON DELETE CASCADE,
					total_reports INTEGER NOT NULL DEFAULT 0,
					monthly_reports INTEGER NOT NULL DEFAULT 0,
					last_reset_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create reports table",
			SQL: `
				CREATE TABLE IF NOT EXISTS reports (
					id TEXT PRIMARY KEY,
					org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					title TEXT NOT NULL,
					content TEXT NOT NULL,
					type TEXT NOT NULL,
					generated_by TEXT NOT NULL,
					ai_generated BOOLEAN NOT NULL DEFAULT TRUE,
					category TEXT NOT NULL DEFAULT 'safety',
					status TEXT NOT NULL DEFAULT 'draft',
					prompt_used TEXT NOT NULL DEFAULT '',
					ai_model TEXT NOT NULL DEFAULT '',
					tokens INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_reports_org_created ON reports(org_id, created_at DESC, id DESC);
				CREATE INDEX IF NOT EXISTS idx_reports_org_user_created ON reports(org_id, generated_by, created_at);
			`,
		},
	}
}

// RunMigrations applies all pending migrations, tracking progress in a
// schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
