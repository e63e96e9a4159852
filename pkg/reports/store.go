package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaExceeded indicates the organization's monthly counter reached
	// its cap while committing a new report.
	ErrQuotaExceeded = errors.New("monthly report quota exceeded")

	// ErrInvalidCursor indicates the pagination cursor does not name a report
	// in the organization.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// Store defines report persistence operations.
type Store interface {
	CreateWithUsage(ctx context.Context, report *Report, monthlyLimit int) error
	CountByUserSince(ctx context.Context, orgID, userID string, since time.Time) (int, error)
	List(ctx context.Context, orgID string, limit int, cursor string) (*Page, error)
}

// PostgresStore implements the Store interface using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWithUsage inserts the report and advances the organization's usage
// counters in one transaction. The counter advance is conditional on
// monthly_reports staying under monthlyLimit; when the guard fails nothing is
// written and ErrQuotaExceeded is returned. Two concurrent calls racing on the
// last slot serialize on the ledger row, so the cap cannot be breached.
func (s *PostgresStore) CreateWithUsage(ctx context.Context, report *Report, monthlyLimit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Upsert so a missing ledger row counts as zero usage instead of
	// blocking the organization's first report.
	ledgerQuery := `
		INSERT INTO usage_ledgers (org_id, total_reports, monthly_reports, last_reset_date, updated_at)
		VALUES ($1, 1, 1, NOW(), NOW())
		ON CONFLICT (org_id) DO UPDATE SET
			total_reports = usage_ledgers.total_reports + 1,
			monthly_reports = usage_ledgers.monthly_reports + 1,
			updated_at = NOW()
		WHERE usage_ledgers.monthly_reports < $2
	`
	res, err := tx.ExecContext(ctx, ledgerQuery, report.OrganizationID, monthlyLimit)
	if err != nil {
		return fmt.Errorf("failed to advance usage ledger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ledger update: %w", err)
	}
	if affected == 0 {
		return ErrQuotaExceeded
	}

	reportQuery := `
		INSERT INTO reports (id, org_id, title, content, type, generated_by,
		                     ai_generated, category, status, prompt_used, ai_model,
		                     tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.ExecContext(ctx, reportQuery, report.ID, report.OrganizationID,
		report.Title, report.Content, report.Type, report.GeneratedBy,
		report.AIGenerated, report.Category, report.Status,
		report.Metadata.PromptUsed, report.Metadata.AIModel, report.Metadata.Tokens,
		report.CreatedAt, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// CountByUserSince counts reports a user generated in the organization since
// the given instant. Used for the free-plan per-user cap.
func (s *PostgresStore) CountByUserSince(ctx context.Context, orgID, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM reports
		WHERE org_id = $1 AND generated_by = $2 AND created_at >= $3
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, orgID, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user reports: %w", err)
	}
	return count, nil
}

const reportColumns = `id, org_id, title, content, type, generated_by,
	       ai_generated, category, status, prompt_used, ai_model, tokens,
	       created_at, updated_at`

// List returns one page of the organization's reports, newest first. The
// cursor is the id of the last report on the previous page; an empty cursor
// starts from the newest report. One extra row is fetched to decide HasMore
// without a second query.
func (s *PostgresStore) List(ctx context.Context, orgID string, limit int, cursor string) (*Page, error) {
	var rows *sql.Rows
	var err error

	if cursor == "" {
		query := fmt.Sprintf(`
			SELECT %s FROM reports
			WHERE org_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, reportColumns)
		rows, err = s.db.QueryContext(ctx, query, orgID, limit+1)
	} else {
		var cursorCreatedAt time.Time
		var cursorID string
		anchorQuery := `SELECT created_at, id FROM reports WHERE org_id = $1 AND id = $2`
		scanErr := s.db.QueryRowContext(ctx, anchorQuery, orgID, cursor).Scan(&cursorCreatedAt, &cursorID)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrInvalidCursor
		}
		if scanErr != nil {
			return nil, fmt.Errorf("failed to resolve cursor: %w", scanErr)
		}

		query := fmt.Sprintf(`
			SELECT %s FROM reports
			WHERE org_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, reportColumns)
		rows, err = s.db.QueryContext(ctx, query, orgID, cursorCreatedAt, cursorID, limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	page := &Page{Reports: make([]*Report, 0, limit)}
	for rows.Next() {
		r := &Report{}
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.Title, &r.Content, &r.Type,
			&r.GeneratedBy, &r.AIGenerated, &r.Category, &r.Status,
			&r.Metadata.PromptUsed, &r.Metadata.AIModel, &r.Metadata.Tokens,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		page.Reports = append(page.Reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	if len(page.Reports) > limit {
		page.Reports = page.Reports[:limit]
		page.HasMore = true
	}
	return page, nil
}
