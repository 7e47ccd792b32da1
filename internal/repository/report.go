package repository

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ReportRepository handles database operations for moderation reports
type ReportRepository struct {
	db DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts an open report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (reporter_id, target_type, target_id, reason, status)
		VALUES ($1, $2, $3, $4, 'open')
		RETURNING id, status, created_at
	`
	err := r.db.QueryRow(ctx, query, report.ReporterID, report.TargetType, report.TargetID, report.Reason).
		Scan(&report.ID, &report.Status, &report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetForUpdate retrieves a report by ID and locks its row
func (r *ReportRepository) GetForUpdate(ctx context.Context, id int64) (*models.Report, error) {
	query := `
		SELECT id, reporter_id, target_type, target_id, reason, status, created_at
		FROM reports
		WHERE id = $1
		FOR UPDATE
	`
	var rep models.Report
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rep.ID, &rep.ReporterID, &rep.TargetType, &rep.TargetID, &rep.Reason, &rep.Status, &rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &rep, nil
}

// MarkResolved sets a report's status to resolved. A report deleted by the
// target cascade is not an error.
func (r *ReportRepository) MarkResolved(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE reports SET status = 'resolved' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to resolve report: %w", err)
	}
	return nil
}

// ListOpen returns open reports with the reporter's name, newest first
func (r *ReportRepository) ListOpen(ctx context.Context) ([]models.Report, error) {
	query := `
		SELECT r.id, r.reporter_id, u.name, r.target_type, r.target_id, r.reason, r.status, r.created_at
		FROM reports r
		JOIN users u ON u.id = r.reporter_id
		WHERE r.status = 'open'
		ORDER BY r.id DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.ReporterID, &rep.ReporterName, &rep.TargetType, &rep.TargetID,
			&rep.Reason, &rep.Status, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}
