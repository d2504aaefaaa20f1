package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	reports "safewatch-cloud/internal/reports/domain"
)

// ReportRepository persists reports in Postgres.
type ReportRepository struct {
	db    *sql.DB
	table string
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	if db == nil {
		return nil
	}
	return &ReportRepository{db: db, table: "reports"}
}

// Create inserts a report row.
func (r *ReportRepository) Create(ctx context.Context, report *reports.Report) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if report == nil {
		return errors.New("report repo: nil report")
	}

	const query = `
INSERT INTO reports (id, reporter_id, description, latitude, longitude, status, photo_path, created_at, updated_at, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		nullableString(report.ReporterID),
		report.Description,
		report.Latitude,
		report.Longitude,
		report.Status,
		nullableString(report.PhotoPath),
		report.CreatedAt.UTC(),
		report.UpdatedAt.UTC(),
		nullableTimePtr(report.ResolvedAt),
	)
	return err
}

// GetByID loads one report.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	const query = `
SELECT id, reporter_id, description, latitude, longitude, status, photo_path, created_at, updated_at, resolved_at
FROM reports WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reports.ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// UpdateStatus applies a status change.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id, status string, resolvedAt *time.Time, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	const query = `
UPDATE reports SET status = $1, resolved_at = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, status, nullableTimePtr(resolvedAt), updatedAt.UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return reports.ErrNotFound
	}
	return nil
}

// List returns reports, newest first, optionally filtered by reporter and status.
func (r *ReportRepository) List(ctx context.Context, reporterID, status string) ([]reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}

	query := `
SELECT id, reporter_id, description, latitude, longitude, status, photo_path, created_at, updated_at, resolved_at
FROM reports`
	var clauses []string
	args := []any{}
	if reporterID != "" {
		args = append(args, reporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *report)
	}
	return out, rows.Err()
}

type reportScanner interface {
	Scan(dest ...any) error
}

func scanReport(scanner reportScanner) (*reports.Report, error) {
	var (
		report     reports.Report
		reporterID sql.NullString
		photoPath  sql.NullString
		resolvedAt sql.NullTime
	)
	if err := scanner.Scan(
		&report.ID,
		&reporterID,
		&report.Description,
		&report.Latitude,
		&report.Longitude,
		&report.Status,
		&photoPath,
		&report.CreatedAt,
		&report.UpdatedAt,
		&resolvedAt,
	); err != nil {
		return nil, err
	}
	if reporterID.Valid {
		report.ReporterID = reporterID.String
	}
	if photoPath.Valid {
		report.PhotoPath = photoPath.String
	}
	if resolvedAt.Valid {
		at := resolvedAt.Time.UTC()
		report.ResolvedAt = &at
	}
	report.CreatedAt = report.CreatedAt.UTC()
	report.UpdatedAt = report.UpdatedAt.UTC()
	return &report, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTimePtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}
