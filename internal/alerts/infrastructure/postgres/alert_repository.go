package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerts "safewatch-cloud/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

// AlertRepository is a Postgres repository for alerts.
type AlertRepository struct {
	db    *sql.DB
	table string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db, table: defaultAlertsTable}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.ID == "" || alert.Status == "" {
		return errors.New("alert repo: missing fields")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alerts (
	id, reporter_id, latitude, longitude, status, evidence_path,
	created_at, updated_at, resolved_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9
)`,
		alert.ID,
		nullableString(alert.ReporterID),
		alert.Latitude,
		alert.Longitude,
		alert.Status,
		nullableString(alert.EvidencePath),
		alert.CreatedAt,
		alert.UpdatedAt,
		nullableTime(alert.ResolvedAt),
	)
	return err
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, reporter_id, latitude, longitude, status, evidence_path,
	created_at, updated_at, resolved_at
FROM alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// MarkResolved marks an alert resolved, optionally attaching an evidence path.
func (r *AlertRepository) MarkResolved(ctx context.Context, id, evidencePath string, resolvedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $1, evidence_path = COALESCE($2, evidence_path), resolved_at = $3, updated_at = $4
WHERE id = $5`, alerts.StatusResolved, nullableString(evidencePath), resolvedAt, resolvedAt, id)
	return err
}

// ListByStatusAndTime lists alerts created within a time window, newest first.
func (r *AlertRepository) ListByStatusAndTime(ctx context.Context, status string, from, to time.Time) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := `
SELECT id, reporter_id, latitude, longitude, status, evidence_path,
	created_at, updated_at, resolved_at
FROM alerts
WHERE created_at >= $1 AND created_at < $2`
	args := []any{from, to}
	if status != "" {
		query += " AND status = $3"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountActive returns the number of alerts still in active status.
func (r *AlertRepository) CountActive(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM alerts WHERE status = $1`, alerts.StatusActive).Scan(&count)
	return count, err
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var reporterID sql.NullString
	var evidencePath sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&reporterID,
		&alert.Latitude,
		&alert.Longitude,
		&alert.Status,
		&evidencePath,
		&alert.CreatedAt,
		&alert.UpdatedAt,
		&resolvedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	if reporterID.Valid {
		alert.ReporterID = reporterID.String
	}
	if evidencePath.Valid {
		alert.EvidencePath = evidencePath.String
	}
	if resolvedAt.Valid {
		resolved := resolvedAt.Time.UTC()
		alert.ResolvedAt = &resolved
	}
	return &alert, nil
}

func nullableTime(value *time.Time) sql.NullTime {
	if value == nil || value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
