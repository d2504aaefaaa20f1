package devices

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Registry persists device registrations in Postgres.
type Registry struct {
	db    *sql.DB
	table string
}

// NewRegistry constructs a device registry.
func NewRegistry(db *sql.DB) *Registry {
	if db == nil {
		return nil
	}
	return &Registry{db: db, table: "devices"}
}

// Upsert inserts or refreshes a registration keyed by device id.
func (r *Registry) Upsert(ctx context.Context, device Device) error {
	if r == nil || r.db == nil {
		return errors.New("device registry: nil db")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	const query = `
INSERT INTO devices (device_id, push_token, platform, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (device_id) DO UPDATE SET
	push_token = EXCLUDED.push_token,
	platform = EXCLUDED.platform,
	user_id = EXCLUDED.user_id,
	updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		device.DeviceID, device.PushToken, nullableString(device.Platform), nullableString(device.UserID), now)
	return err
}

// ListTokens returns all registered push tokens.
func (r *Registry) ListTokens(ctx context.Context) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device registry: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT push_token FROM devices ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
