package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"parcel-dispatch/internal/domain"
)

const (
	settingCommissionRate = "commission_rate"
	settingMinimumPayout  = "minimum_payout"
)

// SettingsRepo reads platform settings stored as key/value rows.
type SettingsRepo struct {
	db       *pgxpool.Pool
	fallback domain.Commission
}

// NewSettingsRepo creates a new SettingsRepo. fallback is used for keys that are not stored.
func NewSettingsRepo(db *pgxpool.Pool, fallback domain.Commission) *SettingsRepo {
	return &SettingsRepo{db: db, fallback: fallback}
}

// Commission loads the payout configuration.
func (r *SettingsRepo) Commission(ctx context.Context) (domain.Commission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, value FROM settings WHERE key = ANY($1)`,
		[]string{settingCommissionRate, settingMinimumPayout},
	)
	if err != nil {
		return domain.Commission{}, fmt.Errorf("load commission settings: %w", err)
	}
	defer rows.Close()

	c := r.fallback
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Commission{}, err
		}
		switch key {
		case settingCommissionRate:
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil || rate <= 0 || rate > 1 {
				return domain.Commission{}, fmt.Errorf("invalid %s setting %q", key, value)
			}
			c.Rate = rate
		case settingMinimumPayout:
			minimum, err := strconv.ParseInt(value, 10, 64)
			if err != nil || minimum < 0 {
				return domain.Commission{}, fmt.Errorf("invalid %s setting %q", key, value)
			}
			c.MinimumPayout = minimum
		}
	}
	return c, rows.Err()
}

// Set upserts a setting value.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO settings (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
    `, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
