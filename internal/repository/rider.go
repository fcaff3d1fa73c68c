package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
)

// RiderRepo represents rider repository.
type RiderRepo struct{ db *pgxpool.Pool }

// NewRiderRepo creates a new RiderRepo.
func NewRiderRepo(db *pgxpool.Pool) *RiderRepo { return &RiderRepo{db: db} }

// Get - returns rider by its ID.
func (r *RiderRepo) Get(ctx context.Context, id int64) (*domain.Rider, error) {
	rd, err := scanRider(r.db.QueryRow(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rider %d: %w", id, err)
	}
	return rd, nil
}

// Create - creates a new rider.
func (r *RiderRepo) Create(ctx context.Context, rd *domain.Rider) (int64, error) {
	var lat, lng *float64
	if rd.Location != nil {
		lat, lng = &rd.Location.Lat, &rd.Location.Lng
	}
	availability := rd.Availability
	if availability == "" {
		availability = domain.AvailabilityOffline
	}
	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO riders (
            name, phone, email, push_token, is_online, verification_status, is_suspended, is_active,
            availability, current_delivery_count, max_concurrent_deliveries, current_latitude, current_longitude
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `,
		rd.Name, rd.Phone, rd.Email, rd.PushToken, rd.IsOnline, string(rd.VerificationStatus), rd.IsSuspended, rd.IsActive,
		string(availability), rd.CurrentDeliveryCount, rd.MaxConcurrentDeliveries, lat, lng,
	).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create rider: %w", err)
	}
	return id, nil
}

// ListEligible returns riders that may receive offers and whose last location is inside box.
// The exact radius check is done by the caller.
func (r *RiderRepo) ListEligible(ctx context.Context, box domain.BoundingBox) ([]domain.Rider, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+riderColumns+`
        FROM riders
        WHERE is_online
          AND verification_status = 'verified'
          AND NOT is_suspended
          AND is_active
          AND current_delivery_count < max_concurrent_deliveries
          AND current_latitude IS NOT NULL
          AND current_longitude IS NOT NULL
          AND current_latitude BETWEEN $1 AND $2
          AND (
              current_longitude BETWEEN $3 AND $4
              OR current_longitude + 360 BETWEEN $3 AND $4
              OR current_longitude - 360 BETWEEN $3 AND $4
          )
        ORDER BY id
    `, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("list eligible riders: %w", err)
	}
	defer rows.Close()

	var out []domain.Rider
	for rows.Next() {
		rd, err := scanRider(rows)
		if err != nil {
			return nil, fmt.Errorf("list eligible riders: %w", err)
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}

// UpdateLocation stores the last known position. Last writer wins.
func (r *RiderRepo) UpdateLocation(ctx context.Context, id int64, p domain.GeoPoint, at time.Time) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE riders
        SET current_latitude = $2,
            current_longitude = $3,
            last_location_update = $4,
            updated_at = now()
        WHERE id = $1
    `, id, p.Lat, p.Lng, at)
	if err != nil {
		return fmt.Errorf("update rider %d location: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "rider not found")
	}
	return nil
}

// SetOnline toggles the online flag and returns the updated rider, or nil if it does not exist.
func (r *RiderRepo) SetOnline(ctx context.Context, id int64, online bool) (*domain.Rider, error) {
	rd, err := scanRider(r.db.QueryRow(ctx, `
        UPDATE riders
        SET is_online = $2,
            availability = CASE
                WHEN NOT $2 THEN 'offline'
                WHEN current_delivery_count > 0 THEN 'on_delivery'
                ELSE 'available'
            END,
            updated_at = now()
        WHERE id = $1
        RETURNING `+riderColumns, id, online))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("set rider %d online=%t: %w", id, online, err)
	}
	return rd, nil
}
