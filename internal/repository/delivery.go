package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/ports/deliverytx"
)

// DeliveryRepo represents delivery repository.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				panic(rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get returns delivery by its ID.
func (r *DeliveryRepo) Get(ctx context.Context, id int64) (*domain.Delivery, error) {
	d, err := scanDelivery(r.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %d: %w", id, err)
	}
	return d, nil
}

// GetByTrackingCode returns delivery by its customer-facing code.
func (r *DeliveryRepo) GetByTrackingCode(ctx context.Context, code string) (*domain.Delivery, error) {
	d, err := scanDelivery(r.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE tracking_code = $1`, code))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %q: %w", code, err)
	}
	return d, nil
}

// ListUnsettled returns delivered deliveries that have no earnings record for their rider.
func (r *DeliveryRepo) ListUnsettled(ctx context.Context, limit int) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries d
        WHERE d.status IN ('DELIVERED', 'COMPLETED')
          AND d.rider_id IS NOT NULL
          AND NOT EXISTS (
              SELECT 1 FROM earnings e
              WHERE e.delivery_id = d.id AND e.rider_id = d.rider_id
          )
        ORDER BY d.delivered_at NULLS LAST, d.id
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsettled deliveries: %w", err)
	}
	out, err := collectDeliveries(rows)
	if err != nil {
		return nil, fmt.Errorf("list unsettled deliveries: %w", err)
	}
	return out, nil
}

// ListSearching returns deliveries waiting for a rider since before the given time.
func (r *DeliveryRepo) ListSearching(ctx context.Context, before time.Time, limit int) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE status = 'SEARCHING_RIDER' AND rider_id IS NULL AND updated_at < $1
        ORDER BY updated_at
        LIMIT $2
    `, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list searching deliveries: %w", err)
	}
	out, err := collectDeliveries(rows)
	if err != nil {
		return nil, fmt.Errorf("list searching deliveries: %w", err)
	}
	return out, nil
}

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

var _ deliverytx.Repository = (*TxRepo)(nil)

// GetDelivery returns delivery by ID within the transaction.
func (r *TxRepo) GetDelivery(ctx context.Context, id int64) (*domain.Delivery, error) {
	d, err := scanDelivery(r.tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %d: %w", id, err)
	}
	return d, nil
}

// InsertDelivery - insert a new delivery.
func (r *TxRepo) InsertDelivery(ctx context.Context, d *domain.Delivery) error {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO deliveries (
            tracking_code, customer_id, delivery_type, status, payment_status,
            pickup_address, pickup_latitude, pickup_longitude,
            dropoff_address, dropoff_latitude, dropoff_longitude,
            parcel, price, total_price, can_reschedule, scheduled_at, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
        RETURNING id, version
    `,
		d.TrackingCode, d.CustomerID, string(d.Type), string(d.Status), string(d.PaymentStatus),
		d.Pickup.Address, d.Pickup.Lat, d.Pickup.Lng,
		d.Dropoff.Address, d.Dropoff.Lat, d.Dropoff.Lng,
		d.Parcel, d.Price, d.Price.Total, d.CanReschedule, d.ScheduledAt, d.CreatedAt,
	).Scan(&d.ID, &d.Version)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// AssignRider - first-accept-wins assignment.
func (r *TxRepo) AssignRider(ctx context.Context, deliveryID, riderID int64, at time.Time) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET rider_id = $2,
            status = 'RIDER_ACCEPTED',
            accepted_at = COALESCE(accepted_at, $3),
            updated_at = $3,
            version = version + 1
        WHERE id = $1
          AND rider_id IS NULL
          AND status IN ('PENDING', 'SEARCHING_RIDER')
    `, deliveryID, riderID, at)
	if err != nil {
		return false, fmt.Errorf("assign rider %d to delivery %d: %w", riderID, deliveryID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// UnassignRider - the single sanctioned rollback to SEARCHING_RIDER.
func (r *TxRepo) UnassignRider(ctx context.Context, deliveryID, riderID int64, at time.Time) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET rider_id = NULL,
            status = 'SEARCHING_RIDER',
            can_reschedule = true,
            updated_at = $3,
            version = version + 1
        WHERE id = $1
          AND rider_id = $2
          AND status IN ('RIDER_ACCEPTED', 'RIDER_ASSIGNED')
    `, deliveryID, riderID, at)
	if err != nil {
		return false, fmt.Errorf("unassign rider %d from delivery %d: %w", riderID, deliveryID, err)
	}
	return ct.RowsAffected() == 1, nil
}

var stampColumns = map[domain.DeliveryStatus]string{
	domain.StatusRiderAccepted:       "accepted_at",
	domain.StatusRiderAssigned:       "accepted_at",
	domain.StatusRiderArrivedPickup:  "arrived_pickup_at",
	domain.StatusPickedUp:            "picked_up_at",
	domain.StatusRiderArrivedDropoff: "arrived_dropoff_at",
	domain.StatusDelivered:           "delivered_at",
	domain.StatusCompleted:           "completed_at",
	domain.StatusCancelled:           "cancelled_at",
	domain.StatusFailed:              "failed_at",
}

// TransitionStatus - compare-and-set on (status, version).
func (r *TxRepo) TransitionStatus(ctx context.Context, c domain.StatusChange) (bool, error) {
	q := `
        UPDATE deliveries
        SET status = $4,
            updated_at = $5,
            version = version + 1,
            can_reschedule = CASE WHEN $4 = 'RIDER_ARRIVED_PICKUP' THEN false ELSE can_reschedule END,
            cancellation_reason = CASE WHEN $4 = 'CANCELLED' THEN $6 ELSE cancellation_reason END,
            cancellation_fee = CASE WHEN $4 = 'CANCELLED' THEN $7 ELSE cancellation_fee END`
	if col, ok := stampColumns[c.To]; ok {
		q += fmt.Sprintf(`,
            %s = COALESCE(%s, $5)`, col, col)
	}
	q += `
        WHERE id = $1 AND status = $2 AND version = $3`

	ct, err := r.tx.Exec(ctx, q,
		c.DeliveryID, string(c.From), c.Version, string(c.To), c.At, c.CancellationReason, c.CancellationFee)
	if err != nil {
		return false, fmt.Errorf("transition delivery %d %s->%s: %w", c.DeliveryID, c.From, c.To, err)
	}
	return ct.RowsAffected() == 1, nil
}

// VerifyPickupPin - sets the pickup flag once and moves to PICKUP_IN_PROGRESS.
func (r *TxRepo) VerifyPickupPin(ctx context.Context, deliveryID, riderID int64, pin string, at time.Time) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET pickup_pin_verified = true,
            status = 'PICKUP_IN_PROGRESS',
            updated_at = $4,
            version = version + 1
        WHERE id = $1
          AND rider_id = $2
          AND pickup_pin = $3
          AND NOT pickup_pin_verified
          AND payment_status = 'PAID'
          AND status IN ('RIDER_ARRIVED_PICKUP', 'PAYMENT_CONFIRMED', 'PICKUP_IN_PROGRESS')
    `, deliveryID, riderID, pin, at)
	if err != nil {
		return false, fmt.Errorf("verify pickup pin of delivery %d: %w", deliveryID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// VerifyDeliveryPin - sets the delivery flag once and moves to DELIVERED.
func (r *TxRepo) VerifyDeliveryPin(ctx context.Context, deliveryID, riderID int64, pin string, at time.Time) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET delivery_pin_verified = true,
            status = 'DELIVERED',
            delivered_at = COALESCE(delivered_at, $4),
            updated_at = $4,
            version = version + 1
        WHERE id = $1
          AND rider_id = $2
          AND delivery_pin = $3
          AND NOT delivery_pin_verified
          AND status IN ('IN_TRANSIT', 'RIDER_ARRIVED_DROPOFF', 'DELIVERY_IN_PROGRESS')
    `, deliveryID, riderID, pin, at)
	if err != nil {
		return false, fmt.Errorf("verify delivery pin of delivery %d: %w", deliveryID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// SetPins - write-once PIN storage.
func (r *TxRepo) SetPins(ctx context.Context, deliveryID int64, pickupPin, deliveryPin string) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET pickup_pin = COALESCE(pickup_pin, $2),
            delivery_pin = COALESCE(delivery_pin, $3),
            updated_at = now()
        WHERE id = $1
    `, deliveryID, pickupPin, deliveryPin)
	if err != nil {
		return fmt.Errorf("set pins of delivery %d: %w", deliveryID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %d not found", deliveryID)
	}
	return nil
}

// SetPaymentStatus - update payment status.
func (r *TxRepo) SetPaymentStatus(ctx context.Context, deliveryID int64, status domain.PaymentStatus) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries SET payment_status = $2, updated_at = now() WHERE id = $1
    `, deliveryID, string(status))
	if err != nil {
		return fmt.Errorf("set payment status of delivery %d: %w", deliveryID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %d not found", deliveryID)
	}
	return nil
}

// GetRider returns rider by ID within the transaction.
func (r *TxRepo) GetRider(ctx context.Context, id int64) (*domain.Rider, error) {
	rd, err := scanRider(r.tx.QueryRow(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rider %d: %w", id, err)
	}
	return rd, nil
}

// ReserveRider - conditional capacity increment.
func (r *TxRepo) ReserveRider(ctx context.Context, riderID int64) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE riders
        SET current_delivery_count = current_delivery_count + 1,
            availability = 'on_delivery',
            updated_at = now()
        WHERE id = $1
          AND is_online
          AND verification_status = 'verified'
          AND NOT is_suspended
          AND is_active
          AND current_delivery_count < max_concurrent_deliveries
    `, riderID)
	if err != nil {
		return false, fmt.Errorf("reserve rider %d: %w", riderID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// ReleaseRider - capacity decrement, never below zero.
func (r *TxRepo) ReleaseRider(ctx context.Context, riderID int64) error {
	_, err := r.tx.Exec(ctx, `
        UPDATE riders
        SET current_delivery_count = GREATEST(current_delivery_count - 1, 0),
            availability = CASE
                WHEN current_delivery_count - 1 > 0 THEN availability
                WHEN is_online THEN 'available'
                ELSE 'offline'
            END,
            updated_at = now()
        WHERE id = $1
    `, riderID)
	if err != nil {
		return fmt.Errorf("release rider %d: %w", riderID, err)
	}
	return nil
}

// InsertEarning - idempotent on (rider_id, delivery_id).
func (r *TxRepo) InsertEarning(ctx context.Context, e *domain.Earning) (bool, error) {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO earnings (rider_id, delivery_id, amount, commission_rate)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (rider_id, delivery_id) DO NOTHING
        RETURNING id, created_at
    `, e.RiderID, e.DeliveryID, e.Amount, e.CommissionRate).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert earning rider %d delivery %d: %w", e.RiderID, e.DeliveryID, err)
	}
	return true, nil
}

// CreditWallet - increments the rider wallet balance.
func (r *TxRepo) CreditWallet(ctx context.Context, riderID, amount int64) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO rider_wallets (rider_id, balance)
        VALUES ($1, $2)
        ON CONFLICT (rider_id) DO UPDATE
        SET balance = rider_wallets.balance + EXCLUDED.balance,
            updated_at = now()
    `, riderID, amount)
	if err != nil {
		return fmt.Errorf("credit wallet of rider %d: %w", riderID, err)
	}
	return nil
}
