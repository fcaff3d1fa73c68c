package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"parcel-dispatch/internal/domain"
)

// EarningRepo represents rider earnings repository.
type EarningRepo struct{ db *pgxpool.Pool }

// NewEarningRepo creates a new EarningRepo.
func NewEarningRepo(db *pgxpool.Pool) *EarningRepo { return &EarningRepo{db: db} }

// ListForDelivery returns the earnings credited for a delivery.
func (r *EarningRepo) ListForDelivery(ctx context.Context, deliveryID int64) ([]domain.Earning, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, rider_id, delivery_id, amount, commission_rate, created_at
        FROM earnings
        WHERE delivery_id = $1
        ORDER BY id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list earnings for delivery %d: %w", deliveryID, err)
	}
	defer rows.Close()

	var out []domain.Earning
	for rows.Next() {
		var e domain.Earning
		if err := rows.Scan(&e.ID, &e.RiderID, &e.DeliveryID, &e.Amount, &e.CommissionRate, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WalletBalance returns the rider wallet balance, zero if the wallet does not exist yet.
func (r *EarningRepo) WalletBalance(ctx context.Context, riderID int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM rider_wallets WHERE rider_id = $1`, riderID).Scan(&balance)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get wallet of rider %d: %w", riderID, err)
	}
	return balance, nil
}
