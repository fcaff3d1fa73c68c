package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
)

// CustomerRepo represents customer repository.
type CustomerRepo struct{ db *pgxpool.Pool }

// NewCustomerRepo creates a new CustomerRepo.
func NewCustomerRepo(db *pgxpool.Pool) *CustomerRepo { return &CustomerRepo{db: db} }

// Get - returns customer by its ID.
func (r *CustomerRepo) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRow(ctx,
		`SELECT id, name, phone, email, push_token FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.PushToken)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return &c, nil
}

// Create - creates a new customer.
func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO customers (name, phone, email, push_token) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.Phone, c.Email, c.PushToken,
	).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create customer: %w", err)
	}
	return id, nil
}
