package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerProfile, error) {
	query := `
		SELECT id, first_name, last_name, phone, email, address
		FROM customers
		WHERE id = $1
	`

	var customer domain.CustomerProfile
	if err := sqlx.GetContext(ctx, executor(ctx, r.db), &customer, query, id); err != nil {
		return nil, err
	}
	return &customer, nil
}
