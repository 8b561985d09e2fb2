package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/customer-portal-go/internal/model"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Customer, error)
	// Ensure creates the customer when missing and returns the stored row.
	Ensure(ctx context.Context, id string, name string) (*model.Customer, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) CustomerRepository
}

type customerRepo struct {
	db sqlxDB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) WithTx(tx *sqlx.Tx) CustomerRepository {
	return &customerRepo{db: tx}
}

func (r *customerRepo) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.GetContext(ctx, &customer, `SELECT * FROM customers WHERE id = $1`, id)
	return HandleNotFound(&customer, err)
}

func (r *customerRepo) Ensure(ctx context.Context, id string, name string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.GetContext(ctx, &customer, `
		INSERT INTO customers (id, customer_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET customer_name = customers.customer_name
		RETURNING *
	`, id, name)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
