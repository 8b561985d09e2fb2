package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/customer-portal-go/internal/model"
)

type IdentityRepository interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
	// LockForUpdate loads the identity holding a row lock until the
	// surrounding transaction ends. Role changes for one identity serialize on it.
	LockForUpdate(ctx context.Context, id string) (*model.Identity, error)
	Upsert(ctx context.Context, params model.CreateIdentityParams) (*model.Identity, error)
	Roles(ctx context.Context, id string) ([]string, error)
	HasRole(ctx context.Context, id string, role string) (bool, error)
	GrantRole(ctx context.Context, id string, role string) error
	RevokeRole(ctx context.Context, id string, role string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) IdentityRepository
}

type identityRepo struct {
	db sqlxDB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepo{db: db}
}

func (r *identityRepo) WithTx(tx *sqlx.Tx) IdentityRepository {
	return &identityRepo{db: tx}
}

func (r *identityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT * FROM identities WHERE id = $1`, id)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) LockForUpdate(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT * FROM identities WHERE id = $1 FOR UPDATE`, id)
	return HandleNotFound(&identity, err)
}

// Upsert creates the identity, or refreshes its display fields when it exists.
// An existing password hash is kept when params carries none.
func (r *identityRepo) Upsert(ctx context.Context, params model.CreateIdentityParams) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		INSERT INTO identities (id, email, full_name, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			password_hash = COALESCE(NULLIF(EXCLUDED.password_hash, ''), identities.password_hash)
		RETURNING *
	`, params.ID, params.Email, params.FullName, params.PasswordHash)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepo) Roles(ctx context.Context, id string) ([]string, error) {
	roles := []string{}
	err := r.db.SelectContext(ctx, &roles, `
		SELECT role FROM identity_roles WHERE identity_id = $1 ORDER BY role
	`, id)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *identityRepo) HasRole(ctx context.Context, id string, role string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM identity_roles WHERE identity_id = $1 AND role = $2)
	`, id, role)
	return exists, err
}

func (r *identityRepo) GrantRole(ctx context.Context, id string, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identity_roles (identity_id, role) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, id, role)
	return err
}

func (r *identityRepo) RevokeRole(ctx context.Context, id string, role string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM identity_roles WHERE identity_id = $1 AND role = $2
	`, id, role)
	return err
}
