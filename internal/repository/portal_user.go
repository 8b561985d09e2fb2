package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/util"
)

var portalUserColumns = map[string]string{
	model.FieldCustomer: "u.customer_id",
	model.FieldIdentity: "u.identity_id",
	model.FieldProfile:  "u.portal_profile_id",
	model.FieldEnabled:  "u.enabled",
	model.FieldRole:     "u.role",
}

type PortalUserRepository interface {
	FindByID(ctx context.Context, id string) (*model.PortalUser, error)
	FindCustomerByIdentity(ctx context.Context, identityID string) (string, error)
	ListDetailed(ctx context.Context, filter model.Filter) ([]model.PortalUserDetail, error)
	Count(ctx context.Context, filter model.Filter) (int, error)
	CountEnabledByIdentity(ctx context.Context, identityID string) (int, error)
	Create(ctx context.Context, params model.CreatePortalUserParams) (*model.PortalUser, error)
	Save(ctx context.Context, user *model.PortalUser) (*model.PortalUser, error)
	DisableByProfile(ctx context.Context, profileID string) ([]string, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PortalUserRepository
}

type portalUserRepo struct {
	db sqlxDB
}

func NewPortalUserRepository(db *sqlx.DB) PortalUserRepository {
	return &portalUserRepo{db: db}
}

func (r *portalUserRepo) WithTx(tx *sqlx.Tx) PortalUserRepository {
	return &portalUserRepo{db: tx}
}

type moduleRow struct {
	PortalUserID string `db:"portal_user_id"`
	model.ModuleAssignment
}

func (r *portalUserRepo) FindByID(ctx context.Context, id string) (*model.PortalUser, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var user model.PortalUser
	err := r.db.GetContext(ctx, &user, `SELECT * FROM portal_users WHERE id = $1`, id)
	found, err := HandleNotFound(&user, err)
	if err != nil || found == nil {
		return nil, err
	}

	modules, err := r.loadModules(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	found.Modules = modules[id]
	return found, nil
}

// FindCustomerByIdentity returns the customer of the identity's enabled portal
// user record, or "" when there is none.
func (r *portalUserRepo) FindCustomerByIdentity(ctx context.Context, identityID string) (string, error) {
	var customer string
	err := r.db.GetContext(ctx, &customer, `
		SELECT customer_id FROM portal_users
		WHERE identity_id = $1 AND enabled = TRUE
		LIMIT 1
	`, identityID)
	found, err := HandleNotFound(&customer, err)
	if err != nil || found == nil {
		return "", err
	}
	return *found, nil
}

func (r *portalUserRepo) ListDetailed(ctx context.Context, filter model.Filter) ([]model.PortalUserDetail, error) {
	where, args, err := buildWhere(filter, portalUserColumns, 1)
	if err != nil {
		return nil, err
	}

	users := []model.PortalUserDetail{}
	err = r.db.SelectContext(ctx, &users, `
		SELECT u.*,
			COALESCE(i.full_name, '') AS full_name,
			COALESCE(i.email, '') AS user_email,
			i.user_image AS user_image
		FROM portal_users u
		LEFT JOIN identities i ON i.id = u.identity_id`+where+`
		ORDER BY u.enabled DESC, u.identity_id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	modules, err := r.loadModules(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Modules = modules[users[i].ID]
	}
	return users, nil
}

func (r *portalUserRepo) Count(ctx context.Context, filter model.Filter) (int, error) {
	where, args, err := buildWhere(filter, portalUserColumns, 1)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM portal_users u`+where, args...)
	return count, err
}

func (r *portalUserRepo) CountEnabledByIdentity(ctx context.Context, identityID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM portal_users WHERE identity_id = $1 AND enabled = TRUE
	`, identityID)
	return count, err
}

// Create inserts the user and its module assignments. Callers run it inside a
// transaction so the two inserts commit together.
func (r *portalUserRepo) Create(ctx context.Context, params model.CreatePortalUserParams) (*model.PortalUser, error) {
	var user model.PortalUser
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO portal_users (id, customer_id, portal_profile_id, identity_id, role, start_date, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, uuid.NewString(), params.CustomerID, params.PortalProfileID, params.IdentityID,
		params.Role, params.StartDate, params.Enabled)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}

	if err := r.insertModules(ctx, user.ID, params.Modules); err != nil {
		return nil, err
	}
	user.Modules = params.Modules
	return &user, nil
}

// Save writes every mutable field and replaces the module collection.
func (r *portalUserRepo) Save(ctx context.Context, u *model.PortalUser) (*model.PortalUser, error) {
	var user model.PortalUser
	err := r.db.GetContext(ctx, &user, `
		UPDATE portal_users SET
			customer_id = $2,
			portal_profile_id = $3,
			identity_id = $4,
			role = $5,
			start_date = $6,
			enabled = $7,
			updated_at = $8
		WHERE id = $1
		RETURNING *
	`, u.ID, u.CustomerID, u.PortalProfileID, u.IdentityID, u.Role, u.StartDate, u.Enabled, time.Now())
	found, err := HandleNotFound(&user, mapUniqueViolation(err))
	if err != nil || found == nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM portal_user_modules WHERE portal_user_id = $1`, u.ID); err != nil {
		return nil, err
	}
	if err := r.insertModules(ctx, u.ID, u.Modules); err != nil {
		return nil, err
	}
	found.Modules = u.Modules
	return found, nil
}

// DisableByProfile sets enabled=false on every user linked to the profile and
// returns the affected identities.
func (r *portalUserRepo) DisableByProfile(ctx context.Context, profileID string) ([]string, error) {
	identities := []string{}
	err := r.db.SelectContext(ctx, &identities, `
		UPDATE portal_users SET enabled = FALSE, updated_at = $2
		WHERE portal_profile_id = $1
		RETURNING identity_id
	`, profileID, time.Now())
	if err != nil {
		return nil, err
	}
	return identities, nil
}

func (r *portalUserRepo) insertModules(ctx context.Context, userID string, modules []model.ModuleAssignment) error {
	for i, m := range modules {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO portal_user_modules (portal_user_id, idx, module_name, module_key, enabled)
			VALUES ($1, $2, $3, $4, $5)
		`, userID, i, m.ModuleName, m.ModuleKey, m.Enabled)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *portalUserRepo) loadModules(ctx context.Context, userIDs []string) (map[string][]model.ModuleAssignment, error) {
	var rows []moduleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT portal_user_id, module_name, module_key, enabled
		FROM portal_user_modules
		WHERE portal_user_id = ANY($1)
		ORDER BY portal_user_id, idx
	`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}

	result := make(map[string][]model.ModuleAssignment, len(userIDs))
	for _, id := range userIDs {
		result[id] = []model.ModuleAssignment{}
	}
	for _, row := range rows {
		result[row.PortalUserID] = append(result[row.PortalUserID], row.ModuleAssignment)
	}
	return result, nil
}
