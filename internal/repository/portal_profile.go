package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/util"
)

var profileColumns = map[string]string{
	model.FieldCustomer:         "p.customer_id",
	model.FieldEnabled:          "p.enabled",
	model.FieldCompanyName:      "p.company_name",
	model.FieldTaxID:            "p.tax_id",
	model.FieldCommercialNumber: "p.commercial_number",
}

type PortalProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.PortalProfile, error)
	FindByCustomer(ctx context.Context, customerID string) (*model.PortalProfile, error)
	List(ctx context.Context, filter model.Filter) ([]model.PortalProfile, error)
	Count(ctx context.Context, filter model.Filter) (int, error)
	Create(ctx context.Context, params model.CreatePortalProfileParams) (*model.PortalProfile, error)
	Save(ctx context.Context, profile *model.PortalProfile) (*model.PortalProfile, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PortalProfileRepository
}

type portalProfileRepo struct {
	db sqlxDB
}

func NewPortalProfileRepository(db *sqlx.DB) PortalProfileRepository {
	return &portalProfileRepo{db: db}
}

func (r *portalProfileRepo) WithTx(tx *sqlx.Tx) PortalProfileRepository {
	return &portalProfileRepo{db: tx}
}

func (r *portalProfileRepo) FindByID(ctx context.Context, id string) (*model.PortalProfile, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var profile model.PortalProfile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM portal_profiles WHERE id = $1`, id)
	return HandleNotFound(&profile, err)
}

func (r *portalProfileRepo) FindByCustomer(ctx context.Context, customerID string) (*model.PortalProfile, error) {
	var profile model.PortalProfile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM portal_profiles WHERE customer_id = $1`, customerID)
	return HandleNotFound(&profile, err)
}

func (r *portalProfileRepo) List(ctx context.Context, filter model.Filter) ([]model.PortalProfile, error) {
	where, args, err := buildWhere(filter, profileColumns, 1)
	if err != nil {
		return nil, err
	}

	profiles := []model.PortalProfile{}
	err = r.db.SelectContext(ctx, &profiles, `SELECT p.* FROM portal_profiles p`+where+` ORDER BY p.company_name ASC, p.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *portalProfileRepo) Count(ctx context.Context, filter model.Filter) (int, error) {
	where, args, err := buildWhere(filter, profileColumns, 1)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM portal_profiles p`+where, args...)
	return count, err
}

func (r *portalProfileRepo) Create(ctx context.Context, params model.CreatePortalProfileParams) (*model.PortalProfile, error) {
	var profile model.PortalProfile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO portal_profiles (id, customer_id, company_name, company_logo, commercial_number, tax_id, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, uuid.NewString(), params.CustomerID, params.CompanyName, params.CompanyLogo,
		params.CommercialNumber, params.TaxID, params.Enabled)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &profile, nil
}

func (r *portalProfileRepo) Save(ctx context.Context, p *model.PortalProfile) (*model.PortalProfile, error) {
	var profile model.PortalProfile
	err := r.db.GetContext(ctx, &profile, `
		UPDATE portal_profiles SET
			company_name = $2,
			company_logo = $3,
			commercial_number = $4,
			tax_id = $5,
			enabled = $6,
			updated_at = $7
		WHERE id = $1
		RETURNING *
	`, p.ID, p.CompanyName, p.CompanyLogo, p.CommercialNumber, p.TaxID, p.Enabled, time.Now())
	if err != nil {
		return HandleNotFound(&profile, mapUniqueViolation(err))
	}
	return &profile, nil
}
