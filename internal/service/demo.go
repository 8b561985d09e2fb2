package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/customer-portal-go/internal/audit"
	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
)

const msgDemoDenied = "Only Customer Portal Admins can generate demo data"

type demoCompany struct {
	name             string
	email            string
	taxID            string
	commercialNumber string
}

var demoCompanies = []demoCompany{
	{name: "Tech Corp International", email: "admin@techcorp.com", taxID: "TAX-12345", commercialNumber: "CR-98765"},
	{name: "Global Solutions Ltd", email: "manager@globalsolutions.com", taxID: "TAX-67890", commercialNumber: "CR-54321"},
	{name: "Sunrise Trading Co", email: "info@sunrisetrading.com", taxID: "TAX-11223", commercialNumber: "CR-33445"},
}

func demoModules() []model.ModuleAssignment {
	return []model.ModuleAssignment{
		{ModuleName: "Invoices", ModuleKey: "invoices", Enabled: true},
		{ModuleName: "Orders", ModuleKey: "orders", Enabled: true},
		{ModuleName: "Support", ModuleKey: "support", Enabled: false},
	}
}

// DemoResult counts the records created by one run. Records that already
// existed are left as they are.
type DemoResult struct {
	Message   string         `json:"message"`
	Customers int            `json:"customers"`
	Users     int            `json:"users"`
	Profiles  int            `json:"profiles"`
	Links     int            `json:"portalUsers"`
	Notices   []model.Notice `json:"-"`
}

// GenerateDemoData seeds three customers, each with an identity, a profile and
// an enabled portal user. Running it again creates nothing new.
func (s *PortalService) GenerateDemoData(ctx context.Context, actor *model.Actor) (*DemoResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationSeed, "generate_demo_data", msgDemoDenied); err != nil {
		return nil, err
	}

	result := &DemoResult{}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	err := s.inTx(ctx, func(st Store) error {
		for _, c := range demoCompanies {
			if err := s.seedCompany(ctx, st, c, today, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Demo data generated successfully"
	s.metrics.Mutation("generate_demo_data")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventDemoData,
		ActorID: actorID(actor),
		Details: map[string]interface{}{
			"customers":   result.Customers,
			"profiles":    result.Profiles,
			"portalUsers": result.Links,
		},
	})
	return result, nil
}

func (s *PortalService) seedCompany(ctx context.Context, st Store, c demoCompany, startDate time.Time, result *DemoResult) error {
	existing, err := st.Customers.FindByID(ctx, c.name)
	if err != nil {
		return apperrors.Database(err)
	}
	if existing == nil {
		if _, err := st.Customers.Ensure(ctx, c.name, c.name); err != nil {
			return apperrors.Database(err)
		}
		result.Customers++
		log.Info().Str("customer", c.name).Msg("demo customer created")
	}

	identity, err := st.Identities.FindByID(ctx, c.email)
	if err != nil {
		return apperrors.Database(err)
	}
	if identity == nil {
		_, err := st.Identities.Upsert(ctx, model.CreateIdentityParams{
			ID:       c.email,
			Email:    c.email,
			FullName: strings.Fields(c.name)[0] + " Admin",
		})
		if err != nil {
			return apperrors.Database(err)
		}
		result.Users++
		log.Info().Str("user", c.email).Msg("demo identity created")
	}

	profile, err := st.Profiles.FindByCustomer(ctx, c.name)
	if err != nil {
		return apperrors.Database(err)
	}
	if profile == nil {
		taxID, commercial := c.taxID, c.commercialNumber
		_, notices, err := s.rules.saveProfile(ctx, st, &model.PortalProfile{
			CustomerID:       c.name,
			CompanyName:      c.name,
			TaxID:            &taxID,
			CommercialNumber: &commercial,
			Enabled:          true,
		}, true)
		if err != nil {
			return err
		}
		result.Profiles++
		result.Notices = append(result.Notices, notices...)
	}

	linked, err := st.Users.Count(ctx, model.Where(model.FieldIdentity, c.email))
	if err != nil {
		return apperrors.Database(err)
	}
	if linked > 0 {
		return nil
	}

	_, notices, err := s.rules.saveUser(ctx, st, &model.PortalUser{
		CustomerID: c.name,
		IdentityID: c.email,
		StartDate:  &startDate,
		Enabled:    true,
		Modules:    demoModules(),
	}, true, "")
	if err != nil {
		return err
	}
	result.Links++
	result.Notices = append(result.Notices, notices...)
	return nil
}
