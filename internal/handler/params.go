package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
)

const dateLayout = "2006-01-02"

// flexBool accepts true/false, 0/1 and their quoted forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	v, err := parseFlexBool(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

func parseFlexBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.ValidationFailed("Invalid request body").WithCause(err)
	}
	return nil
}

// profileFilterFields maps accepted query parameters onto filter fields.
var profileFilterFields = map[string]string{
	"customer":          model.FieldCustomer,
	"enabled":           model.FieldEnabled,
	"company_name":      model.FieldCompanyName,
	"tax_id":            model.FieldTaxID,
	"commercial_number": model.FieldCommercialNumber,
}

// parseProfileFilter turns query parameters into an equality filter. Unknown
// parameters are rejected.
func parseProfileFilter(r *http.Request) (model.Filter, error) {
	query := r.URL.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filter := model.MatchAll()
	for _, key := range keys {
		field, ok := profileFilterFields[key]
		if !ok {
			return model.Filter{}, apperrors.ValidationFailed("Unknown filter field: " + key)
		}

		raw := query.Get(key)
		var value any = raw
		if field == model.FieldEnabled {
			b, err := parseFlexBool(raw)
			if err != nil {
				return model.Filter{}, apperrors.InvalidInput("enabled", "expected 0, 1, true or false")
			}
			value = b
		}
		filter = filter.And(model.Where(field, value))
	}
	return filter, nil
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		return nil, apperrors.InvalidInput(field, "expected YYYY-MM-DD")
	}
	return &t, nil
}

type toggleRequest struct {
	Enabled *flexBool `json:"enabled"`
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type moduleRequest struct {
	ModuleName string    `json:"moduleName"`
	ModuleKey  string    `json:"moduleKey"`
	Enabled    *flexBool `json:"enabled"`
}

func toModules(in []moduleRequest) []model.ModuleAssignment {
	out := make([]model.ModuleAssignment, 0, len(in))
	for _, m := range in {
		out = append(out, model.ModuleAssignment{
			ModuleName: m.ModuleName,
			ModuleKey:  m.ModuleKey,
			Enabled:    m.Enabled != nil && bool(*m.Enabled),
		})
	}
	return out
}

type createProfileRequest struct {
	Customer         string    `json:"customer"`
	CompanyName      string    `json:"companyName"`
	CompanyLogo      *string   `json:"companyLogo"`
	CommercialNumber *string   `json:"commercialNumber"`
	TaxID            *string   `json:"taxId"`
	Enabled          *flexBool `json:"enabled"`
}

func (req createProfileRequest) params() model.CreatePortalProfileParams {
	return model.CreatePortalProfileParams{
		CustomerID:       req.Customer,
		CompanyName:      req.CompanyName,
		CompanyLogo:      req.CompanyLogo,
		CommercialNumber: req.CommercialNumber,
		TaxID:            req.TaxID,
		Enabled:          req.Enabled == nil || bool(*req.Enabled),
	}
}

type updateProfileRequest struct {
	CompanyName      *string   `json:"companyName"`
	CompanyLogo      *string   `json:"companyLogo"`
	CommercialNumber *string   `json:"commercialNumber"`
	TaxID            *string   `json:"taxId"`
	Enabled          *flexBool `json:"enabled"`
}

func (req updateProfileRequest) params() model.UpdatePortalProfileParams {
	params := model.UpdatePortalProfileParams{
		CompanyName:      req.CompanyName,
		CompanyLogo:      req.CompanyLogo,
		CommercialNumber: req.CommercialNumber,
		TaxID:            req.TaxID,
	}
	if req.Enabled != nil {
		enabled := bool(*req.Enabled)
		params.Enabled = &enabled
	}
	return params
}

type createUserRequest struct {
	Customer  string          `json:"customer"`
	User      string          `json:"user"`
	Role      string          `json:"role"`
	StartDate *string         `json:"startDate"`
	Modules   []moduleRequest `json:"modules"`
}

type updateUserRequest struct {
	Customer      *string          `json:"customer"`
	PortalProfile *string          `json:"portalProfile"`
	User          *string          `json:"user"`
	Role          *string          `json:"role"`
	StartDate     *string          `json:"startDate"`
	Enabled       *flexBool        `json:"enabled"`
	Modules       *[]moduleRequest `json:"modules"`
}

func (req updateUserRequest) params() (model.UpdatePortalUserParams, error) {
	startDate, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return model.UpdatePortalUserParams{}, err
	}

	params := model.UpdatePortalUserParams{
		CustomerID:      req.Customer,
		PortalProfileID: nonEmpty(req.PortalProfile),
		IdentityID:      req.User,
		Role:            req.Role,
		StartDate:       startDate,
	}
	if req.Enabled != nil {
		enabled := bool(*req.Enabled)
		params.Enabled = &enabled
	}
	if req.Modules != nil {
		modules := toModules(*req.Modules)
		params.Modules = &modules
	}
	return params, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
