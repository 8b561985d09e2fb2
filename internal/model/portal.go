package model

import (
	"strings"
	"time"
)

type PortalProfile struct {
	ID               string    `db:"id" json:"id"`
	CustomerID       string    `db:"customer_id" json:"customer"`
	CompanyName      string    `db:"company_name" json:"companyName"`
	CompanyLogo      *string   `db:"company_logo" json:"companyLogo,omitempty"`
	CommercialNumber *string   `db:"commercial_number" json:"commercialNumber,omitempty"`
	TaxID            *string   `db:"tax_id" json:"taxId,omitempty"`
	Enabled          bool      `db:"enabled" json:"enabled"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

type CreatePortalProfileParams struct {
	CustomerID       string
	CompanyName      string
	CompanyLogo      *string
	CommercialNumber *string
	TaxID            *string
	Enabled          bool
}

type UpdatePortalProfileParams struct {
	CompanyName      *string
	CompanyLogo      *string
	CommercialNumber *string
	TaxID            *string
	Enabled          *bool
}

type PortalUser struct {
	ID              string             `db:"id" json:"id"`
	CustomerID      string             `db:"customer_id" json:"customer"`
	PortalProfileID *string            `db:"portal_profile_id" json:"portalProfile"`
	IdentityID      string             `db:"identity_id" json:"user"`
	Role            string             `db:"role" json:"role"`
	StartDate       *time.Time         `db:"start_date" json:"startDate,omitempty"`
	Enabled         bool               `db:"enabled" json:"enabled"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updatedAt"`
	Modules         []ModuleAssignment `db:"-" json:"modules"`
}

// EnabledModuleKeys returns the keys of the assignments that are switched on.
func (u *PortalUser) EnabledModuleKeys() []string {
	keys := make([]string, 0, len(u.Modules))
	for _, m := range u.Modules {
		if m.Enabled {
			keys = append(keys, m.ModuleKey)
		}
	}
	return keys
}

// FieldValue returns the value of a logical filter field for the record.
func (u *PortalUser) FieldValue(field string) (any, bool) {
	switch field {
	case FieldCustomer:
		return u.CustomerID, true
	case FieldIdentity:
		return u.IdentityID, true
	case FieldEnabled:
		return u.Enabled, true
	case FieldRole:
		return u.Role, true
	case FieldProfile:
		if u.PortalProfileID == nil {
			return nil, true
		}
		return *u.PortalProfileID, true
	}
	return nil, false
}

type CreatePortalUserParams struct {
	CustomerID      string
	PortalProfileID *string
	IdentityID      string
	Role            string
	StartDate       *time.Time
	Enabled         bool
	Modules         []ModuleAssignment
}

type UpdatePortalUserParams struct {
	CustomerID      *string
	PortalProfileID *string
	IdentityID      *string
	Role            *string
	StartDate       *time.Time
	Enabled         *bool
	Modules         *[]ModuleAssignment
}

type ModuleAssignment struct {
	ModuleName string `db:"module_name" json:"moduleName"`
	ModuleKey  string `db:"module_key" json:"moduleKey"`
	Enabled    bool   `db:"enabled" json:"enabled"`
}

// NormalizeModuleKey lowercases the key and replaces spaces with underscores.
func NormalizeModuleKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), " ", "_")
}

// Normalized returns a copy with the key normalized. A blank key is derived from
// the module name.
func (m ModuleAssignment) Normalized() ModuleAssignment {
	key := m.ModuleKey
	if strings.TrimSpace(key) == "" {
		key = m.ModuleName
	}
	m.ModuleKey = NormalizeModuleKey(strings.TrimSpace(key))
	return m
}

// PortalUserDetail is a portal user enriched with its identity's display data.
type PortalUserDetail struct {
	PortalUser
	FullName       string   `db:"full_name" json:"fullName"`
	UserEmail      string   `db:"user_email" json:"userEmail"`
	UserImage      *string  `db:"user_image" json:"userImage,omitempty"`
	RoleName       string   `db:"-" json:"roleName"`
	EnabledModules []string `db:"-" json:"enabledModules"`
}

// PortalProfileDetail is a profile with dependent user counts and users.
type PortalProfileDetail struct {
	PortalProfile
	UserCount       int                `json:"userCount"`
	ActiveUserCount int                `json:"activeUserCount"`
	Users           []PortalUserDetail `json:"users"`
}

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// ModuleOption is an entry of the assignable module catalog.
type ModuleOption struct {
	ModuleName string `json:"moduleName"`
	ModuleKey  string `json:"moduleKey"`
}
