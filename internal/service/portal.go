package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/customer-portal-go/internal/access"
	"github.com/openclaw/customer-portal-go/internal/audit"
	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/metrics"
	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/repository"
)

const (
	msgToggleUsersDenied    = "Only Customer Portal Admins can enable/disable users"
	msgToggleProfilesDenied = "Only Customer Portal Admins can enable/disable profiles"
	msgCreateUsersDenied    = "Only Customer Portal Admins can create users"
	msgUpdateUsersDenied    = "Only Customer Portal Admins can update users"
	msgCreateProfileDenied  = "Only Customer Portal Admins can create profiles"
	msgUpdateProfileDenied  = "Only Customer Portal Admins can update profiles"
	msgModulesDenied        = "You do not have permission to view this user's modules"
	msgUserDenied           = "You do not have permission to view this user"
)

var availableModules = []model.ModuleOption{
	{ModuleName: "Dashboard", ModuleKey: "dashboard"},
	{ModuleName: "Orders", ModuleKey: "orders"},
	{ModuleName: "Invoices", ModuleKey: "invoices"},
	{ModuleName: "Payments", ModuleKey: "payments"},
	{ModuleName: "Products", ModuleKey: "products"},
	{ModuleName: "Reports", ModuleKey: "reports"},
	{ModuleName: "Support", ModuleKey: "support"},
	{ModuleName: "Settings", ModuleKey: "settings"},
}

type UserResult struct {
	Message string
	User    *model.PortalUser
	Notices []model.Notice
}

type ProfileResult struct {
	Message string
	Profile *model.PortalProfile
	Notices []model.Notice
}

type CreateUserInput struct {
	CustomerID string
	IdentityID string
	Role       string
	StartDate  *time.Time
	Modules    []model.ModuleAssignment
}

type PortalService struct {
	tx      TxRunner
	store   Store
	policy  *access.Policy
	metrics metrics.Recorder
	rules   rules
}

func NewPortalService(tx TxRunner, store Store, policy *access.Policy, recorder metrics.Recorder) *PortalService {
	if recorder == nil {
		recorder = metrics.Nop
	}
	s := &PortalService{
		tx:      tx,
		store:   store,
		policy:  policy,
		metrics: recorder,
	}
	s.rules = rules{svc: s}
	return s
}

func (s *PortalService) Policy() *access.Policy {
	return s.policy
}

// inTx runs fn against a transaction-bound Store. Work queued with
// Store.afterCommit runs only when the transaction commits.
func (s *PortalService) inTx(ctx context.Context, fn func(st Store) error) error {
	var pending []func()
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		pending = pending[:0]
		st := s.store
		st.commit = &pending
		return fn(st.WithTx(tx))
	})
	if err != nil {
		return err
	}
	for _, run := range pending {
		run()
	}
	return nil
}

// denied records a policy rejection and passes err through.
func (s *PortalService) denied(ctx context.Context, actor *model.Actor, operation string, err error) error {
	if apperrors.IsPermissionDenied(err) {
		s.metrics.PermissionDenied(operation)
		actorID := ""
		if actor != nil {
			actorID = actor.ID
		}
		audit.Log(ctx, audit.Event{
			Type:    audit.EventPermissionDenied,
			ActorID: actorID,
			Details: map[string]interface{}{"operation": operation},
		})
	}
	return err
}

func (s *PortalService) requireAdmin(ctx context.Context, actor *model.Actor, op model.Operation, operation, message string) error {
	return s.denied(ctx, actor, operation, s.policy.RequireAdmin(actor, op, message))
}

func actorID(actor *model.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// ListProfiles returns the profiles visible to actor, narrowed by extra and
// ordered by company name, each with its user counts and users.
func (s *PortalService) ListProfiles(ctx context.Context, actor *model.Actor, extra model.Filter) ([]model.PortalProfileDetail, error) {
	visible, err := s.policy.VisibilityFilter(ctx, actor, model.RecordKindProfile)
	if err != nil {
		return nil, err
	}

	profiles, err := s.store.Profiles.List(ctx, visible.And(extra))
	if err != nil {
		if errors.Is(err, repository.ErrUnknownField) {
			return nil, apperrors.ValidationFailed(err.Error())
		}
		return nil, apperrors.Database(err)
	}

	details := make([]model.PortalProfileDetail, 0, len(profiles))
	for _, p := range profiles {
		detail, err := s.enrichProfile(ctx, p)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

func (s *PortalService) enrichProfile(ctx context.Context, p model.PortalProfile) (*model.PortalProfileDetail, error) {
	byProfile := model.Where(model.FieldProfile, p.ID)
	total, err := s.store.Users.Count(ctx, byProfile)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	active, err := s.store.Users.Count(ctx, byProfile.And(model.Where(model.FieldEnabled, true)))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	users, err := s.customerUsers(ctx, p.CustomerID)
	if err != nil {
		return nil, err
	}

	return &model.PortalProfileDetail{
		PortalProfile:   p,
		UserCount:       total,
		ActiveUserCount: active,
		Users:           users,
	}, nil
}

// ListUsers returns the portal users of customer, enabled first, then by identity.
func (s *PortalService) ListUsers(ctx context.Context, actor *model.Actor, customer string) ([]model.PortalUserDetail, error) {
	if err := s.policy.AssertCustomerAccess(ctx, actor, customer); err != nil {
		return nil, s.denied(ctx, actor, "list_users", err)
	}
	return s.customerUsers(ctx, customer)
}

func (s *PortalService) customerUsers(ctx context.Context, customer string) ([]model.PortalUserDetail, error) {
	users, err := s.store.Users.ListDetailed(ctx, model.Where(model.FieldCustomer, customer))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	for i := range users {
		enrichUser(&users[i])
	}
	return users, nil
}

func enrichUser(u *model.PortalUserDetail) {
	u.RoleName = u.Role
	u.EnabledModules = u.EnabledModuleKeys()
	if u.Modules == nil {
		u.Modules = []model.ModuleAssignment{}
	}
}

// ListModules returns the module assignments of a portal user. Only admins and
// the owning identity may read them.
func (s *PortalService) ListModules(ctx context.Context, actor *model.Actor, portalUserID string) ([]model.ModuleAssignment, error) {
	user, err := s.store.Users.FindByID(ctx, portalUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("Customer Portal User")
	}

	if err := s.canSeeUser(ctx, actor, user, "list_modules", msgModulesDenied); err != nil {
		return nil, err
	}
	if user.Modules == nil {
		return []model.ModuleAssignment{}, nil
	}
	return user.Modules, nil
}

// canSeeUser applies the portal user visibility filter to a single record.
func (s *PortalService) canSeeUser(ctx context.Context, actor *model.Actor, user *model.PortalUser, operation, message string) error {
	filter, err := s.policy.VisibilityFilter(ctx, actor, model.RecordKindUser)
	if err != nil {
		return err
	}
	if !filter.Admits(user.FieldValue) {
		return s.denied(ctx, actor, operation, apperrors.PermissionDenied(message))
	}
	return nil
}

// GetProfile returns one profile if actor is an admin or linked to its customer.
func (s *PortalService) GetProfile(ctx context.Context, actor *model.Actor, id string) (*model.PortalProfileDetail, error) {
	profile, err := s.store.Profiles.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Customer Portal Profile")
	}
	if err := s.policy.AssertCustomerAccess(ctx, actor, profile.CustomerID); err != nil {
		return nil, s.denied(ctx, actor, "get_profile", err)
	}
	return s.enrichProfile(ctx, *profile)
}

// GetUser returns one portal user if actor is an admin or owns the record.
func (s *PortalService) GetUser(ctx context.Context, actor *model.Actor, id string) (*model.PortalUserDetail, error) {
	user, err := s.store.Users.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("Customer Portal User")
	}
	if err := s.canSeeUser(ctx, actor, user, "get_user", msgUserDenied); err != nil {
		return nil, err
	}

	detail := &model.PortalUserDetail{PortalUser: *user}
	identity, err := s.store.Identities.FindByID(ctx, user.IdentityID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if identity != nil {
		detail.FullName = identity.FullName
		detail.UserEmail = identity.Email
		detail.UserImage = identity.UserImage
	}
	enrichUser(detail)
	return detail, nil
}

func (s *PortalService) ToggleUser(ctx context.Context, actor *model.Actor, id string, enabled bool) (*UserResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationToggle, "toggle_user", msgToggleUsersDenied); err != nil {
		return nil, err
	}

	var result UserResult
	err := s.inTx(ctx, func(st Store) error {
		user, err := st.Users.FindByID(ctx, id)
		if err != nil {
			return apperrors.Database(err)
		}
		if user == nil {
			return apperrors.NotFound("Customer Portal User")
		}

		user.Enabled = enabled
		saved, notices, err := s.rules.saveUser(ctx, st, user, false, "")
		if err != nil {
			return err
		}
		result.User = saved
		result.Notices = notices
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "User " + result.User.IdentityID + " has been " + enabledWord(enabled)
	s.metrics.Mutation("toggle_user")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventUserToggle,
		ActorID:  actorID(actor),
		Customer: result.User.CustomerID,
		TargetID: result.User.ID,
		Details:  map[string]interface{}{"enabled": enabled},
	})
	return &result, nil
}

func (s *PortalService) ToggleProfile(ctx context.Context, actor *model.Actor, id string, enabled bool) (*ProfileResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationToggle, "toggle_profile", msgToggleProfilesDenied); err != nil {
		return nil, err
	}

	var result ProfileResult
	err := s.inTx(ctx, func(st Store) error {
		profile, err := st.Profiles.FindByID(ctx, id)
		if err != nil {
			return apperrors.Database(err)
		}
		if profile == nil {
			return apperrors.NotFound("Customer Portal Profile")
		}

		profile.Enabled = enabled
		saved, notices, err := s.rules.saveProfile(ctx, st, profile, false)
		if err != nil {
			return err
		}
		result.Profile = saved
		result.Notices = notices
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Profile " + result.Profile.CompanyName + " has been " + enabledWord(enabled)
	s.metrics.Mutation("toggle_profile")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventProfileToggle,
		ActorID:  actorID(actor),
		Customer: result.Profile.CustomerID,
		TargetID: result.Profile.ID,
		Details:  map[string]interface{}{"enabled": enabled},
	})
	return &result, nil
}

// CreateProfile adds the portal profile of a customer. The company name
// defaults to the customer's name.
func (s *PortalService) CreateProfile(ctx context.Context, actor *model.Actor, params model.CreatePortalProfileParams) (*ProfileResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationCreate, "create_profile", msgCreateProfileDenied); err != nil {
		return nil, err
	}
	if params.CustomerID == "" {
		return nil, apperrors.MissingRequired("customer")
	}

	var result ProfileResult
	err := s.inTx(ctx, func(st Store) error {
		customer, err := st.Customers.FindByID(ctx, params.CustomerID)
		if err != nil {
			return apperrors.Database(err)
		}
		if customer == nil {
			return apperrors.NotFound("Customer " + params.CustomerID)
		}

		saved, notices, err := s.rules.saveProfile(ctx, st, &model.PortalProfile{
			CustomerID:       params.CustomerID,
			CompanyName:      params.CompanyName,
			CompanyLogo:      params.CompanyLogo,
			CommercialNumber: params.CommercialNumber,
			TaxID:            params.TaxID,
			Enabled:          params.Enabled,
		}, true)
		if err != nil {
			return err
		}
		result.Profile = saved
		result.Notices = notices
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Portal profile created successfully"
	s.metrics.Mutation("create_profile")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventProfileCreate,
		ActorID:  actorID(actor),
		Customer: result.Profile.CustomerID,
		TargetID: result.Profile.ID,
	})
	return &result, nil
}

// UpdateProfile applies the non-nil fields of params. The customer of a
// profile cannot change.
func (s *PortalService) UpdateProfile(ctx context.Context, actor *model.Actor, id string, params model.UpdatePortalProfileParams) (*ProfileResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationUpdate, "update_profile", msgUpdateProfileDenied); err != nil {
		return nil, err
	}

	var result ProfileResult
	err := s.inTx(ctx, func(st Store) error {
		profile, err := st.Profiles.FindByID(ctx, id)
		if err != nil {
			return apperrors.Database(err)
		}
		if profile == nil {
			return apperrors.NotFound("Customer Portal Profile")
		}

		if params.CompanyName != nil {
			profile.CompanyName = *params.CompanyName
		}
		if params.CompanyLogo != nil {
			profile.CompanyLogo = params.CompanyLogo
		}
		if params.CommercialNumber != nil {
			profile.CommercialNumber = params.CommercialNumber
		}
		if params.TaxID != nil {
			profile.TaxID = params.TaxID
		}
		if params.Enabled != nil {
			profile.Enabled = *params.Enabled
		}

		saved, notices, err := s.rules.saveProfile(ctx, st, profile, false)
		if err != nil {
			return err
		}
		result.Profile = saved
		result.Notices = notices
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Portal profile updated successfully"
	s.metrics.Mutation("update_profile")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventProfileUpdate,
		ActorID:  actorID(actor),
		Customer: result.Profile.CustomerID,
		TargetID: result.Profile.ID,
	})
	return &result, nil
}

// CreateUser links an identity to a customer as an enabled portal user. The
// profile reference is resolved from the customer and may stay empty. Modules
// are stored as given apart from key normalization.
func (s *PortalService) CreateUser(ctx context.Context, actor *model.Actor, in CreateUserInput) (*UserResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationCreate, "create_user", msgCreateUsersDenied); err != nil {
		return nil, err
	}
	if in.CustomerID == "" {
		return nil, apperrors.MissingRequired("customer")
	}
	if in.IdentityID == "" {
		return nil, apperrors.MissingRequired("user")
	}

	var result UserResult
	err := s.inTx(ctx, func(st Store) error {
		if err := requireLinks(ctx, st, in.CustomerID, in.IdentityID); err != nil {
			return err
		}

		saved, notices, err := s.rules.saveUser(ctx, st, &model.PortalUser{
			CustomerID: in.CustomerID,
			IdentityID: in.IdentityID,
			Role:       in.Role,
			StartDate:  in.StartDate,
			Enabled:    true,
			Modules:    in.Modules,
		}, true, "")
		if err != nil {
			return err
		}
		result.User = saved
		result.Notices = notices
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Portal user created successfully"
	s.metrics.Mutation("create_user")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventUserCreate,
		ActorID:  actorID(actor),
		Customer: result.User.CustomerID,
		TargetID: result.User.ID,
		Details:  map[string]interface{}{"user": result.User.IdentityID},
	})
	return &result, nil
}

// requireLinks checks that the referenced customer and identity exist.
func requireLinks(ctx context.Context, st Store, customerID, identityID string) error {
	customer, err := st.Customers.FindByID(ctx, customerID)
	if err != nil {
		return apperrors.Database(err)
	}
	if customer == nil {
		return apperrors.NotFound("Customer " + customerID)
	}

	identity, err := st.Identities.FindByID(ctx, identityID)
	if err != nil {
		return apperrors.Database(err)
	}
	if identity == nil {
		return apperrors.NotFound("User " + identityID)
	}
	return nil
}

// UpdateUser applies the non-nil fields of params. Modules, when given,
// replace the whole collection. Moving a user to another customer without
// naming a profile re-resolves the profile from the new customer.
func (s *PortalService) UpdateUser(ctx context.Context, actor *model.Actor, id string, params model.UpdatePortalUserParams) (*UserResult, error) {
	if err := s.requireAdmin(ctx, actor, model.OperationUpdate, "update_user", msgUpdateUsersDenied); err != nil {
		return nil, err
	}

	var result UserResult
	err := s.inTx(ctx, func(st Store) error {
		user, err := st.Users.FindByID(ctx, id)
		if err != nil {
			return apperrors.Database(err)
		}
		if user == nil {
			return apperrors.NotFound("Customer Portal User")
		}

		previousIdentity := user.IdentityID
		if params.CustomerID != nil && *params.CustomerID != user.CustomerID {
			user.CustomerID = *params.CustomerID
			if params.PortalProfileID == nil {
				user.PortalProfileID = nil
			}
		}
		if params.PortalProfileID != nil {
			user.PortalProfileID = params.PortalProfileID
			if *params.PortalProfileID != "" {
				profile, err := st.Profiles.FindByID(ctx, *params.PortalProfileID)
				if err != nil {
					return apperrors.Database(err)
				}
				if profile == nil {
					return apperrors.NotFound("Customer Portal Profile " + *params.PortalProfileID)
				}
				if profile.CustomerID != user.CustomerID {
					return apperrors.ValidationFailed(fmt.Sprintf(
						"Portal profile %s belongs to customer %s, not %s",
						profile.ID, profile.CustomerID, user.CustomerID))
				}
			}
		}
		if params.IdentityID != nil {
			user.IdentityID = *params.IdentityID
		}
		if params.Role != nil {
			user.Role = *params.Role
		}
		if params.StartDate != nil {
			user.StartDate = params.StartDate
		}
		if params.Enabled != nil {
			user.Enabled = *params.Enabled
		}
		if params.Modules != nil {
			user.Modules = *params.Modules
		}

		if user.CustomerID != "" && (params.CustomerID != nil || params.IdentityID != nil) {
			if err := requireLinks(ctx, st, user.CustomerID, user.IdentityID); err != nil {
				return err
			}
		}

		saved, notices, err := s.rules.saveUser(ctx, st, user, false, previousIdentity)
		if err != nil {
			return err
		}
		result.User = saved
		result.Notices = notices
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Portal user updated successfully"
	s.metrics.Mutation("update_user")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventUserUpdate,
		ActorID:  actorID(actor),
		Customer: result.User.CustomerID,
		TargetID: result.User.ID,
	})
	return &result, nil
}

// AvailableModules returns the fixed module catalog.
func (s *PortalService) AvailableModules() []model.ModuleOption {
	out := make([]model.ModuleOption, len(availableModules))
	copy(out, availableModules)
	return out
}

// DashboardStats returns global counts for admins, counts scoped to the
// actor's customer for linked users, and an empty map otherwise.
func (s *PortalService) DashboardStats(ctx context.Context, actor *model.Actor) (map[string]int, error) {
	enabled := model.Where(model.FieldEnabled, true)
	disabled := model.Where(model.FieldEnabled, false)

	type count struct {
		key    string
		filter model.Filter
		users  bool
	}
	var counts []count

	if s.policy.IsAdmin(actor) {
		counts = []count{
			{"total_profiles", model.MatchAll(), false},
			{"active_profiles", enabled, false},
			{"disabled_profiles", disabled, false},
			{"total_users", model.MatchAll(), true},
			{"active_users", enabled, true},
			{"disabled_users", disabled, true},
		}
	} else {
		customer, err := s.policy.CustomerOf(ctx, actor)
		if err != nil {
			return nil, err
		}
		if customer == "" {
			return map[string]int{}, nil
		}
		byCustomer := model.Where(model.FieldCustomer, customer)
		counts = []count{
			{"active_profiles", byCustomer.And(enabled), false},
			{"total_users", byCustomer, true},
			{"active_users", byCustomer.And(enabled), true},
		}
	}

	stats := make(map[string]int, len(counts)+1)
	if !s.policy.IsAdmin(actor) {
		stats["total_profiles"] = 1
	}
	for _, c := range counts {
		var n int
		var err error
		if c.users {
			n, err = s.store.Users.Count(ctx, c.filter)
		} else {
			n, err = s.store.Profiles.Count(ctx, c.filter)
		}
		if err != nil {
			return nil, apperrors.Database(err)
		}
		stats[c.key] = n
	}

	log.Debug().Str("actor", actorID(actor)).Interface("stats", stats).Msg("dashboard stats computed")
	return stats, nil
}
