package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/customer-portal-go/internal/audit"
	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/repository"
)

const (
	msgProfileDisabledWarning = "The portal profile for this customer is disabled. This user will not have access until the profile is enabled."
	msgProfileCascade         = "All users linked to this profile have been disabled."
)

// rules applies the write-time invariants between profiles, users and role
// grants. Every method runs against a transaction-bound Store.
type rules struct {
	svc *PortalService
}

func noticef(level model.NoticeLevel, format string, args ...any) model.Notice {
	return model.Notice{Level: level, Message: fmt.Sprintf(format, args...)}
}

// linkProfile resolves an empty profile reference to the customer's profile.
// A customer without a profile leaves the reference empty.
func (r rules) linkProfile(ctx context.Context, st Store, user *model.PortalUser) error {
	if user.PortalProfileID != nil && *user.PortalProfileID != "" {
		return nil
	}
	user.PortalProfileID = nil
	if user.CustomerID == "" {
		return nil
	}

	profile, err := st.Profiles.FindByCustomer(ctx, user.CustomerID)
	if err != nil {
		return apperrors.Database(err)
	}
	if profile != nil {
		user.PortalProfileID = &profile.ID
	}
	return nil
}

// normalizeModules rewrites every module key into its stored form.
func normalizeModules(modules []model.ModuleAssignment) []model.ModuleAssignment {
	out := make([]model.ModuleAssignment, len(modules))
	for i, m := range modules {
		out[i] = m.Normalized()
	}
	return out
}

// profileWarning returns a warning when an enabled user points at a disabled profile.
func (r rules) profileWarning(ctx context.Context, st Store, user *model.PortalUser) ([]model.Notice, error) {
	if !user.Enabled || user.PortalProfileID == nil {
		return nil, nil
	}
	profile, err := st.Profiles.FindByID(ctx, *user.PortalProfileID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil || profile.Enabled {
		return nil, nil
	}

	log.Warn().
		Str("portalUserId", user.ID).
		Str("profileId", profile.ID).
		Msg("enabled portal user linked to disabled profile")
	return []model.Notice{{Level: model.NoticeWarning, Message: msgProfileDisabledWarning}}, nil
}

// syncRole makes the identity's portal user role match whether any of its
// portal user records is enabled. The identity row lock serializes concurrent
// syncs for the same identity.
func (r rules) syncRole(ctx context.Context, st Store, identityID string) ([]model.Notice, error) {
	identity, err := st.Identities.LockForUpdate(ctx, identityID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if identity == nil {
		log.Warn().Str("identity", identityID).Msg("role sync skipped: identity not found")
		return nil, nil
	}

	enabled, err := st.Users.CountEnabledByIdentity(ctx, identityID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	has, err := st.Identities.HasRole(ctx, identityID, model.RolePortalUser)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	switch {
	case enabled > 0 && !has:
		if err := st.Identities.GrantRole(ctx, identityID, model.RolePortalUser); err != nil {
			return nil, apperrors.Database(err)
		}
		st.afterCommit(func() {
			r.svc.metrics.RoleSync("grant")
			audit.Log(ctx, audit.Event{Type: audit.EventRoleGrant, TargetID: identityID})
		})
		log.Info().Str("identity", identityID).Msg("portal user role granted")
		return []model.Notice{noticef(model.NoticeInfo, "Added '%s' role to user %s", model.RolePortalUser, identityID)}, nil
	case enabled == 0 && has:
		if err := st.Identities.RevokeRole(ctx, identityID, model.RolePortalUser); err != nil {
			return nil, apperrors.Database(err)
		}
		st.afterCommit(func() {
			r.svc.metrics.RoleSync("revoke")
			audit.Log(ctx, audit.Event{Type: audit.EventRoleRevoke, TargetID: identityID})
		})
		log.Info().Str("identity", identityID).Msg("portal user role revoked")
		return []model.Notice{noticef(model.NoticeWarning, "Removed '%s' role from user %s", model.RolePortalUser, identityID)}, nil
	}
	return nil, nil
}

// saveUser persists a new or existing portal user and fires the user rules.
// previousIdentity is the identity the record pointed at before this save, if
// it changed; its role is re-synced too.
func (r rules) saveUser(ctx context.Context, st Store, user *model.PortalUser, isNew bool, previousIdentity string) (*model.PortalUser, []model.Notice, error) {
	user.Modules = normalizeModules(user.Modules)
	if err := r.linkProfile(ctx, st, user); err != nil {
		return nil, nil, err
	}

	var saved *model.PortalUser
	var err error
	if isNew {
		saved, err = st.Users.Create(ctx, model.CreatePortalUserParams{
			CustomerID:      user.CustomerID,
			PortalProfileID: user.PortalProfileID,
			IdentityID:      user.IdentityID,
			Role:            user.Role,
			StartDate:       user.StartDate,
			Enabled:         user.Enabled,
			Modules:         user.Modules,
		})
	} else {
		saved, err = st.Users.Save(ctx, user)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.ValidationFailed(
				fmt.Sprintf("User %s is already linked to another customer portal", user.IdentityID)).WithCause(err)
		}
		return nil, nil, apperrors.Database(err)
	}
	if saved == nil {
		return nil, nil, apperrors.NotFound("Customer Portal User")
	}

	notices, err := r.profileWarning(ctx, st, saved)
	if err != nil {
		return nil, nil, err
	}

	roleNotices, err := r.syncRole(ctx, st, saved.IdentityID)
	if err != nil {
		return nil, nil, err
	}
	notices = append(notices, roleNotices...)

	if previousIdentity != "" && previousIdentity != saved.IdentityID {
		prevNotices, err := r.syncRole(ctx, st, previousIdentity)
		if err != nil {
			return nil, nil, err
		}
		notices = append(notices, prevNotices...)
	}

	return saved, notices, nil
}

// saveProfile persists a profile and, when it is disabled, disables every
// linked user and re-syncs their identities' roles. Enabling a profile leaves
// users untouched.
func (r rules) saveProfile(ctx context.Context, st Store, profile *model.PortalProfile, isNew bool) (*model.PortalProfile, []model.Notice, error) {
	if profile.CompanyName == "" && profile.CustomerID != "" {
		customer, err := st.Customers.FindByID(ctx, profile.CustomerID)
		if err != nil {
			return nil, nil, apperrors.Database(err)
		}
		if customer != nil {
			profile.CompanyName = customer.CustomerName
		}
	}

	var saved *model.PortalProfile
	var err error
	if isNew {
		saved, err = st.Profiles.Create(ctx, model.CreatePortalProfileParams{
			CustomerID:       profile.CustomerID,
			CompanyName:      profile.CompanyName,
			CompanyLogo:      profile.CompanyLogo,
			CommercialNumber: profile.CommercialNumber,
			TaxID:            profile.TaxID,
			Enabled:          profile.Enabled,
		})
	} else {
		saved, err = st.Profiles.Save(ctx, profile)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.ValidationFailed(
				fmt.Sprintf("A portal profile already exists for customer %s", profile.CustomerID)).WithCause(err)
		}
		return nil, nil, apperrors.Database(err)
	}
	if saved == nil {
		return nil, nil, apperrors.NotFound("Customer Portal Profile")
	}

	if saved.Enabled {
		return saved, nil, nil
	}

	identities, err := st.Users.DisableByProfile(ctx, saved.ID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	st.afterCommit(func() { r.svc.metrics.CascadeDisabled(len(identities)) })
	log.Info().
		Str("profileId", saved.ID).
		Int("users", len(identities)).
		Msg("profile disabled: linked users disabled")

	notices := []model.Notice{{Level: model.NoticeWarning, Message: msgProfileCascade}}
	seen := make(map[string]bool, len(identities))
	for _, identity := range identities {
		if seen[identity] {
			continue
		}
		seen[identity] = true
		roleNotices, err := r.syncRole(ctx, st, identity)
		if err != nil {
			return nil, nil, err
		}
		notices = append(notices, roleNotices...)
	}
	return saved, notices, nil
}
