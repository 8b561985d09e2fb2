package handler

import (
	"context"

	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/service"
)

// PortalAPI is the portal operation surface served over HTTP.
type PortalAPI interface {
	ListProfiles(ctx context.Context, actor *model.Actor, extra model.Filter) ([]model.PortalProfileDetail, error)
	GetProfile(ctx context.Context, actor *model.Actor, id string) (*model.PortalProfileDetail, error)
	CreateProfile(ctx context.Context, actor *model.Actor, params model.CreatePortalProfileParams) (*service.ProfileResult, error)
	UpdateProfile(ctx context.Context, actor *model.Actor, id string, params model.UpdatePortalProfileParams) (*service.ProfileResult, error)
	ToggleProfile(ctx context.Context, actor *model.Actor, id string, enabled bool) (*service.ProfileResult, error)

	ListUsers(ctx context.Context, actor *model.Actor, customer string) ([]model.PortalUserDetail, error)
	GetUser(ctx context.Context, actor *model.Actor, id string) (*model.PortalUserDetail, error)
	CreateUser(ctx context.Context, actor *model.Actor, in service.CreateUserInput) (*service.UserResult, error)
	UpdateUser(ctx context.Context, actor *model.Actor, id string, params model.UpdatePortalUserParams) (*service.UserResult, error)
	ToggleUser(ctx context.Context, actor *model.Actor, id string, enabled bool) (*service.UserResult, error)
	ListModules(ctx context.Context, actor *model.Actor, portalUserID string) ([]model.ModuleAssignment, error)

	AvailableModules() []model.ModuleOption
	DashboardStats(ctx context.Context, actor *model.Actor) (map[string]int, error)
	GenerateDemoData(ctx context.Context, actor *model.Actor) (*service.DemoResult, error)
}

// AuthAPI opens and closes portal sessions.
type AuthAPI interface {
	Login(ctx context.Context, identityID, password string) (string, *model.Actor, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, actor *model.Actor) (*service.Me, error)
}

var (
	_ PortalAPI = (*service.PortalService)(nil)
	_ AuthAPI   = (*service.AuthService)(nil)
)
