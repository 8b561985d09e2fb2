package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/openclaw/customer-portal-go/internal/middleware"
	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/service"
)

type mockPortal struct {
	mock.Mock
}

func (m *mockPortal) ListProfiles(ctx context.Context, actor *model.Actor, extra model.Filter) ([]model.PortalProfileDetail, error) {
	args := m.Called(ctx, actor, extra)
	profiles, _ := args.Get(0).([]model.PortalProfileDetail)
	return profiles, args.Error(1)
}

func (m *mockPortal) GetProfile(ctx context.Context, actor *model.Actor, id string) (*model.PortalProfileDetail, error) {
	args := m.Called(ctx, actor, id)
	profile, _ := args.Get(0).(*model.PortalProfileDetail)
	return profile, args.Error(1)
}

func (m *mockPortal) CreateProfile(ctx context.Context, actor *model.Actor, params model.CreatePortalProfileParams) (*service.ProfileResult, error) {
	args := m.Called(ctx, actor, params)
	res, _ := args.Get(0).(*service.ProfileResult)
	return res, args.Error(1)
}

func (m *mockPortal) UpdateProfile(ctx context.Context, actor *model.Actor, id string, params model.UpdatePortalProfileParams) (*service.ProfileResult, error) {
	args := m.Called(ctx, actor, id, params)
	res, _ := args.Get(0).(*service.ProfileResult)
	return res, args.Error(1)
}

func (m *mockPortal) ToggleProfile(ctx context.Context, actor *model.Actor, id string, enabled bool) (*service.ProfileResult, error) {
	args := m.Called(ctx, actor, id, enabled)
	res, _ := args.Get(0).(*service.ProfileResult)
	return res, args.Error(1)
}

func (m *mockPortal) ListUsers(ctx context.Context, actor *model.Actor, customer string) ([]model.PortalUserDetail, error) {
	args := m.Called(ctx, actor, customer)
	users, _ := args.Get(0).([]model.PortalUserDetail)
	return users, args.Error(1)
}

func (m *mockPortal) GetUser(ctx context.Context, actor *model.Actor, id string) (*model.PortalUserDetail, error) {
	args := m.Called(ctx, actor, id)
	user, _ := args.Get(0).(*model.PortalUserDetail)
	return user, args.Error(1)
}

func (m *mockPortal) CreateUser(ctx context.Context, actor *model.Actor, in service.CreateUserInput) (*service.UserResult, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*service.UserResult)
	return res, args.Error(1)
}

func (m *mockPortal) UpdateUser(ctx context.Context, actor *model.Actor, id string, params model.UpdatePortalUserParams) (*service.UserResult, error) {
	args := m.Called(ctx, actor, id, params)
	res, _ := args.Get(0).(*service.UserResult)
	return res, args.Error(1)
}

func (m *mockPortal) ToggleUser(ctx context.Context, actor *model.Actor, id string, enabled bool) (*service.UserResult, error) {
	args := m.Called(ctx, actor, id, enabled)
	res, _ := args.Get(0).(*service.UserResult)
	return res, args.Error(1)
}

func (m *mockPortal) ListModules(ctx context.Context, actor *model.Actor, portalUserID string) ([]model.ModuleAssignment, error) {
	args := m.Called(ctx, actor, portalUserID)
	modules, _ := args.Get(0).([]model.ModuleAssignment)
	return modules, args.Error(1)
}

func (m *mockPortal) AvailableModules() []model.ModuleOption {
	args := m.Called()
	return args.Get(0).([]model.ModuleOption)
}

func (m *mockPortal) DashboardStats(ctx context.Context, actor *model.Actor) (map[string]int, error) {
	args := m.Called(ctx, actor)
	stats, _ := args.Get(0).(map[string]int)
	return stats, args.Error(1)
}

func (m *mockPortal) GenerateDemoData(ctx context.Context, actor *model.Actor) (*service.DemoResult, error) {
	args := m.Called(ctx, actor)
	res, _ := args.Get(0).(*service.DemoResult)
	return res, args.Error(1)
}

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, identityID, password string) (string, *model.Actor, error) {
	args := m.Called(ctx, identityID, password)
	actor, _ := args.Get(1).(*model.Actor)
	return args.String(0), actor, args.Error(2)
}

func (m *mockAuth) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuth) Me(ctx context.Context, actor *model.Actor) (*service.Me, error) {
	args := m.Called(ctx, actor)
	me, _ := args.Get(0).(*service.Me)
	return me, args.Error(1)
}

var (
	adminActor = &model.Actor{ID: "admin@example.com", Roles: []string{model.RolePortalAdmin}}
	userActor  = &model.Actor{ID: "alice@example.com", Roles: []string{model.RolePortalUser}}
)

// withActor mounts routes behind a stub that injects actor.
func withActor(actor *model.Actor, routes http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), actor)))
		})
	})
	r.Mount("/api", routes)
	return r
}
