package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
)

func TestGenerateDemoData(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	_, err := h.svc.GenerateDemoData(ctx, member("x@example.com"))
	require.Error(t, err)
	assert.True(t, apperrors.IsPermissionDenied(err))

	res, err := h.svc.GenerateDemoData(ctx, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "Demo data generated successfully", res.Message)
	assert.Equal(t, 3, res.Customers)
	assert.Equal(t, 3, res.Users)
	assert.Equal(t, 3, res.Profiles)
	assert.Equal(t, 3, res.Links)

	identity := h.db.identities["admin@techcorp.com"]
	require.NotNil(t, identity)
	assert.Equal(t, "Tech Admin", identity.FullName)
	assert.True(t, h.db.hasRole("admin@techcorp.com", model.RolePortalUser))

	profiles, err := h.svc.ListProfiles(ctx, adminActor, model.MatchAll())
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	assert.Equal(t, "Global Solutions Ltd", profiles[0].CompanyName)
	assert.Equal(t, "TAX-67890", *profiles[0].TaxID)
	require.Len(t, profiles[0].Users, 1)
	assert.Equal(t, []string{"invoices", "orders"}, profiles[0].Users[0].EnabledModules)
	require.NotNil(t, profiles[0].Users[0].PortalProfileID)
	assert.Equal(t, profiles[0].ID, *profiles[0].Users[0].PortalProfileID)

	again, err := h.svc.GenerateDemoData(ctx, superActor)
	require.NoError(t, err)
	assert.Zero(t, again.Customers+again.Users+again.Profiles+again.Links)
	assert.Len(t, h.db.users, 3)
}
