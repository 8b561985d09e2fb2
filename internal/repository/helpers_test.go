package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/customer-portal-go/internal/model"
)

func TestBuildWhere(t *testing.T) {
	t.Run("match all", func(t *testing.T) {
		where, args, err := buildWhere(model.MatchAll(), profileColumns, 1)
		require.NoError(t, err)
		assert.Equal(t, " WHERE TRUE", where)
		assert.Empty(t, args)
	})

	t.Run("match nothing", func(t *testing.T) {
		where, _, err := buildWhere(model.MatchNothing(), profileColumns, 1)
		require.NoError(t, err)
		assert.Contains(t, where, "AND FALSE")
	})

	t.Run("conditions are numbered from start", func(t *testing.T) {
		f := model.Where(model.FieldCustomer, "Acme").And(model.Where(model.FieldEnabled, true))
		where, args, err := buildWhere(f, profileColumns, 2)
		require.NoError(t, err)
		assert.Equal(t, " WHERE TRUE AND p.customer_id = $2 AND p.enabled = $3", where)
		assert.Equal(t, []any{"Acme", true}, args)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, _, err := buildWhere(model.Where("password_hash", "x"), profileColumns, 1)
		assert.ErrorIs(t, err, ErrUnknownField)
	})
}

func TestMapUniqueViolation(t *testing.T) {
	t.Run("maps 23505", func(t *testing.T) {
		err := mapUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "portal_users_identity_uniq"}))
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.Contains(t, err.Error(), "portal_users_identity_uniq")
	})

	t.Run("passes other errors through", func(t *testing.T) {
		orig := errors.New("boom")
		assert.Equal(t, orig, mapUniqueViolation(orig))
	})
}
