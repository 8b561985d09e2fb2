package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/openclaw/customer-portal-go/internal/model"
)

// ErrDuplicate is returned when a write is rejected by a unique index.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// HandleNotFound processes a database query result, converting sql.ErrNoRows
// to a nil result without error. This is a common pattern for Find* operations
// where a missing row is not an error condition.
//
// Usage:
//
//	var item model.Item
//	err := r.db.GetContext(ctx, &item, query, args...)
//	return HandleNotFound(&item, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mapUniqueViolation converts a unique index violation into ErrDuplicate.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// buildWhere renders a filter as a WHERE clause. Only fields listed in columns
// are accepted. Placeholders start at $start.
func buildWhere(f model.Filter, columns map[string]string, start int) (string, []any, error) {
	var b strings.Builder
	b.WriteString(" WHERE TRUE")
	if f.MatchNone {
		b.WriteString(" AND FALSE")
	}

	args := make([]any, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownField, c.Field)
		}
		args = append(args, c.Value)
		b.WriteString(" AND " + col + " = $" + strconv.Itoa(start+len(args)-1))
	}

	return b.String(), args, nil
}

// ErrUnknownField is returned when a filter names a field the table does not expose.
var ErrUnknownField = errors.New("unknown filter field")
