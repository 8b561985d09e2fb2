package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/customer-portal-go/internal/database"
	"github.com/openclaw/customer-portal-go/internal/repository"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// Store groups the repositories a portal operation touches.
type Store struct {
	Profiles   repository.PortalProfileRepository
	Users      repository.PortalUserRepository
	Identities repository.IdentityRepository
	Customers  repository.CustomerRepository

	commit *[]func()
}

func NewStore(db *sqlx.DB) Store {
	return Store{
		Profiles:   repository.NewPortalProfileRepository(db),
		Users:      repository.NewPortalUserRepository(db),
		Identities: repository.NewIdentityRepository(db),
		Customers:  repository.NewCustomerRepository(db),
	}
}

// WithTx binds every repository to tx.
func (s Store) WithTx(tx *sqlx.Tx) Store {
	return Store{
		Profiles:   s.Profiles.WithTx(tx),
		Users:      s.Users.WithTx(tx),
		Identities: s.Identities.WithTx(tx),
		Customers:  s.Customers.WithTx(tx),
		commit:     s.commit,
	}
}

// afterCommit queues fn to run once the enclosing transaction commits. Outside
// a transaction fn runs immediately.
func (s Store) afterCommit(fn func()) {
	if s.commit == nil {
		fn()
		return
	}
	*s.commit = append(*s.commit, fn)
}
