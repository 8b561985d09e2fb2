// Package access decides which portal records an actor can see and change.
//
// Visibility is derived from the actor's own enabled portal user record on
// every call, so a disabled or reassigned record stops granting access at once.
package access

import (
	"context"

	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
)

const (
	MsgCustomerDenied = "You do not have permission to access this customer's data"
	MsgAdminOnly      = "Only Customer Portal Admins can perform this action"
)

// CustomerResolver finds the customer linked to an identity's enabled portal
// user record. It returns "" when there is none.
type CustomerResolver interface {
	FindCustomerByIdentity(ctx context.Context, identityID string) (string, error)
}

type Policy struct {
	resolver CustomerResolver
}

func NewPolicy(resolver CustomerResolver) *Policy {
	return &Policy{resolver: resolver}
}

// IsAdmin reports whether the actor is the superuser or holds the portal admin role.
func (p *Policy) IsAdmin(actor *model.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.ID == model.SuperuserID || actor.HasRole(model.RolePortalAdmin)
}

// CustomerOf returns the actor's linked customer, or "" when unlinked.
func (p *Policy) CustomerOf(ctx context.Context, actor *model.Actor) (string, error) {
	if actor == nil || actor.ID == "" {
		return "", nil
	}
	customer, err := p.resolver.FindCustomerByIdentity(ctx, actor.ID)
	if err != nil {
		return "", apperrors.Database(err)
	}
	return customer, nil
}

// VisibilityFilter returns the predicate restricting kind to what actor may read.
func (p *Policy) VisibilityFilter(ctx context.Context, actor *model.Actor, kind model.RecordKind) (model.Filter, error) {
	if p.IsAdmin(actor) {
		return model.MatchAll(), nil
	}
	if actor == nil {
		return model.MatchNothing(), nil
	}

	switch kind {
	case model.RecordKindProfile:
		customer, err := p.CustomerOf(ctx, actor)
		if err != nil {
			return model.Filter{}, err
		}
		if customer == "" {
			return model.MatchNothing(), nil
		}
		return model.Where(model.FieldCustomer, customer), nil
	case model.RecordKindUser:
		return model.Where(model.FieldIdentity, actor.ID), nil
	default:
		return model.MatchNothing(), nil
	}
}

// CanMutate reports whether actor may perform op. Reads are open to any actor;
// everything else requires an admin.
func (p *Policy) CanMutate(actor *model.Actor, op model.Operation) bool {
	if op == model.OperationRead {
		return true
	}
	return p.IsAdmin(actor)
}

// RequireAdmin fails with a permission error carrying message unless actor is an admin.
func (p *Policy) RequireAdmin(actor *model.Actor, op model.Operation, message string) error {
	if p.CanMutate(actor, op) {
		return nil
	}
	if message == "" {
		message = MsgAdminOnly
	}
	return apperrors.PermissionDenied(message)
}

// AssertCustomerAccess succeeds when actor is an admin or linked to customer.
func (p *Policy) AssertCustomerAccess(ctx context.Context, actor *model.Actor, customer string) error {
	if p.IsAdmin(actor) {
		return nil
	}
	own, err := p.CustomerOf(ctx, actor)
	if err != nil {
		return err
	}
	if own == "" || own != customer {
		return apperrors.PermissionDenied(MsgCustomerDenied)
	}
	return nil
}
