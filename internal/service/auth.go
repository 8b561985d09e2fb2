package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/customer-portal-go/internal/access"
	"github.com/openclaw/customer-portal-go/internal/audit"
	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/repository"
	"github.com/openclaw/customer-portal-go/internal/util"
)

var ErrInvalidCredentials = errors.New("invalid user or password")

// checkPassword compares a password with a bcrypt hash.
var checkPassword = util.CheckPasswordHash

// dummyPasswordHash is compared against when the identity cannot log in, so a
// failed login costs one bcrypt comparison either way.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := util.HashPassword("portal-login-placeholder")
	if err != nil {
		log.Error().Err(err).Msg("failed to build placeholder password hash")
	}
	return hash
})

// Me describes the logged-in actor.
type Me struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Roles    []string `json:"roles"`
	IsAdmin  bool     `json:"isAdmin"`
	Customer string   `json:"customer,omitempty"`
}

type AuthService struct {
	identities    repository.IdentityRepository
	sessions      repository.SessionRepository
	policy        *access.Policy
	sessionSecret string
	sessionTTL    time.Duration
}

func NewAuthService(
	identities repository.IdentityRepository,
	sessions repository.SessionRepository,
	policy *access.Policy,
	sessionSecret string,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		identities:    identities,
		sessions:      sessions,
		policy:        policy,
		sessionSecret: sessionSecret,
		sessionTTL:    sessionTTL,
	}
}

// Login checks the password of an enabled identity and opens a session. The
// returned token is only ever stored as its HMAC.
func (s *AuthService) Login(ctx context.Context, identityID, password string) (string, *model.Actor, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return "", nil, apperrors.Database(err)
	}
	if identity == nil || !identity.Enabled || identity.PasswordHash == "" {
		checkPassword(password, dummyPasswordHash())
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, ActorID: identityID})
		return "", nil, ErrInvalidCredentials
	}
	if !checkPassword(password, identity.PasswordHash) {
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, ActorID: identityID})
		return "", nil, ErrInvalidCredentials
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	_, err = s.sessions.Create(ctx, model.CreateSessionParams{
		TokenHash:  util.HmacSHA256(s.sessionSecret, token),
		IdentityID: identity.ID,
		ExpiresAt:  time.Now().Add(s.sessionTTL),
	})
	if err != nil {
		return "", nil, apperrors.Database(err)
	}

	actor, err := s.actorFor(ctx, identity.ID)
	if err != nil {
		return "", nil, err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, ActorID: identity.ID})
	return token, actor, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
}

// ResolveActor returns the actor owning an unexpired session, or nil.
func (s *AuthService) ResolveActor(ctx context.Context, token string) (*model.Actor, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.sessions.FindByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	identity, err := s.identities.FindByID(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if identity == nil || !identity.Enabled {
		return nil, nil
	}
	return s.actorFor(ctx, identity.ID)
}

func (s *AuthService) actorFor(ctx context.Context, identityID string) (*model.Actor, error) {
	roles, err := s.identities.Roles(ctx, identityID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return &model.Actor{ID: identityID, Roles: roles}, nil
}

func (s *AuthService) Me(ctx context.Context, actor *model.Actor) (*Me, error) {
	identity, err := s.identities.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if identity == nil {
		return nil, apperrors.NotFound("User " + actor.ID)
	}
	customer, err := s.policy.CustomerOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	roles := actor.Roles
	if roles == nil {
		roles = []string{}
	}
	return &Me{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: identity.FullName,
		Roles:    roles,
		IsAdmin:  s.policy.IsAdmin(actor),
		Customer: customer,
	}, nil
}

// EnsureAdmin creates the superuser identity, or resets its password hash to
// passwordHash. A changed hash revokes the superuser's open sessions. An empty
// hash leaves the identity unable to log in.
func (s *AuthService) EnsureAdmin(ctx context.Context, passwordHash string) error {
	if passwordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set: skipping Administrator bootstrap")
		return nil
	}

	existing, err := s.identities.FindByID(ctx, model.SuperuserID)
	if err != nil {
		return err
	}

	_, err = s.identities.Upsert(ctx, model.CreateIdentityParams{
		ID:           model.SuperuserID,
		Email:        "admin@localhost",
		FullName:     model.SuperuserID,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return err
	}

	if existing != nil && existing.PasswordHash != "" && existing.PasswordHash != passwordHash {
		revoked, err := s.sessions.DeleteByIdentity(ctx, model.SuperuserID)
		if err != nil {
			return err
		}
		log.Info().Int64("sessions", revoked).Msg("Administrator password rotated: sessions revoked")
	}

	audit.Log(ctx, audit.Event{Type: audit.EventAdminBootstrap, ActorID: model.SuperuserID})
	log.Info().Msg("Administrator identity ready")
	return nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}
