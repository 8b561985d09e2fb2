package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/model"
)

type contextKey string

const (
	ActorContextKey   contextKey = "actor"
	requestContextKey contextKey = "requestInfo"
)

const SessionCookie = "portal_session"

func GetActor(ctx context.Context) *model.Actor {
	if actor, ok := ctx.Value(ActorContextKey).(*model.Actor); ok {
		return actor
	}
	return nil
}

func WithActor(ctx context.Context, actor *model.Actor) context.Context {
	if info, ok := ctx.Value(requestContextKey).(*requestInfo); ok && actor != nil {
		info.actorID = actor.ID
	}
	return context.WithValue(ctx, ActorContextKey, actor)
}

// ActorResolver maps a session token to its actor. A nil actor means the
// token is unknown or expired.
type ActorResolver interface {
	ResolveActor(ctx context.Context, token string) (*model.Actor, error)
}

type ActorMiddleware struct {
	resolver ActorResolver
}

func NewActorMiddleware(resolver ActorResolver) *ActorMiddleware {
	return &ActorMiddleware{resolver: resolver}
}

// Handler rejects requests without a valid session.
func (m *ActorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Authentication required")
			return
		}

		actor, err := m.resolver.ResolveActor(r.Context(), token)
		if err != nil {
			log.Error().Err(err).Msg("actor middleware: session lookup failed")
			writeError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Session validation failed")
			return
		}
		if actor == nil {
			writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Session expired or invalid")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// ExtractToken reads the session token from a Bearer header or the session cookie.
func ExtractToken(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return token
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer "), true
	}
	return "", false
}

func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
