package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/customer-portal-go/internal/audit"
	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/httputil"
	"github.com/openclaw/customer-portal-go/internal/middleware"
	"github.com/openclaw/customer-portal-go/internal/service"
)

type AuthHandler struct {
	auth         AuthAPI
	sessionTTL   time.Duration
	isProduction bool
}

func NewAuthHandler(auth AuthAPI, sessionTTL time.Duration, isProduction bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		sessionTTL:   sessionTTL,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Identity == "" || req.Password == "" {
		writeServiceError(w, r, apperrors.MissingRequired("identity and password"))
		return
	}

	token, actor, err := h.auth.Login(r.Context(), req.Identity, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httputil.WriteError(w, apperrors.Unauthorized("Invalid credentials"))
			return
		}
		writeServiceError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.sessionTTL, h.isProduction)
	writeJSON(w, http.StatusOK, result("Logged In").
		with("token", token).
		with("expiresAt", time.Now().Add(h.sessionTTL).Format(time.RFC3339)).
		with("actor", actor))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.ExtractToken(r)); err != nil {
		log.Warn().Err(err).Msg("failed to delete session")
	}

	actorID := ""
	if actor := middleware.GetActor(r.Context()); actor != nil {
		actorID = actor.ID
	}
	audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, ActorID: actorID})

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, result("Logged Out"))
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.auth.Me(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result("").with("user", me))
}
