package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/middleware"
	"github.com/openclaw/customer-portal-go/internal/service"
)

type PortalHandler struct {
	portal PortalAPI
}

func NewPortalHandler(portal PortalAPI) *PortalHandler {
	return &PortalHandler{portal: portal}
}

// Routes expects an authenticated actor in the request context.
func (h *PortalHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/profiles", h.ListProfiles)
	r.Post("/profiles", h.CreateProfile)
	r.Get("/profiles/{id}", h.GetProfile)
	r.Patch("/profiles/{id}", h.UpdateProfile)
	r.Post("/profiles/{id}/toggle", h.ToggleProfile)

	r.Get("/customers/{customer}/users", h.ListUsers)
	r.Post("/users", h.CreateUser)
	r.Get("/users/{id}", h.GetUser)
	r.Patch("/users/{id}", h.UpdateUser)
	r.Post("/users/{id}/toggle", h.ToggleUser)
	r.Get("/users/{id}/modules", h.ListModules)

	r.Get("/modules", h.AvailableModules)
	r.Get("/stats", h.DashboardStats)
	r.Post("/demo-data", h.GenerateDemoData)

	return r
}

func (h *PortalHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProfileFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	profiles, err := h.portal.ListProfiles(r.Context(), middleware.GetActor(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result("").
		with("profiles", profiles).
		with("total", len(profiles)))
}

func (h *PortalHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.portal.GetProfile(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result("").with("profile", profile))
}

func (h *PortalHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.portal.CreateProfile(r.Context(), middleware.GetActor(r.Context()), req.params())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeProfileResult(w, http.StatusCreated, res)
}

func (h *PortalHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.portal.UpdateProfile(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"), req.params())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeProfileResult(w, http.StatusOK, res)
}

func (h *PortalHandler) ToggleProfile(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeToggle(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.portal.ToggleProfile(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"), enabled)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeProfileResult(w, http.StatusOK, res)
}

func (h *PortalHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.portal.ListUsers(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "customer"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result("").
		with("users", users).
		with("total", len(users)))
}

func (h *PortalHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.portal.GetUser(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result("").with("user", user))
}

func (h *PortalHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	startDate, err := parseDate("startDate", req.StartDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.portal.CreateUser(r.Context(), middleware.GetActor(r.Context()), service.CreateUserInput{
		CustomerID: req.Customer,
		IdentityID: req.User,
		Role:       req.Role,
		StartDate:  startDate,
		Modules:    toModules(req.Modules),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUserResult(w, http.StatusCreated, res)
}

func (h *PortalHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	params, err := req.params()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.portal.UpdateUser(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUserResult(w, http.StatusOK, res)
}

func (h *PortalHandler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeToggle(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.portal.ToggleUser(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"), enabled)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUserResult(w, http.StatusOK, res)
}

func (h *PortalHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.portal.ListModules(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result("").with("modules", modules))
}

func (h *PortalHandler) AvailableModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, result("").with("modules", h.portal.AvailableModules()))
}

func (h *PortalHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.portal.DashboardStats(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result("").with("stats", stats))
}

func (h *PortalHandler) GenerateDemoData(w http.ResponseWriter, r *http.Request) {
	res, err := h.portal.GenerateDemoData(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result(res.Message).
		with("created", res).
		withNotices(res.Notices))
}

func decodeToggle(r *http.Request) (bool, error) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		return false, err
	}
	if req.Enabled == nil {
		return false, apperrors.MissingRequired("enabled")
	}
	return bool(*req.Enabled), nil
}

func writeProfileResult(w http.ResponseWriter, status int, res *service.ProfileResult) {
	writeJSON(w, status, result(res.Message).
		with("profile", res.Profile).
		withNotices(res.Notices))
}

// writeUserResult adds the enabled module keys next to the saved record.
func writeUserResult(w http.ResponseWriter, status int, res *service.UserResult) {
	writeJSON(w, status, result(res.Message).
		with("user", res.User).
		with("enabledModules", res.User.EnabledModuleKeys()).
		withNotices(res.Notices))
}
