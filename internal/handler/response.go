package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/customer-portal-go/internal/errors"
	"github.com/openclaw/customer-portal-go/internal/httputil"
	"github.com/openclaw/customer-portal-go/internal/middleware"
	"github.com/openclaw/customer-portal-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// envelope is the success body shared by every operation:
// {success, message?, <payload key>, notices?}.
type envelope map[string]any

func result(message string) envelope {
	e := envelope{"success": true}
	if message != "" {
		e["message"] = message
	}
	return e
}

func (e envelope) with(key string, value any) envelope {
	e[key] = value
	return e
}

func (e envelope) withNotices(notices []model.Notice) envelope {
	if len(notices) > 0 {
		e["notices"] = notices
	}
	return e
}

// writeServiceError renders err through the error envelope. Errors outside the
// AppError taxonomy are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		httputil.WriteError(w, err)
		return
	}

	if httputil.StatusFromCode(appErr.Code) >= http.StatusInternalServerError {
		e := log.Error().Err(err).Str("path", r.URL.Path).Str("code", string(appErr.Code))
		if actor := middleware.GetActor(r.Context()); actor != nil {
			e = e.Str("actor_id", actor.ID)
		}
		e.Msg("request failed")
	}
	httputil.WriteError(w, appErr)
}
