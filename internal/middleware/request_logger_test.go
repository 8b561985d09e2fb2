package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/customer-portal-go/internal/model"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WithActor(r.Context(), &model.Actor{ID: "alice@example.com"})
		w.WriteHeader(http.StatusForbidden)
	})

	req := httptest.NewRequest("POST", "/api/portal/users/pu-1/toggle", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	RequestLogger(inner).ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, float64(http.StatusForbidden), entry["status"])
	assert.Equal(t, "alice@example.com", entry["actor_id"])
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	prev := log.Logger
	log.Logger = zerolog.Nop()
	defer func() { log.Logger = prev }()

	rec := httptest.NewRecorder()
	RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}
