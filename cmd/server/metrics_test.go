package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/customer-portal-go/internal/metrics"
)

func TestMetricsServer(t *testing.T) {
	prom := metrics.NewPrometheus()
	prom.Mutation("toggle_user")
	server := newMetricsServer(":0", prom.Handler())

	t.Run("serves metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `portal_mutations_total{operation="toggle_user"} 1`)
	})

	t.Run("serves nothing else", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profiles", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
