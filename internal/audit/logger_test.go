package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_WritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	Log(context.Background(), Event{
		Type:     EventUserToggle,
		ActorID:  "admin@example.com",
		Customer: "ACME",
		TargetID: "pu-1",
		Details:  map[string]interface{}{"enabled": false, "notices": 2},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "security", entry["audit"])
	assert.Equal(t, "portal_user_toggle", entry["event_type"])
	assert.Equal(t, "admin@example.com", entry["actor_id"])
	assert.Equal(t, "ACME", entry["customer"])
	assert.Equal(t, "pu-1", entry["target_id"])
	assert.Equal(t, false, entry["enabled"])
	assert.Equal(t, "info", entry["level"])
}

func TestLog_DeniedIsWarning(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	Log(context.Background(), Event{Type: EventPermissionDenied, ActorID: "x"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
}

func TestSetSink(t *testing.T) {
	var got []Event
	restore := SetSink(func(_ context.Context, e Event) { got = append(got, e) })
	Log(context.Background(), Event{Type: EventLogout})
	restore()

	require.Len(t, got, 1)
	assert.Equal(t, EventLogout, got[0].Type)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", ClientIP(r))

	r.Header.Set("X-Real-IP", "1.2.3.4")
	assert.Equal(t, "1.2.3.4", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "5.6.7.8")
	assert.Equal(t, "5.6.7.8", ClientIP(r))
}
