package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLoginSuccess     EventType = "login_success"
	EventLoginFailure     EventType = "login_failure"
	EventLogout           EventType = "logout"
	EventRateLimitExceed  EventType = "rate_limit_exceeded"
	EventPermissionDenied EventType = "permission_denied"
	EventProfileCreate    EventType = "profile_create"
	EventProfileUpdate    EventType = "profile_update"
	EventProfileToggle    EventType = "profile_toggle"
	EventUserCreate       EventType = "portal_user_create"
	EventUserUpdate       EventType = "portal_user_update"
	EventUserToggle       EventType = "portal_user_toggle"
	EventRoleGrant        EventType = "role_grant"
	EventRoleRevoke       EventType = "role_revoke"
	EventDemoData         EventType = "demo_data_generate"
	EventAdminBootstrap   EventType = "admin_bootstrap"
)

type Event struct {
	Type      EventType
	ActorID   string
	Customer  string
	TargetID  string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// Sink receives audit events. The default sink writes them to the global logger.
type Sink func(ctx context.Context, event Event)

var sink Sink = logEvent

// SetSink replaces the event destination and returns a func restoring the previous one.
func SetSink(s Sink) func() {
	prev := sink
	sink = s
	return func() { sink = prev }
}

func Log(ctx context.Context, event Event) {
	sink(ctx, event)
}

func logEvent(_ context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ActorID != "" {
		logger = logger.With().Str("actor_id", event.ActorID).Logger()
	}
	if event.Customer != "" {
		logger = logger.With().Str("customer", event.Customer).Logger()
	}
	if event.TargetID != "" {
		logger = logger.With().Str("target_id", event.TargetID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	level := zerolog.InfoLevel
	if event.Type == EventPermissionDenied || event.Type == EventLoginFailure {
		level = zerolog.WarnLevel
	}
	e := logger.WithLevel(level)
	for k, v := range event.Details {
		e = addField(e, k, v)
	}
	e.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case []string:
		return e.Strs(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP returns the first forwarding header present, falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
