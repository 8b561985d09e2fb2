// Package metrics exposes portal counters through Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives portal events. Services depend on this interface so tests
// can pass Nop.
type Recorder interface {
	Mutation(operation string)
	CascadeDisabled(users int)
	RoleSync(action string)
	PermissionDenied(operation string)
}

type Prometheus struct {
	registry         *prometheus.Registry
	mutations        *prometheus.CounterVec
	cascadeDisabled  prometheus.Counter
	roleSync         *prometheus.CounterVec
	permissionDenied *prometheus.CounterVec
}

// NewPrometheus registers the portal collectors plus the Go and process
// collectors on a private registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_mutations_total",
			Help: "Successful portal write operations.",
		}, []string{"operation"}),
		cascadeDisabled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_cascade_disabled_users_total",
			Help: "Portal users disabled because their profile was disabled.",
		}),
		roleSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_role_sync_total",
			Help: "Portal user role grants and revocations.",
		}, []string{"action"}),
		permissionDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_permission_denied_total",
			Help: "Operations rejected by the access policy.",
		}, []string{"operation"}),
	}

	p.registry.MustRegister(
		p.mutations,
		p.cascadeDisabled,
		p.roleSync,
		p.permissionDenied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) Mutation(operation string) {
	p.mutations.WithLabelValues(operation).Inc()
}

func (p *Prometheus) CascadeDisabled(users int) {
	if users > 0 {
		p.cascadeDisabled.Add(float64(users))
	}
}

func (p *Prometheus) RoleSync(action string) {
	p.roleSync.WithLabelValues(action).Inc()
}

func (p *Prometheus) PermissionDenied(operation string) {
	p.permissionDenied.WithLabelValues(operation).Inc()
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

type nop struct{}

// Nop discards every event.
var Nop Recorder = nop{}

func (nop) Mutation(string)         {}
func (nop) CascadeDisabled(int)     {}
func (nop) RoleSync(string)         {}
func (nop) PermissionDenied(string) {}
