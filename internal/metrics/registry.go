// Package metrics provides the Prometheus exposition surface: config-op
// counters, listener gauges, and instance/service gauges, organized by
// category the way the namespace_<category>_<subsystem>_<name>_<unit>
// taxonomy groups metrics elsewhere in this tree's ancestry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the central registry for this process's metrics. Unlike a
// global promauto singleton, each Registry owns its own
// prometheus.Registerer so that tests can construct one per case without
// tripping "duplicate metrics collector registration".
type Registry struct {
	namespace string
	reg       *prometheus.Registry
	factory   promauto.Factory

	config  *ConfigMetrics
	naming  *NamingMetrics
	http    *HTTPMetrics

	configOnce sync.Once
	namingOnce sync.Once
	httpOnce   sync.Once
}

// New creates a Registry under the given namespace (typically "nacos").
func New(namespace string) *Registry {
	if namespace == "" {
		namespace = "nacos"
	}
	reg := prometheus.NewRegistry()
	return &Registry{
		namespace: namespace,
		reg:       reg,
		factory:   promauto.With(reg),
	}
}

// Config returns the config-store metrics, lazily initialized.
func (r *Registry) Config() *ConfigMetrics {
	r.configOnce.Do(func() { r.config = newConfigMetrics(r.factory, r.namespace) })
	return r.config
}

// Naming returns the service-registry metrics, lazily initialized.
func (r *Registry) Naming() *NamingMetrics {
	r.namingOnce.Do(func() { r.naming = newNamingMetrics(r.factory, r.namespace) })
	return r.naming
}

// HTTP returns the request-dispatch metrics, lazily initialized.
func (r *Registry) HTTP() *HTTPMetrics {
	r.httpOnce.Do(func() { r.http = newHTTPMetrics(r.factory, r.namespace) })
	return r.http
}

// Handler returns the http.Handler to mount at the configured metrics
// path (default /metrics).
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
