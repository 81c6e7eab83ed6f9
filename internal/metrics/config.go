package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics instruments config-store operations: publish/delete/get
// counts and the number of long-poll listeners currently parked.
type ConfigMetrics struct {
	PublishTotal    *prometheus.CounterVec
	DeleteTotal     *prometheus.CounterVec
	GetTotal        *prometheus.CounterVec
	RollbackTotal   *prometheus.CounterVec
	ListenersActive prometheus.Gauge
	ListenerWakeups prometheus.Counter
}

func newConfigMetrics(factory promauto.Factory, namespace string) *ConfigMetrics {
	return &ConfigMetrics{
		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "config", Name: "publish_total",
			Help: "Total config publish operations.",
		}, []string{"result"}),
		DeleteTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "config", Name: "delete_total",
			Help: "Total config delete operations.",
		}, []string{"result"}),
		GetTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "config", Name: "get_total",
			Help: "Total config get operations.",
		}, []string{"result"}),
		RollbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "config", Name: "rollback_total",
			Help: "Total config rollback operations.",
		}, []string{"result"}),
		ListenersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "config", Name: "listeners_active",
			Help: "Long-poll listener requests currently parked in COMPARE/sleep.",
		}),
		ListenerWakeups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "config", Name: "listener_wakeups_total",
			Help: "Total listener requests that returned due to a detected change.",
		}),
	}
}
