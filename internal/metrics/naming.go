package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NamingMetrics instruments the service registry: instance/service
// counts and heartbeat traffic.
type NamingMetrics struct {
	ServicesTotal       prometheus.Gauge
	InstancesTotal      prometheus.Gauge
	HeartbeatTotal      *prometheus.CounterVec
	RegisterTotal       *prometheus.CounterVec
	DeregisterTotal     *prometheus.CounterVec
}

func newNamingMetrics(factory promauto.Factory, namespace string) *NamingMetrics {
	return &NamingMetrics{
		ServicesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "naming", Name: "services_total",
			Help: "Current number of registered services.",
		}),
		InstancesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "naming", Name: "instances_total",
			Help: "Current number of registered instances.",
		}),
		HeartbeatTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "naming", Name: "heartbeat_total",
			Help: "Total heartbeat requests received.",
		}, []string{"found"}),
		RegisterTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "naming", Name: "register_total",
			Help: "Total instance register requests.",
		}, []string{"result"}),
		DeregisterTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "naming", Name: "deregister_total",
			Help: "Total instance deregister requests.",
		}, []string{"result"}),
	}
}
