// Package metrics holds the prometheus collectors exported by the cellular service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cellular"

type Metrics struct {
	DiscoveryAttempts prometheus.Counter
	PowerCycles       prometheus.Counter
	Reconciliations   prometheus.Counter
	PINCleared        *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	UsageKBytes       *prometheus.GaugeVec
	SignalRSSI        prometheus.Gauge
}

// New registers the cellular collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DiscoveryAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_attempts_total",
			Help:      "Module discovery attempts since start.",
		}),
		PowerCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "power_cycles_total",
			Help:      "Modem power cycles triggered by failed discovery attempts.",
		}),
		Reconciliations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Times the connection manager was rebuilt.",
		}),
		PINCleared: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_cleared_total",
			Help:      "Stored PIN codes cleared after the SIM refused them.",
		}, []string{"site"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "network_events_total",
			Help:      "Network interface events by outcome.",
		}, []string{"result"}),
		UsageKBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "usage_kbytes",
			Help:      "Data usage of the cellular interface in kilobytes.",
		}, []string{"direction"}),
		SignalRSSI: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_rssi_dbm",
			Help:      "Last reported received signal strength.",
		}),
	}
}
