package daemon

import (
	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/notify"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/prometheus/client_golang/prometheus"
)

// newMetricsRegistry exposes daemon gauges on the local socket. The values
// are read live from the owning components on every scrape.
func newMetricsRegistry(rt *realtime.Manager, b *bus.Bus, notifications *notify.Store) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "msgr_realtime_connected",
			Help: "1 when the realtime socket is established, 0 otherwise.",
		},
		func() float64 {
			if rt.IsConnected() {
				return 1
			}
			return 0
		},
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "msgr_realtime_reconnects_total",
			Help: "Number of realtime connection setups since daemon start.",
		},
		func() float64 { return float64(rt.Reconnects()) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "msgr_bus_dropped_events_total",
			Help: "Events dropped because a subscriber's buffer was full.",
		},
		func() float64 { return float64(b.Dropped()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "msgr_notifications_unread",
			Help: "Current unread notification count.",
		},
		func() float64 { return float64(notifications.Unread()) },
	))

	return reg
}
