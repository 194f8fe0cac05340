package battle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposed on /metrics for the battle core.
var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "battle",
		Name:      "active_connections",
		Help:      "Currently open battle WebSocket connections.",
	})

	matchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "battle",
		Name:      "matches_started_total",
		Help:      "Rounds that reached the start_game broadcast.",
	}, []string{"topic"})

	roomsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "battle",
		Name:      "rooms_cancelled_total",
		Help:      "Rooms whose host disconnected before pairing.",
	})

	cancelledSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "battle",
		Name:      "queue_cancelled_skips_total",
		Help:      "Cancelled queue entries discarded while pairing.",
	})

	answersRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "battle",
		Name:      "answers_relayed_total",
		Help:      "Answer events fanned out to room members.",
	})
)

// CancelledSkipInc is handed to the queue so it can count discarded
// entries without importing prometheus itself.
func CancelledSkipInc() {
	cancelledSkips.Inc()
}
