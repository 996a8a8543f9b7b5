package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salon",
			Name:      "booking_transition_total",
			Help:      "Count of lifecycle transitions by action and result.",
		},
		[]string{"action", "result"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salon",
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of data provider mutation calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	snapshotSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "salon",
			Name:      "agenda_snapshot_bookings",
			Help:      "Number of bookings in the current agenda snapshot.",
		},
	)

	sessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "salon",
			Name:      "session_expired_total",
			Help:      "Count of sessions ended by the idle watchdog.",
		},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "salon",
			Name:      "api_rate_limited_total",
			Help:      "Count of API requests rejected by the rate limiter.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salon",
			Name:      "notification_sent_total",
			Help:      "Count of transition notifications by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(transitions, providerDuration, snapshotSize, sessionsExpired, rateLimited, notifications)
	})
}

func IncTransition(action, result string) {
	transitions.WithLabelValues(action, result).Inc()
}

func ObserveProviderCall(action string, d time.Duration) {
	providerDuration.WithLabelValues(action).Observe(d.Seconds())
}

func SetSnapshotSize(n int) {
	snapshotSize.Set(float64(n))
}

func IncSessionExpired() {
	sessionsExpired.Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}

func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}
