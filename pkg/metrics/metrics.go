package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Appointment lifecycle metrics
	AppointmentTransitions *prometheus.CounterVec
	TransitionConflicts    prometheus.Counter

	// Notification fan-out metrics
	NotificationsCreated     *prometheus.CounterVec
	NotificationFanoutErrors *prometheus.CounterVec
	EmailDeliveryErrors      prometheus.Counter

	// Relay metrics
	RelayConnections   prometheus.Gauge
	RelayPushes        *prometheus.CounterVec
	RelayPushesDropped prometheus.Counter
	RelayInboundErrors prometheus.Counter

	// Engagement metrics
	LikeOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		AppointmentTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "appointment_transitions_total",
			Help:      "Total number of successful appointment status transitions",
		}, []string{"to_status"}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "appointment_transition_conflicts_total",
			Help:      "Total number of transitions rejected because the appointment was in a terminal state",
		}),

		NotificationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_created_total",
			Help:      "Total number of notification rows created",
		}, []string{"type"}),
		NotificationFanoutErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_fanout_failures_total",
			Help:      "Notification writes that failed after the primary operation committed",
		}, []string{"origin"}),
		EmailDeliveryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_email_failures_total",
			Help:      "Best-effort notification emails that could not be delivered",
		}),

		RelayConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_connections",
			Help:      "Current number of live relay connections",
		}),
		RelayPushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_pushes_total",
			Help:      "Total number of live events pushed to connected clients",
		}, []string{"event"}),
		RelayPushesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_pushes_dropped_total",
			Help:      "Live pushes dropped because the recipient had no connection or a full buffer",
		}),
		RelayInboundErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_inbound_errors_total",
			Help:      "Malformed or failed inbound relay events",
		}),

		LikeOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "post_like_operations_total",
			Help:      "Total number of like/unlike operations",
		}, []string{"op"}),
	}
}
