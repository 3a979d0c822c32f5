// Package metrics exposes the broker's Prometheus collectors: session,
// queue-depth, and box-count gauges and counters for the daemon's
// ambient observability surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors the broker updates.
type Registry struct {
	ActiveBoxes       prometheus.Gauge
	ActivePublishers  prometheus.Gauge
	ActiveSubscribers prometheus.Gauge
	QueueDepth        prometheus.Gauge

	MessagesPublished prometheus.Counter
	MessagesDelivered prometheus.Counter
	SessionsEnded     *prometheus.CounterVec
	DispatcherFatal   prometheus.Counter
}

// NewRegistry creates the broker's Prometheus collectors.
func NewRegistry() *Registry {
	return &Registry{
		ActiveBoxes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "boxbroker_boxes_active",
			Help: "Number of boxes currently registered",
		}),
		ActivePublishers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "boxbroker_publisher_sessions_active",
			Help: "Number of publisher sessions currently connected",
		}),
		ActiveSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "boxbroker_subscriber_sessions_active",
			Help: "Number of subscriber sessions currently connected",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "boxbroker_registration_queue_depth",
			Help: "Number of registrations currently queued for a worker",
		}),
		MessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxbroker_messages_published_total",
			Help: "Total number of messages appended by publishers",
		}),
		MessagesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxbroker_messages_delivered_total",
			Help: "Total number of SUB_MSG frames delivered to subscribers",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "boxbroker_sessions_ended_total",
			Help: "Total number of sessions that ended, by role and reason",
		}, []string{"role", "reason"}),
		DispatcherFatal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxbroker_dispatcher_fatal_total",
			Help: "Total number of fatal dispatcher errors (invariant violations)",
		}),
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
