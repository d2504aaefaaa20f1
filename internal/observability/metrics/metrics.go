package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "safewatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	sosActivations *prometheus.CounterVec
	sosTransitions *prometheus.CounterVec

	alertEventsTotal *prometheus.CounterVec

	evidenceUploadTotal   *prometheus.CounterVec
	evidenceUploadLatency *prometheus.HistogramVec

	pushDeliveries *prometheus.CounterVec

	realtimeEvents *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		sosActivations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sos_activations_total",
				Help: "Total SOS activation attempts by result",
			},
			[]string{"result"},
		)
		sosTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sos_session_transitions_total",
				Help: "Total SOS session state transitions by target state",
			},
			[]string{"state"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		evidenceUploadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evidence_upload_total",
				Help: "Total evidence uploads by result",
			},
			[]string{"result"},
		)
		evidenceUploadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evidence_upload_latency_seconds",
				Help:    "Evidence upload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		pushDeliveries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_deliveries_total",
				Help: "Total push gateway deliveries by result",
			},
			[]string{"result"},
		)

		realtimeEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "realtime_events_total",
				Help: "Total realtime channel events by direction",
			},
			[]string{"direction"},
		)

		prometheus.MustRegister(
			sosActivations,
			sosTransitions,
			alertEventsTotal,
			evidenceUploadTotal,
			evidenceUploadLatency,
			pushDeliveries,
			realtimeEvents,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncSOSActivation records an SOS activation attempt result.
func IncSOSActivation(result string) {
	if result == "" {
		result = resultSuccess
	}
	if sosActivations != nil {
		sosActivations.WithLabelValues(result).Inc()
	}
}

// IncSessionTransition records a session state transition.
func IncSessionTransition(state string) {
	if sosTransitions != nil && state != "" {
		sosTransitions.WithLabelValues(state).Inc()
	}
}

// IncAlertEvent records an alert lifecycle event.
func IncAlertEvent(event string) {
	if alertEventsTotal != nil && event != "" {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// ObserveEvidenceUpload records an evidence upload result and duration.
func ObserveEvidenceUpload(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if evidenceUploadTotal != nil {
		evidenceUploadTotal.WithLabelValues(result).Inc()
	}
	if evidenceUploadLatency != nil {
		evidenceUploadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPushDelivery records a push gateway delivery result.
func IncPushDelivery(result string) {
	if result == "" {
		result = resultSuccess
	}
	if pushDeliveries != nil {
		pushDeliveries.WithLabelValues(result).Inc()
	}
}

// IncRealtimeEvent records a realtime channel publish or consume.
func IncRealtimeEvent(direction string) {
	if realtimeEvents != nil && direction != "" {
		realtimeEvents.WithLabelValues(direction).Inc()
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "alerts_active",
			Help: "Alerts currently in active status",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM alerts WHERE status = 'active'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "reports_open",
			Help: "Reports currently in open status",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM reports WHERE status = 'open'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
