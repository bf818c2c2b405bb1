package telemetry

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "macromaster"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
)

var (
	registerOnce        sync.Once
	ingestInteractions  *prometheus.CounterVec
	sessionEvents       *prometheus.CounterVec
	metricsRecompute    prometheus.Histogram
	maintenanceRuns     *prometheus.CounterVec
	recomputeDurBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
)

// MustRegister creates the collectors on the default registry. It is safe to
// call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		ingestInteractions = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "ingest",
					Name:      "interactions_total",
					Help:      "Interactions submitted for recording, by outcome.",
				},
				[]string{"result"},
			),
		)
		sessionEvents = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "sessions",
					Name:      "events_total",
					Help:      "Session lifecycle events (started, ended, duplicate, unknown).",
				},
				[]string{"event"},
			),
		)
		metricsRecompute = registerHistogram(
			prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "metrics",
					Name:      "recompute_seconds",
					Help:      "Time spent recomputing and caching a session snapshot.",
					Buckets:   recomputeDurBuckets,
				},
			),
		)
		maintenanceRuns = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "maintenance",
					Name:      "runs_total",
					Help:      "Cleanup and backup runs, by job and outcome.",
				},
				[]string{"job", "result"},
			),
		)

		registerRuntimeCollectors()
	})
}

func RecordInteraction(result string) {
	if ingestInteractions == nil {
		return
	}
	ingestInteractions.WithLabelValues(normalizeLabel(result, "unknown")).Inc()
}

func RecordSessionEvent(event string) {
	if sessionEvents == nil {
		return
	}
	sessionEvents.WithLabelValues(normalizeLabel(event, "unknown")).Inc()
}

func ObserveRecompute(d time.Duration) {
	if metricsRecompute == nil {
		return
	}
	metricsRecompute.Observe(d.Seconds())
}

func RecordMaintenance(job, result string) {
	if maintenanceRuns == nil {
		return
	}
	maintenanceRuns.WithLabelValues(normalizeLabel(job, "unknown"), normalizeLabel(result, "unknown")).Inc()
}

// Result maps an error to the success/failure label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func normalizeLabel(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerHistogram(h prometheus.Histogram) prometheus.Histogram {
	if err := prometheus.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func registerRuntimeCollectors() {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := prometheus.Register(c); err != nil && !isAlreadyRegistered(err) {
			panic(err)
		}
	}
}

func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}
