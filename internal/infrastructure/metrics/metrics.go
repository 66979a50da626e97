// Package metrics expone contadores Prometheus del motor de custodia: duración y
// resultado de cada operación y eventos publicados por tipo.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/tagtrack-api/internal/application/events"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

const namespace = "tagtrack"

// Metrics colectores registrados en un registry propio.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	events     *prometheus.CounterVec
}

// New crea y registra los colectores (incluye los de runtime de Go y del proceso).
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operaciones del motor de custodia por resultado.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duración de las operaciones del motor de custodia.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Eventos de inventario entregados al bus por tipo.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation implementa inventory.MetricsRecorder.
func (m *Metrics) ObserveOperation(operation string, started time.Time, err error) {
	m.operations.WithLabelValues(operation, Result(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// EventHandler suscriptor del bus que cuenta eventos por tipo (tablero de stock).
func (m *Metrics) EventHandler() events.Handler {
	return func(_ context.Context, evt entity.Event) error {
		m.events.WithLabelValues(string(evt.Type)).Inc()
		return nil
	}
}

// Handler endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry para tests y colectores adicionales.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Result etiqueta de resultado con cardinalidad acotada.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPartialFailure):
		return "partial"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNoStock):
		return "no_stock"
	case errors.Is(err, domain.ErrTestFailure):
		return "test_failure"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	default:
		return "error"
	}
}
