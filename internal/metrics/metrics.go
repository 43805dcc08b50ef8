// Package metrics agrupa los collectors Prometheus del servicio.
//
// Todos los métodos aceptan receiver nil y no hacen nada, así los
// componentes pueden recibir *Metrics opcional.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rugi"

type Metrics struct {
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer

	authOutcomes     *prometheus.CounterVec
	rateDecisions    *prometheus.CounterVec
	rateFallbacks    *prometheus.CounterVec
	auditDropped     prometheus.Counter
	notifierFailures *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight *prometheus.GaugeVec
}

// New crea y registra los collectors. Con reg nil usa un registry propio
// (aislado, útil en tests).
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg:      reg,
		gatherer: reg,
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Operaciones de autenticación por acción y resultado",
		}, []string{"action", "result"}),
		rateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Decisiones del admission controller por política",
		}, []string{"policy", "result"}), // result: allowed|limited
		rateFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_store_fallbacks_total",
			Help:      "Veces que el store primario falló y se usó memoria",
		}, []string{"policy"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Eventos de auditoría descartados por buffer lleno o error",
		}),
		notifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_failures_total",
			Help:      "Fallos al enviar notificaciones por template",
		}, []string{"template"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de los requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
	}

	for _, c := range []prometheus.Collector{
		m.authOutcomes, m.rateDecisions, m.rateFallbacks, m.auditDropped,
		m.notifierFailures, m.httpRequests, m.httpDuration, m.httpInflight,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register agrega un collector extra (ej: pool de Postgres).
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return registerCollector(m.reg, c)
}

// Handler expone /metrics para este registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// AuthOutcome cuenta el resultado de un flow (result: ok o el kind del error).
func (m *Metrics) AuthOutcome(action, result string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(action, result).Inc()
}

// RateDecision cuenta allowed/limited por política.
func (m *Metrics) RateDecision(policy string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "limited"
	}
	m.rateDecisions.WithLabelValues(policy, result).Inc()
}

// RateFallback cuenta un fallo del store primario.
func (m *Metrics) RateFallback(policy string) {
	if m == nil {
		return
	}
	m.rateFallbacks.WithLabelValues(policy).Inc()
}

func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

func (m *Metrics) NotifierFailure(template string) {
	if m == nil {
		return
	}
	m.notifierFailures.WithLabelValues(template).Inc()
}

// HTTPStart marca un request en vuelo; el func devuelto cierra la medición.
func (m *Metrics) HTTPStart(method, path string) func(status int) {
	if m == nil {
		return func(int) {}
	}
	start := time.Now()
	m.httpInflight.WithLabelValues(method, path).Inc()
	return func(status int) {
		m.httpInflight.WithLabelValues(method, path).Dec()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	}
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
