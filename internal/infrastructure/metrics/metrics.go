// Package metrics contadores e histogramas Prometheus del conector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observabilidad de las descargas por chave.
type Metrics struct {
	FetchTotal       *prometheus.CounterVec // labels: family, outcome
	FetchDuration    prometheus.Histogram
	CacheHits        prometheus.Counter
	CertificateLoads *prometheus.CounterVec // labels: result (ok|error)
}

// New registra las métricas en reg. Con reg nil usa el registry por defecto.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xsist_fetch_total",
			Help: "Consultas por chave a la SEFAZ por familia y resultado",
		}, []string{"family", "outcome"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "xsist_fetch_duration_seconds",
			Help:    "Duración de la consulta por chave (validación + mTLS + parseo)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "xsist_cache_hits_total",
			Help: "Descargas resueltas desde la caché sin consultar la SEFAZ",
		}),
		CertificateLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xsist_certificate_loads_total",
			Help: "Cargas del certificado A1 por resultado",
		}, []string{"result"}),
	}
}

// ObserveFetch registra una consulta; start es el time.Now() tomado al iniciarla.
func (m *Metrics) ObserveFetch(family, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(family, outcome).Inc()
	m.FetchDuration.Observe(time.Since(start).Seconds())
}

// IncrementCacheHit descarga servida desde caché.
func (m *Metrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveCertificateLoad ok=false para contraseña incorrecta o archivo inválido.
func (m *Metrics) ObserveCertificateLoad(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CertificateLoads.WithLabelValues(result).Inc()
}
