package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/xsist-conector/internal/infrastructure/metrics"
)

func TestMetrics_ObserveFetch(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveFetch("NFE", "SUCCESS", time.Now())
	m.ObserveFetch("NFE", "SUCCESS", time.Now())
	m.ObserveFetch("NFE", "NOT_FOUND", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("NFE", "SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("NFE", "NOT_FOUND")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestMetrics_CacheYCertificado(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.IncrementCacheHit()
	m.ObserveCertificateLoad(true)
	m.ObserveCertificateLoad(false)
	m.ObserveCertificateLoad(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CertificateLoads.WithLabelValues("error")))
}

func TestMetrics_NilEsNoOp(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("NFE", "SUCCESS", time.Now())
		m.IncrementCacheHit()
		m.ObserveCertificateLoad(true)
	})
}
