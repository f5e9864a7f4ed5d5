package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementMessage(MessageAccepted)
	m.IncrementMessage(MessageAccepted)
	m.IncrementMessage(MessageRejected)
	m.IncrementBehov("IkkeTilgang")
	m.IncrementTokenFetch(nil)
	m.IncrementTokenFetch(errors.New("boom"))
	m.ObserveEFSakLatency(nil, 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RapidMessages.WithLabelValues(MessageAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RapidMessages.WithLabelValues(MessageRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Behov.WithLabelValues("IkkeTilgang")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenFetches.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.EFSakLatency))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementMessage(MessageInvalid)
		m.IncrementBehov("ok")
		m.ObserveEFSakLatency(nil, time.Second)
		m.IncrementTokenFetch(nil)
	})
}
