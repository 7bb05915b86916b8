package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Metrics)
	require.NotNil(t, r.PrometheusRegistry())

	r.Metrics.MessagesPublished.WithLabelValues("/chatter").Inc()
	r.Metrics.MessagesPublished.WithLabelValues("/chatter").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Metrics.MessagesPublished.WithLabelValues("/chatter")))

	r.Metrics.GraphEntities.Set(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(r.Metrics.GraphEntities))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.Metrics.SelectorPolls.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.SelectorPolls))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Metrics.SelectorPolls))
}
