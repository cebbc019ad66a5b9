package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegister(t *testing.T) {
	m := New()
	require.NotNil(t, m)

	m.HashRate.Set(1234.5)
	m.LanesFinalized.Add(512)
	m.Batches.Inc()
	m.MatchesFound.Inc()

	assert.Equal(t, 1234.5, testutil.ToFloat64(m.HashRate))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.LanesFinalized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesFound))
}

//two instances must not collide on the default registry
func TestMetricsIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.Batches.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Batches))
}
