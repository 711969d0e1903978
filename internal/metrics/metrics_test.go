package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Attempts.WithLabelValues(AttemptStarted).Inc()
	m.Attempts.WithLabelValues(AttemptStarted).Inc()
	m.Matches.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Attempts.WithLabelValues(AttemptStarted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Matches))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "randomic_call_attempts_total")
	assert.Contains(t, names, "randomic_session_matches_total")
}

func TestUnregisteredIsolated(t *testing.T) {
	a := NewUnregistered()
	b := NewUnregistered()
	a.Matches.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Matches))
}
