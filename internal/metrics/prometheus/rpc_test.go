package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtrpcd/virtrpcd/internal/metrics"
)

func TestNewRPCMetricsNilWhenDisabled(t *testing.T) {
	m := NewRPCMetrics()
	assert.Nil(t, m)

	// Nil-receiver methods must not panic even though the interface value
	// isn't a true nil interface once returned through a typed *rpcMetrics.
	var typed *rpcMetrics
	require.NotPanics(t, func() {
		typed.RecordRequest("OPEN", "ok", time.Millisecond)
		typed.RecordConnectionAccepted()
	})
}

func TestRPCMetricsRecordsCounters(t *testing.T) {
	metrics.InitRegistry()
	m := NewRPCMetrics()
	require.NotNil(t, m)

	m.RecordRequest("DOMAIN_DEFINE_XML", "ok", 5*time.Millisecond)
	m.RecordConnectionAccepted()
	m.SetActiveConnections(3)
	m.RecordAuthOutcome("PLAIN", "success")
	m.RecordThrottled("10.0.0.1:5555")

	impl, ok := m.(*rpcMetrics)
	require.True(t, ok)

	assert.Equal(t, float64(1), testutil.ToFloat64(impl.requestsTotal.WithLabelValues("DOMAIN_DEFINE_XML", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.connectionsAccepted))
	assert.Equal(t, float64(3), testutil.ToFloat64(impl.activeConnections))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.authOutcomes.WithLabelValues("PLAIN", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.authThrottled.WithLabelValues("10.0.0.1:5555")))
}
