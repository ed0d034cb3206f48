package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/dashboard-auth/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.Login(metrics.ResultSuccess)
	m.Refresh(metrics.ResultFailure)
	m.SetAuthenticated(true)
	m.Logout()
	require.Nil(t, m.Registry())
}

func TestMetrics_Exposition(t *testing.T) {
	m := metrics.New()
	m.Login(metrics.ResultSuccess)
	m.Login(metrics.ResultFailure)
	m.Login(metrics.ResultFailure)
	m.SetAuthenticated(true)

	count, err := testutil.GatherAndCount(m.Registry(), "dashauth_logins_total")
	require.NoError(t, err)
	require.Equal(t, 2, count, "one series per result label")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, rec.Body.String(), `dashauth_logins_total{result="failure"} 2`)
	require.Contains(t, rec.Body.String(), "dashauth_session_authenticated 1")
}

func family(t *testing.T, m *metrics.Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not gathered", name)
	return nil
}

func TestMetrics_AuthenticatedGaugeFollowsTransitions(t *testing.T) {
	m := metrics.New()

	m.SetAuthenticated(true)
	require.Equal(t, 1.0, family(t, m, "dashauth_session_authenticated").GetMetric()[0].GetGauge().GetValue())

	m.SetAuthenticated(false)
	m.Logout()
	require.Equal(t, 0.0, family(t, m, "dashauth_session_authenticated").GetMetric()[0].GetGauge().GetValue())
	require.Equal(t, 1.0, family(t, m, "dashauth_logouts_total").GetMetric()[0].GetCounter().GetValue())
}
