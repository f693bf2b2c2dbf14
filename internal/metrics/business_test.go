package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output contains a sample of name whose
// labels match the partial pattern. The exporter injects OTel scope labels, hence the regex.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusError, Status(errors.New("boom")))
}

func TestBusinessMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "directory", "user_create", StatusSuccess)
	bm.RecordOperation(ctx, "directory", "user_create", StatusSuccess)
	bm.RecordOperation(ctx, "directory", "user_create", StatusError)
	bm.RecordOperation(ctx, "ldap", "bind", StatusSuccess)
	bm.RecordOperation(ctx, "auth", "password_verify", StatusError)

	bm.RecordDuration(ctx, "directory", "user_create", 50*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, "directory", "user_create", 60*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, "ldap", "search", 10*time.Millisecond, StatusSuccess)

	output := scrape(t, provider)

	assertMetricLine(t, output, `integration_test_operations_total`,
		`domain="directory".*operation="user_create".*status="success"`, `2`)
	assertMetricLine(t, output, `integration_test_operations_total`,
		`domain="directory".*operation="user_create".*status="error"`, `1`)
	assertMetricLine(t, output, `integration_test_operations_total`,
		`domain="ldap".*operation="bind".*status="success"`, `1`)
	assertMetricLine(t, output, `integration_test_operation_duration_seconds_count`,
		`domain="directory".*operation="user_create".*status="success"`, `2`)
	assertMetricLine(t, output, `integration_test_operation_duration_seconds_count`,
		`domain="ldap".*operation="search".*status="success"`, `1`)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	m := NewNoOpBusinessMetrics()
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.RecordOperation(context.Background(), "ldap", "bind", StatusError)
		m.RecordDuration(context.Background(), "ldap", "bind", time.Second, StatusError)
	})
}

func TestConnectionMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("conn_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	cm, err := NewConnectionMetrics(provider.MeterProvider(), "conn_test")
	require.NoError(t, err)

	ctx := context.Background()
	cm.ConnectionOpened(ctx, "ldap")
	cm.ConnectionOpened(ctx, "ldap")
	cm.ConnectionOpened(ctx, "ldap")
	cm.ConnectionClosed(ctx, "ldap", 2*time.Second)

	output := scrape(t, provider)

	assertMetricLine(t, output, `conn_test_active_connections`, `protocol="ldap"`, `2`)
	assertMetricLine(t, output, `conn_test_connections_total`, `protocol="ldap"`, `3`)
	assertMetricLine(t, output, `conn_test_connection_duration_seconds_count`, `protocol="ldap"`, `1`)
}

func TestNoOpConnectionMetrics(t *testing.T) {
	m := NewNoOpConnectionMetrics()
	assert.NotPanics(t, func() {
		m.ConnectionOpened(context.Background(), "ldap")
		m.ConnectionClosed(context.Background(), "ldap", time.Second)
	})
}
