package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_ServesRuntimeMetrics(t *testing.T) {
	reg := NewRegistry()
	NewAuthMetrics(reg)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "devproperties_auth_instances_active")
	assert.Contains(t, body, "devproperties_build_info{")
}

func TestAuthMetrics(t *testing.T) {
	m := NewAuthMetrics(prometheus.NewRegistry())

	m.InstanceOpened()
	m.InstanceOpened()
	m.InstanceClosed()
	m.NotificationApplied(authstate.OutcomeSignedIn)
	m.NotificationApplied(authstate.OutcomeSignedIn)
	m.NotificationApplied(authstate.OutcomeMalformed)
	m.GuardDecision(authstate.Protected, authstate.RedirectToLogin)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstancesActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstancesOpened))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Notifications.WithLabelValues("signed_in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("protected", "redirect_login")))
}

func TestBreakerMetrics_Observe(t *testing.T) {
	m := NewBreakerMetrics(prometheus.NewRegistry())

	m.Observe("redis", "open", 2)
	m.Observe("redis", "half-open", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.State.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateChanges.WithLabelValues("redis", "open")))
}

func TestListingMetrics(t *testing.T) {
	m := NewListingMetrics(prometheus.NewRegistry())

	m.ListingCreated()
	m.ListingDeleted()
	m.ImageUploaded(2048)
	m.ImageRejected()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListingsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListingsDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageUploads.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageUploads.WithLabelValues("rejected")))
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/imovel/:id", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/health/live", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/static/*", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/imovel/1", "/imovel/2", "/health/live", "/static/style.css"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/imovel/:id", "200")))

	expected := `
# HELP devproperties_http_in_flight_requests Number of HTTP requests currently being processed.
# TYPE devproperties_http_in_flight_requests gauge
devproperties_http_in_flight_requests 0
`
	require.NoError(t, testutil.CollectAndCompare(m.InFlightGauge, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal), "health checks and assets are not recorded")
}

func TestSkipRoute(t *testing.T) {
	assert.True(t, skipRoute("/session/watch"))
	assert.True(t, skipRoute("/static/*"))
	assert.True(t, skipRoute("/health/ready"))
	assert.False(t, skipRoute("/busca/:search"))
	assert.False(t, skipRoute(""))
}

func TestDBMetrics_ObserveQuery(t *testing.T) {
	m := NewDBMetrics(prometheus.NewRegistry())

	m.ObserveQuery("select", 10*time.Millisecond, nil)
	m.ObserveQuery("insert", time.Millisecond, errors.New("unique violation"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Errors.WithLabelValues("select")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("insert")))
}
