package metricssvc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.ObserveAggregation("student_grades", 20*time.Millisecond)
	r.ObserveAggregation("student_grades", 30*time.Millisecond)
	r.FetchFailed("grades")
	r.CacheLookup(true)
	r.CacheLookup(false)
	r.CacheLookup(false)

	assert.Equal(t, 1, testutil.CollectAndCount(r.aggregations))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.failures.WithLabelValues("grades")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")))
}

func TestRecorder_Middleware(t *testing.T) {
	r := NewRecorder()
	e := echo.New()
	e.Use(r.Middleware())
	e.GET("/v1/groups/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"g1", "g2", "missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/groups/"+id, nil))
	}

	assert.Equal(t, 2, testutil.CollectAndCount(r.requests))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `escolar_http_request_duration_seconds_count{code="200",method="GET",route="/v1/groups/:id"} 2`), body)
	assert.Contains(t, body, `code="404"`)
	assert.Contains(t, body, "go_goroutines")
}
