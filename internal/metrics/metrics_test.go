package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	m := New()

	m.ObserveGeneration("success", 200*time.Millisecond, 12, 0)
	m.ObserveGeneration("partial", time.Second, 10, 2)
	m.ObserveGeneration("rejected", 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.genTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.genTotal.WithLabelValues("rejected")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.placedSlots))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.unplacedUnits), "被拒绝的生成不覆盖最近结果")
}

func TestSetActiveConflicts(t *testing.T) {
	m := New()

	m.SetActiveConflicts(map[string]int{"room_conflict": 2})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeConflicts.WithLabelValues("room_conflict")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeConflicts.WithLabelValues("teacher_conflict")))

	m.SetActiveConflicts(map[string]int{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeConflicts.WithLabelValues("room_conflict")))
}

func TestObserveResolution(t *testing.T) {
	m := New()
	m.ObserveResolution("auto_resolve", "success")
	m.ObserveResolution("auto_resolve", "success")
	m.ObserveResolution("relax_constraints", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues("auto_resolve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("relax_constraints", "failed")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpTotal.WithLabelValues("GET", "/health", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "kebiao_http_requests_total"))
}
