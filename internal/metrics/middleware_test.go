package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetricsMiddleware("/metrics"))
	router.GET("/api/v1/live/:session_id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ws", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	do := func(path string, header map[string]string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	live := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/live/:session_id", "200")
	unmatched := HTTPRequestsTotal.WithLabelValues(http.MethodGet, UnmatchedRoute, "404")
	scrape := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	ws := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/ws", "400")
	beforeLive, beforeUnmatched := testutil.ToFloat64(live), testutil.ToFloat64(unmatched)
	beforeScrape, beforeWS := testutil.ToFloat64(scrape), testutil.ToFloat64(ws)
	durationsBefore := testutil.CollectAndCount(HTTPRequestDuration)

	do("/api/v1/live/a", nil)
	do("/api/v1/live/b", nil)
	do("/nowhere", nil)
	do("/metrics", nil)
	do("/ws", map[string]string{"Upgrade": "websocket", "Connection": "Upgrade"})

	// Шаблон маршрута, а не конкретный путь
	assert.Equal(t, beforeLive+2, testutil.ToFloat64(live))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
	assert.Equal(t, beforeScrape, testutil.ToFloat64(scrape))
	assert.Equal(t, beforeWS+1, testutil.ToFloat64(ws))

	// Гистограммы появились только для live и unmatched
	assert.LessOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), durationsBefore+2)
}
