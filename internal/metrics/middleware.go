package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// UnmatchedRoute метка для запросов мимо зарегистрированных маршрутов
const UnmatchedRoute = "unmatched"

// HTTPMetricsMiddleware считает запросы по шаблону маршрута.
// Пути из skip (служебные /metrics, /health) не учитываются. Для WebSocket
// апгрейда длительность не пишется: это время жизни соединения, а не запроса.
func HTTPMetricsMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skipped[route]; ok && route != "" {
			c.Next()
			return
		}
		if route == "" {
			route = UnmatchedRoute
		}
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")

		start := time.Now()
		c.Next()

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		if !upgrade {
			HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		}
	}
}
