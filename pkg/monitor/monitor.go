package monitor

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sbtc_deposit"

var (
	// HTTPRequestsTotal 按路由模板和状态码统计, 业务错误码也是 200, 所以另记 envelope code
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template, status and envelope code.",
		},
		[]string{"method", "route", "status", "code"},
	)

	// HTTPRequestDuration 状态查询和 confirm 会打外部接口, 桶给到 10s
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// CacheLookupsTotal 读穿透缓存命中情况, family 是 key 的第一段
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read-through cache lookups by key family and result.",
		},
		[]string{"family", "result"},
	)

	initOnce sync.Once
)

// CodeKey handler 把 envelope code 放进 gin.Context, 中间件读出来做 label
const CodeKey = "monitor.code"

// Init 注册指标, 可重复调用 (测试里每次都会建 router)
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, CacheLookupsTotal)
		InitBusinessMetrics()
	})
}

// PrometheusMiddleware 用路由模板 (/api/v1/deposits/:id/status) 做 label, 未匹配的路由不记
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			return
		}
		code := "0"
		if v, ok := c.Get(CodeKey); ok {
			if n, ok := v.(int); ok {
				code = strconv.Itoa(n)
			}
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), code).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheLookup Init 之前调用是安全的, 只是计数没人采集
func RecordCacheLookup(family string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(family, result).Inc()
}
