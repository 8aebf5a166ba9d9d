package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"deposit-core/internal/handler"
	"deposit-core/internal/server/routes"
	"deposit-core/pkg/monitor"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	Health  *handler.HealthHandler
	Session *handler.SessionHandler
	Deposit *handler.DepositHandler
	Market  *handler.MarketHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 监控指标
	monitor.Init()

	// 1. 默认中间件: Logger, Recovery
	r := gin.Default()
	r.Use(monitor.PrometheusMiddleware())

	// 2. 基础路由
	if h.Health == nil {
		h.Health = handler.NewHealthHandler(nil)
	}
	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 3. 业务路由
	api := r.Group("/api/v1")
	{
		routes.RegisterSessionRoutes(api, h.Session)
		routes.RegisterMarketRoutes(api, h.Market)
		routes.RegisterDepositRoutes(api, h.Deposit)
	}
	return r
}
