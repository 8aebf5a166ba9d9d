package routes

import (
	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler"
)

// RegisterSessionRoutes 钱包会话 + 余额
func RegisterSessionRoutes(rg *gin.RouterGroup, h *handler.SessionHandler) {
	rg.GET("/session", h.GetSession)
	rg.POST("/session/connect", h.Connect)
	rg.DELETE("/session", h.Disconnect)

	rg.GET("/balances", h.GetBalances)
	rg.POST("/balances/refresh", h.RefreshBalances)
}
