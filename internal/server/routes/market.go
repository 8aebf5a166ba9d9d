package routes

import (
	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler"
)

func RegisterMarketRoutes(rg *gin.RouterGroup, h *handler.MarketHandler) {
	rg.GET("/fees", h.GetFees)
	rg.GET("/pool", h.GetPool)
}
