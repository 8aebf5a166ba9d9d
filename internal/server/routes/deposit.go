package routes

import (
	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler"
)

// RegisterDepositRoutes 表单校验 / 确认 / 状态查询
func RegisterDepositRoutes(rg *gin.RouterGroup, h *handler.DepositHandler) {
	deposits := rg.Group("/deposits")
	{
		deposits.GET("/max-amount", h.MaxAmount)
		deposits.POST("/intent", h.BuildIntent)
		deposits.POST("/preview", h.Preview)
		deposits.POST("", h.Confirm)

		deposits.GET("/history", h.History)
		deposits.GET("/mine", h.Mine)
		deposits.GET("/tx/:txid/status", h.StatusByTxID)
		deposits.GET("/:id/status", h.StatusByID)
	}
}
