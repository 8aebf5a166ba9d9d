package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/response"
	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/styx"
)

type FeeService interface {
	Estimates(ctx context.Context) (model.FeeEstimates, bool)
}

type PoolService interface {
	PoolStatus(ctx context.Context) (*styx.PoolStatus, error)
}

type MarketHandler struct {
	fees FeeService
	pool PoolService
}

func NewMarketHandler(fees FeeService, pool PoolService) *MarketHandler {
	return &MarketHandler{fees: fees, pool: pool}
}

// FeesResponse fallback=true 表示用的是默认费率表
type FeesResponse struct {
	model.FeeEstimates
	Fallback bool `json:"fallback"`
}

// GetFees 三档手续费
// @Summary Fee tiers
// @Tags Market
// @Produce json
// @Success 200 {object} response.Response{data=FeesResponse}
// @Router /api/v1/fees [get]
func (h *MarketHandler) GetFees(c *gin.Context) {
	est, fallback := h.fees.Estimates(c.Request.Context())
	response.Success(c, FeesResponse{FeeEstimates: est, Fallback: fallback})
}

// GetPool 池子流动性
// @Summary Pool liquidity
// @Tags Market
// @Produce json
// @Success 200 {object} response.Response{data=styx.PoolStatus}
// @Router /api/v1/pool [get]
func (h *MarketHandler) GetPool(c *gin.Context) {
	status, err := h.pool.PoolStatus(c.Request.Context())
	if err != nil {
		response.Error(c, errno.ErrUpstream.WithDetail(err.Error()))
		return
	}
	response.Success(c, status)
}
