package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/request"
	"deposit-core/internal/handler/response"
	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/validator"
)

type SessionService interface {
	Current() model.WalletSession
	Connect(ctx context.Context, entries []model.AddressEntry) (model.WalletSession, error)
	Disconnect(ctx context.Context) error
}

type BalanceService interface {
	Snapshot() model.Balances
	Refresh(ctx context.Context)
}

type SessionHandler struct {
	session  SessionService
	balances BalanceService
}

func NewSessionHandler(session SessionService, balances BalanceService) *SessionHandler {
	return &SessionHandler{session: session, balances: balances}
}

// GetSession 当前钱包会话
// @Summary Current wallet session
// @Tags Session
// @Produce json
// @Success 200 {object} response.Response{data=model.WalletSession}
// @Router /api/v1/session [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	response.Success(c, h.session.Current())
}

// Connect 写入钱包地址列表
// @Summary Connect a wallet
// @Description Persists the address list returned by the wallet and re-derives the session
// @Tags Session
// @Accept json
// @Produce json
// @Param request body request.ConnectRequest true "Wallet addresses"
// @Success 200 {object} response.Response{data=model.WalletSession}
// @Router /api/v1/session/connect [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	var req request.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithDetail(validator.GetErrorMsg(err)))
		return
	}

	s, err := h.session.Connect(c.Request.Context(), req.Addresses)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s)
}

// Disconnect 清掉本地存储, 会话回到未登录
// @Summary Disconnect the wallet
// @Tags Session
// @Produce json
// @Success 200 {object} response.Response{data=model.WalletSession}
// @Router /api/v1/session [delete]
func (h *SessionHandler) Disconnect(c *gin.Context) {
	if err := h.session.Disconnect(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.session.Current())
}

// GetBalances 最近一次成功的余额
// @Summary Last known balances
// @Tags Session
// @Produce json
// @Success 200 {object} response.Response{data=model.Balances}
// @Router /api/v1/balances [get]
func (h *SessionHandler) GetBalances(c *gin.Context) {
	response.Success(c, h.balances.Snapshot())
}

// RefreshBalances 立即刷新一次
// @Summary Refresh balances now
// @Tags Session
// @Produce json
// @Success 200 {object} response.Response{data=model.Balances}
// @Router /api/v1/balances/refresh [post]
func (h *SessionHandler) RefreshBalances(c *gin.Context) {
	h.balances.Refresh(c.Request.Context())
	response.Success(c, h.balances.Snapshot())
}
