package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/request"
	"deposit-core/internal/handler/response"
	"deposit-core/internal/model"
	"deposit-core/internal/service/lifecycle"
	"deposit-core/internal/service/status"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/validator"
)

type IntentService interface {
	Build(ctx context.Context, rawAmount string, priority model.FeePriority) (model.DepositIntent, error)
	MaxAmount(ctx context.Context) (string, int64)
}

type LifecycleService interface {
	Preview(ctx context.Context, intent model.DepositIntent) (*model.ConfirmationData, error)
	Confirm(ctx context.Context, intent model.DepositIntent) (*lifecycle.Result, error)
}

type StatusService interface {
	Lookup(ctx context.Context, q status.Query) status.Outcome
	View(d styx.Deposit) status.DepositView
}

type HistoryAPI interface {
	GetDepositHistory(ctx context.Context, stxAddress string) ([]styx.Deposit, error)
	GetAllDepositsHistory(ctx context.Context, poolID string) (*styx.DepositHistory, error)
}

type SessionReader interface {
	Current() model.WalletSession
}

type DepositHandler struct {
	intents   IntentService
	lifecycle LifecycleService
	status    StatusService
	history   HistoryAPI
	session   SessionReader
	poolID    string
}

func NewDepositHandler(intents IntentService, lc LifecycleService, st StatusService, history HistoryAPI, session SessionReader, poolID string) *DepositHandler {
	return &DepositHandler{
		intents:   intents,
		lifecycle: lc,
		status:    st,
		history:   history,
		session:   session,
		poolID:    poolID,
	}
}

type MaxAmountResponse struct {
	Amount string `json:"amount"`
	Sats   int64  `json:"sats"`
}

// PreviewResponse 确认弹窗: 校验后的 intent + 展示数据
type PreviewResponse struct {
	Intent       model.DepositIntent     `json:"intent"`
	Confirmation *model.ConfirmationData `json:"confirmation"`
}

type HistoryResponse struct {
	AggregateData  styx.AggregateData   `json:"aggregate_data"`
	RecentDeposits []status.DepositView `json:"recent_deposits"`
}

// MaxAmount 余额减去预估手续费
// @Summary Maximum depositable amount
// @Tags Deposit
// @Produce json
// @Success 200 {object} response.Response{data=MaxAmountResponse}
// @Router /api/v1/deposits/max-amount [get]
func (h *DepositHandler) MaxAmount(c *gin.Context) {
	amt, sats := h.intents.MaxAmount(c.Request.Context())
	response.Success(c, MaxAmountResponse{Amount: amt, Sats: sats})
}

// BuildIntent 只做校验
// @Summary Validate a deposit amount
// @Tags Deposit
// @Accept json
// @Produce json
// @Param request body request.DepositRequest true "Deposit amount"
// @Success 200 {object} response.Response{data=model.DepositIntent}
// @Router /api/v1/deposits/intent [post]
func (h *DepositHandler) BuildIntent(c *gin.Context) {
	intent, ok := h.bindIntent(c)
	if !ok {
		return
	}
	response.Success(c, intent)
}

// Preview 校验 + 确认数据
// @Summary Preview a deposit
// @Tags Deposit
// @Accept json
// @Produce json
// @Param request body request.DepositRequest true "Deposit amount"
// @Success 200 {object} response.Response{data=PreviewResponse}
// @Router /api/v1/deposits/preview [post]
func (h *DepositHandler) Preview(c *gin.Context) {
	intent, ok := h.bindIntent(c)
	if !ok {
		return
	}
	data, err := h.lifecycle.Preview(c.Request.Context(), intent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, PreviewResponse{Intent: intent, Confirmation: data})
}

// Confirm 校验后发起存款: 建记录, 准备 PSBT, 钱包签名, 广播
// @Summary Confirm a deposit
// @Tags Deposit
// @Accept json
// @Produce json
// @Param request body request.DepositRequest true "Deposit amount"
// @Success 200 {object} response.Response{data=lifecycle.Result}
// @Failure 409 {object} response.Response
// @Router /api/v1/deposits [post]
func (h *DepositHandler) Confirm(c *gin.Context) {
	intent, ok := h.bindIntent(c)
	if !ok {
		return
	}
	res, err := h.lifecycle.Confirm(c.Request.Context(), intent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (h *DepositHandler) bindIntent(c *gin.Context) (model.DepositIntent, bool) {
	// 1. 绑定参数
	var req request.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithDetail(validator.GetErrorMsg(err)))
		return model.DepositIntent{}, false
	}
	priority, _ := model.ParseFeePriority(req.FeePriority)

	// 2. 业务校验
	intent, err := h.intents.Build(c.Request.Context(), req.Amount, priority)
	if err != nil {
		response.Error(c, err)
		return model.DepositIntent{}, false
	}
	return intent, true
}

// StatusByID 按存款 ID 查询
// @Summary Deposit status by id
// @Tags Status
// @Produce json
// @Param id path string true "Deposit ID"
// @Success 200 {object} response.Response{data=status.Outcome}
// @Failure 404 {object} response.Response
// @Router /api/v1/deposits/{id}/status [get]
func (h *DepositHandler) StatusByID(c *gin.Context) {
	h.lookup(c, status.Query{DepositID: c.Param("id")})
}

// StatusByTxID 按比特币交易 ID 查询
// @Summary Deposit status by Bitcoin txid
// @Tags Status
// @Produce json
// @Param txid path string true "Bitcoin transaction ID"
// @Success 200 {object} response.Response{data=status.Outcome}
// @Failure 404 {object} response.Response
// @Router /api/v1/deposits/tx/{txid}/status [get]
func (h *DepositHandler) StatusByTxID(c *gin.Context) {
	h.lookup(c, status.Query{TxID: c.Param("txid")})
}

func (h *DepositHandler) lookup(c *gin.Context, q status.Query) {
	out := h.status.Lookup(c.Request.Context(), q)
	if err := out.Err(); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// History 全部存款汇总
// @Summary Recent deposits and aggregates
// @Tags Status
// @Produce json
// @Success 200 {object} response.Response{data=HistoryResponse}
// @Router /api/v1/deposits/history [get]
func (h *DepositHandler) History(c *gin.Context) {
	hist, err := h.history.GetAllDepositsHistory(c.Request.Context(), h.poolID)
	if err != nil {
		response.Error(c, errno.ErrUpstream.WithDetail(err.Error()))
		return
	}
	resp := HistoryResponse{RecentDeposits: []status.DepositView{}}
	if hist != nil {
		resp.AggregateData = hist.AggregateData
		resp.RecentDeposits = h.views(hist.RecentDeposits)
	}
	response.Success(c, resp)
}

// Mine 当前 Stacks 地址的存款
// @Summary Deposits of the connected wallet
// @Tags Status
// @Produce json
// @Success 200 {object} response.Response{data=[]status.DepositView}
// @Router /api/v1/deposits/mine [get]
func (h *DepositHandler) Mine(c *gin.Context) {
	s := h.session.Current()
	if !s.SignedIn || s.StacksAddress == "" {
		response.Error(c, errno.ErrNotConnected)
		return
	}
	deposits, err := h.history.GetDepositHistory(c.Request.Context(), s.StacksAddress)
	if err != nil {
		response.Error(c, errno.ErrUpstream.WithDetail(err.Error()))
		return
	}
	response.Success(c, h.views(deposits))
}

func (h *DepositHandler) views(deposits []styx.Deposit) []status.DepositView {
	out := make([]status.DepositView, 0, len(deposits))
	for _, d := range deposits {
		out = append(out, h.status.View(d))
	}
	return out
}
