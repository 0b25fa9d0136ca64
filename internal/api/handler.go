// Package api exposes the settlement engine over HTTP. Reads are open;
// every mutating route requires an EIP-191 signed request and is gated on
// the action named inside the signature, so a signed lock cannot be
// replayed as a cancel.
package api

import (
	"context"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/auth"
	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// SwapHooks is the interface the API needs from the announcement pipeline.
// Decoupled here so handler tests can use a mock.
type SwapHooks interface {
	OnLocked(ctx context.Context, id common.Hash, req swap.Request)
}

// Handler serves the paymaster API for one chain instance.
type Handler struct {
	pm    *paymaster.Paymaster
	hooks SwapHooks
	log   *zap.Logger
}

func NewHandler(pm *paymaster.Paymaster, hooks SwapHooks, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{pm: pm, hooks: hooks, log: log}
}

// Register mounts all routes on rg. Reads carry no middleware; writes go
// through the verifier plus a per-route action gate.
func (h *Handler) Register(rg *gin.RouterGroup, verifier *auth.Verifier) {
	// ── Reads ───────────────────────────────────────────────────────────────
	rg.GET("/swaps/:id", h.handleGetSwap)
	rg.GET("/incoming/:id", h.handleGetIncoming)
	rg.GET("/xlps", h.handleListXlps)
	rg.GET("/xlps/:addr/balance", h.handleXlpBalance)
	rg.GET("/stake/:addr", h.handleGetStake)

	// ── Writes ──────────────────────────────────────────────────────────────
	w := rg.Group("", verifier.Middleware())
	w.POST("/swaps", auth.RequireAction(ActionLock), h.handleLock)
	w.POST("/swaps/cancel", auth.RequireAction(ActionCancel), h.handleCancel)
	w.POST("/vouchers", auth.RequireAction(ActionIssueVouchers), h.handleIssueVouchers)
	w.POST("/withdrawals", auth.RequireAction(ActionWithdraw), h.handleWithdraw)
	w.POST("/disputes", auth.RequireAction(ActionDispute), h.handleRaiseDispute)
	w.POST("/disputes/resolve", auth.RequireAction(ActionResolveDispute), h.handleResolveDispute)
	w.POST("/redeem", auth.RequireAction(ActionRedeem), h.handleRedeem)
	w.POST("/xlps/deposit", auth.RequireAction(ActionXlpDeposit), h.handleXlpDeposit)
	w.POST("/stake", auth.RequireAction(ActionStake), h.handleStake)
	w.POST("/stake/unstake", auth.RequireAction(ActionUnstake), h.handleUnstake)
	w.POST("/stake/withdraw", auth.RequireAction(ActionWithdrawStake), h.handleWithdrawStake)
}

// ── Swap lifecycle ──────────────────────────────────────────────────────────

func (h *Handler) handleLock(c *gin.Context) {
	wallet, ok := auth.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no wallet in context"})
		return
	}
	var req swap.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.pm.LockUserDeposit(wallet, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("deposit locked",
		zap.String("id", id.Hex()),
		zap.String("sender", wallet.Hex()))
	if h.hooks != nil {
		go h.hooks.OnLocked(context.Background(), id, req)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": swap.StatusNew.String()})
}

func (h *Handler) handleCancel(c *gin.Context) {
	wallet, ok := auth.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no wallet in context"})
		return
	}
	var req swap.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.pm.CancelVoucherRequest(wallet, req); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID(), "status": swap.StatusCancelled.String()})
}

func (h *Handler) handleIssueVouchers(c *gin.Context) {
	var body IssueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(body.Submissions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no submissions"})
		return
	}
	if err := h.pm.IssueVouchers(body.Submissions); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issued": len(body.Submissions)})
}

func (h *Handler) handleWithdraw(c *gin.Context) {
	var body WithdrawRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(body.Requests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no requests"})
		return
	}
	if err := h.pm.WithdrawFromUserDeposit(body.Requests); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": len(body.Requests)})
}

// ── Disputes ────────────────────────────────────────────────────────────────

func (h *Handler) handleRaiseDispute(c *gin.Context) {
	var body DisputeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.ID == (common.Hash{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing request id"})
		return
	}
	if err := h.pm.RaiseDispute(body.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": body.ID, "status": swap.StatusDisputed.String()})
}

func (h *Handler) handleResolveDispute(c *gin.Context) {
	var body ResolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status, err := h.pm.ResolveDispute(c.Request.Context(), body.Request, body.Proof)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": body.Request.ID(), "status": status.String()})
}

// ── Destination redemption ──────────────────────────────────────────────────

func (h *Handler) handleRedeem(c *gin.Context) {
	var v voucher.Voucher
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.pm.RedeemVoucher(&v); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("voucher redeemed",
		zap.String("id", v.RequestID.Hex()),
		zap.String("xlp", v.Xlp.Hex()))
	c.JSON(http.StatusOK, gin.H{"id": v.RequestID, "status": swap.IncomingClaimed.String()})
}

// ── XLP accounts ────────────────────────────────────────────────────────────

func (h *Handler) handleXlpDeposit(c *gin.Context) {
	wallet, ok := auth.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no wallet in context"})
		return
	}
	var body XlpDepositRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.pm.DepositToXlp(wallet, body.Xlp, body.Asset); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"xlp": body.Xlp, "balance": h.xlpBalance(body.Xlp, body.Asset.Token)})
}

func (h *Handler) handleListXlps(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"xlps": h.pm.Xlps(offset, limit), "count": h.pm.XlpCount()})
}

func (h *Handler) handleXlpBalance(c *gin.Context) {
	addr := common.HexToAddress(c.Param("addr"))
	resp := gin.H{"xlp": addr, "native": h.pm.NativeBalanceOf(addr)}
	if tok := c.Query("token"); tok != "" {
		resp["token"] = h.pm.TokenBalanceOf(addr, common.HexToAddress(tok))
	}
	c.JSON(http.StatusOK, resp)
}

// ── Stake ───────────────────────────────────────────────────────────────────

func (h *Handler) handleStake(c *gin.Context) {
	h.stakeOp(c, h.pm.Stake)
}

func (h *Handler) handleUnstake(c *gin.Context) {
	h.stakeOp(c, h.pm.RequestUnstake)
}

// stakeOp binds a stake mutation body, runs op for the authenticated XLP
// and responds with the updated record.
func (h *Handler) stakeOp(c *gin.Context, op func(common.Address, uint64, *big.Int) error) {
	wallet, ok := auth.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no wallet in context"})
		return
	}
	var body StakeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := op(wallet, body.ChainID, body.Amount); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"xlp": wallet, "chain_id": body.ChainID, "stake": h.pm.StakeInfo(wallet, body.ChainID)})
}

func (h *Handler) handleWithdrawStake(c *gin.Context) {
	wallet, ok := auth.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no wallet in context"})
		return
	}
	var body StakeWithdrawRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	amount, err := h.pm.WithdrawUnstaked(wallet, body.ChainID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"xlp": wallet, "chain_id": body.ChainID, "withdrawn": amount})
}

// ── Reads ───────────────────────────────────────────────────────────────────

func (h *Handler) handleGetSwap(c *gin.Context) {
	id := common.HexToHash(c.Param("id"))
	meta := h.pm.GetAtomicSwap(id)
	if meta.Status == swap.StatusNone {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request"})
		return
	}
	c.JSON(http.StatusOK, newSwapView(id, meta))
}

func (h *Handler) handleGetIncoming(c *gin.Context) {
	id := common.HexToHash(c.Param("id"))
	inc := h.pm.GetIncomingSwap(id)
	if inc.Status == swap.IncomingNone {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown voucher"})
		return
	}
	c.JSON(http.StatusOK, newIncomingView(id, inc))
}

func (h *Handler) handleGetStake(c *gin.Context) {
	addr := common.HexToAddress(c.Param("addr"))
	chainID, err := strconv.ParseUint(c.Query("chain"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain id"})
		return
	}
	info := h.pm.StakeInfo(addr, chainID)
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stake record"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"xlp": addr, "chain_id": chainID, "stake": info})
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// fail translates an engine error into a JSON error response.
func (h *Handler) fail(c *gin.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) xlpBalance(xlp, tok common.Address) *big.Int {
	if tok == (common.Address{}) {
		return h.pm.NativeBalanceOf(xlp)
	}
	return h.pm.TokenBalanceOf(xlp, tok)
}
