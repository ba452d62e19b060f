package wallet

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fanledger/internal/api"
	"fanledger/internal/auth"
	"fanledger/internal/fan"
	"fanledger/internal/metrics"
)

type Handler struct {
	repo          Repository
	fanRepo       fan.Repository
	maxTopUpCents int64
}

func NewHandler(db *sqlx.DB, maxTopUpCents int64) *Handler {
	return &Handler{
		repo:          NewRepository(db),
		fanRepo:       fan.NewRepository(db),
		maxTopUpCents: maxTopUpCents,
	}
}

type TopUpRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	ClientTxnID string `json:"clientTxnId,omitempty"`
}

// GetBalance godoc
// @Summary      Get wallet
// @Description  Returns the fan's wallet, creating it on first access.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        fanID  path  int  true  "Fan ID"
// @Success      200  {object}  Wallet
// @Failure      401  {object}  api.ErrorResponse
// @Router       /fans/{fanID}/wallet [get]
func (h *Handler) GetBalance(c *gin.Context) {
	fanID, ok := auth.GetFanID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "fan not authenticated"})
		return
	}

	w, err := h.repo.GetOrCreateWallet(c.Request.Context(), fanID)
	if err != nil {
		api.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, w)
}

// TopUp godoc
// @Summary      Top up wallet
// @Description  Simulated top-up. Requires a confirmed adult status and is capped per call.
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        fanID    path  int           true  "Fan ID"
// @Param        request  body  TopUpRequest  true  "Top-up amount"
// @Success      200  {object}  gin.H
// @Failure      400  {object}  api.ErrorResponse
// @Failure      403  {object}  api.ErrorResponse
// @Router       /fans/{fanID}/wallet/topup [post]
func (h *Handler) TopUp(c *gin.Context) {
	fanID, ok := auth.GetFanID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "fan not authenticated"})
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Respond(c, api.BindingError(err))
		return
	}
	if req.AmountCents <= 0 {
		api.Respond(c, api.Validation("amount_cents must be positive"))
		return
	}
	if req.AmountCents > h.maxTopUpCents {
		api.Respond(c, api.Validation("amount_cents exceeds the per-call top-up limit"))
		return
	}

	ctx := c.Request.Context()

	// Credit is gated on confirmed adult status; the check lives here, not
	// in the ledger.
	f, err := h.fanRepo.FindByID(ctx, fanID)
	if err != nil {
		api.Respond(c, api.NotFound("fan not found"))
		return
	}
	if !f.AdultConfirmed {
		api.Respond(c, api.Forbidden("adult status must be confirmed before topping up"))
		return
	}

	var idemKey *string
	if req.ClientTxnID != "" {
		idemKey = &req.ClientTxnID
	}

	w, _, err := h.repo.Credit(ctx, fanID, req.AmountCents, idemKey, KindTopUp)
	if err != nil {
		api.Respond(c, err)
		return
	}

	metrics.RecordWalletTopUp()

	c.JSON(http.StatusOK, gin.H{
		"message": "wallet recharged",
		"wallet":  w,
	})
}

// ListTransactions godoc
// @Summary      List wallet transactions
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        fanID   path   int  true   "Fan ID"
// @Param        limit   query  int  false  "Page size"
// @Param        offset  query  int  false  "Page offset"
// @Success      200  {array}   Transaction
// @Failure      401  {object}  api.ErrorResponse
// @Router       /fans/{fanID}/wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	fanID, ok := auth.GetFanID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "fan not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.repo.GetTransactions(c.Request.Context(), fanID, limit, offset)
	if err != nil {
		api.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, txns)
}
