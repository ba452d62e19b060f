package purchase

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fanledger/internal/api"
	"fanledger/internal/events"
	"fanledger/internal/fan"
	"fanledger/internal/grant"
	"fanledger/internal/offer"
	"fanledger/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(db *sqlx.DB, emitter events.Emitter) *Handler {
	return &Handler{
		service: NewService(
			db,
			NewRepository(db),
			wallet.NewRepository(db),
			grant.NewRepository(db),
			fan.NewRepository(db),
			offer.NewResolver(offer.NewRepository(db)),
			emitter,
		),
	}
}

func NewHandlerWithService(service Service) *Handler {
	return &Handler{service: service}
}

type purchaseResponse struct {
	OK            bool            `json:"ok"`
	Outcome       Outcome         `json:"outcome"`
	Purchase      *Purchase       `json:"purchase,omitempty"`
	PPV           *PPVPurchase    `json:"ppv,omitempty"`
	Wallet        *api.WalletInfo `json:"wallet,omitempty"`
	AccessGranted bool            `json:"accessGranted,omitempty"`
	Reused        bool            `json:"reused,omitempty"`
	Complimentary bool            `json:"complimentary,omitempty"`
}

// Create godoc
// @Summary      Create purchase
// @Description  Atomically debits the wallet, records the purchase and grants or extends the entitlement. Safe to retry with the same clientTxnId.
// @Tags         purchase
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        fanID    path  int              true  "Fan ID"
// @Param        request  body  PurchaseRequest  true  "Purchase request"
// @Success      200  {object}  purchaseResponse
// @Success      201  {object}  purchaseResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      403  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /fans/{fanID}/purchases [post]
func (h *Handler) Create(c *gin.Context) {
	fanID, err := strconv.Atoi(c.Param("fanID"))
	if err != nil {
		api.Respond(c, api.Validation("invalid fan id"))
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Respond(c, api.BindingError(err))
		return
	}
	if !ValidKind(req.Kind) {
		api.Respond(c, api.Validation("kind must be EXTRA, TIP or GIFT"))
		return
	}
	if req.AmountCents < 0 {
		api.Respond(c, api.Validation("amount must not be negative"))
		return
	}

	result, err := h.service.Purchase(c.Request.Context(), fanID, req)
	if err != nil {
		api.Respond(c, err)
		return
	}

	respondResult(c, result)
}

// UnlockPPV godoc
// @Summary      Unlock PPV message
// @Description  Debits the wallet and unlocks a PPV message. One purchase per fan per message, ever; repeats return the original.
// @Tags         purchase
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        fanID      path  int               true  "Fan ID"
// @Param        messageID  path  int               true  "PPV message ID"
// @Param        request    body  PPVUnlockRequest  true  "Unlock request"
// @Success      200  {object}  purchaseResponse
// @Success      201  {object}  purchaseResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /fans/{fanID}/ppv/{messageID}/unlock [post]
func (h *Handler) UnlockPPV(c *gin.Context) {
	fanID, err := strconv.Atoi(c.Param("fanID"))
	if err != nil {
		api.Respond(c, api.Validation("invalid fan id"))
		return
	}
	messageID, err := strconv.Atoi(c.Param("messageID"))
	if err != nil {
		api.Respond(c, api.Validation("invalid message id"))
		return
	}

	var req PPVUnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Respond(c, api.BindingError(err))
		return
	}
	if req.AmountCents <= 0 {
		api.Respond(c, api.Validation("amount must be positive"))
		return
	}

	result, err := h.service.UnlockPPV(c.Request.Context(), fanID, messageID, req)
	if err != nil {
		api.Respond(c, err)
		return
	}

	respondResult(c, result)
}

// List godoc
// @Summary      List purchases
// @Tags         purchase
// @Security     BearerAuth
// @Produce      json
// @Param        fanID   path   int  true   "Fan ID"
// @Param        limit   query  int  false  "Page size"
// @Param        offset  query  int  false  "Page offset"
// @Success      200  {array}   Purchase
// @Router       /fans/{fanID}/purchases [get]
func (h *Handler) List(c *gin.Context) {
	fanID, err := strconv.Atoi(c.Param("fanID"))
	if err != nil {
		api.Respond(c, api.Validation("invalid fan id"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	purchases, err := h.service.ListPurchases(c.Request.Context(), fanID, limit, offset)
	if err != nil {
		api.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, purchases)
}

func respondResult(c *gin.Context, result *Result) {
	switch result.Outcome {
	case OutcomeNotFound:
		api.Respond(c, api.NotFound("offer, pack or fan not found"))
	case OutcomeInsufficientBalance:
		api.Respond(c, api.InsufficientBalance(result.RequiredCents))
	default:
		status := http.StatusOK
		if result.Outcome == OutcomeCreated {
			status = http.StatusCreated
		}
		c.JSON(status, purchaseResponse{
			OK:            true,
			Outcome:       result.Outcome,
			Purchase:      result.Purchase,
			PPV:           result.PPV,
			Wallet:        walletInfo(result.Wallet),
			AccessGranted: result.AccessGranted,
			Reused:        result.Reused,
			Complimentary: result.Complimentary,
		})
	}
}

func walletInfo(w *wallet.Wallet) *api.WalletInfo {
	if w == nil {
		return nil
	}
	return &api.WalletInfo{
		Enabled:      true,
		Currency:     w.Currency,
		BalanceCents: w.BalanceCents,
	}
}
