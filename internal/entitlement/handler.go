package entitlement

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fanledger/internal/api"
	"fanledger/internal/fan"
	"fanledger/internal/grant"
	"fanledger/internal/offer"
)

type Handler struct {
	grantRepo grant.Repository
	offerRepo offer.Repository
	fanRepo   fan.Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{
		grantRepo: grant.NewRepository(db),
		offerRepo: offer.NewRepository(db),
		fanRepo:   fan.NewRepository(db),
	}
}

type entitlementsResponse struct {
	AccessSummary Projection            `json:"accessSummary"`
	UnlockedPacks []string              `json:"unlockedPacks"`
	Packs         []offer.ClassifiedPack `json:"packs"`
}

// Get godoc
// @Summary      Get entitlements
// @Description  Returns the fan's derived access summary, unlocked content packs and per-pack status. Computed on demand, never cached.
// @Tags         entitlement
// @Security     BearerAuth
// @Produce      json
// @Param        fanID  path  int  true  "Fan ID"
// @Success      200  {object}  entitlementsResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /fans/{fanID}/entitlements [get]
func (h *Handler) Get(c *gin.Context) {
	fanID, err := strconv.Atoi(c.Param("fanID"))
	if err != nil {
		api.Respond(c, api.Validation("invalid fan id"))
		return
	}

	ctx := c.Request.Context()

	f, err := h.fanRepo.FindByID(ctx, fanID)
	if err != nil {
		api.Respond(c, api.NotFound("fan not found"))
		return
	}

	grants, err := h.grantRepo.AllGrants(ctx, fanID)
	if err != nil {
		api.Respond(c, err)
		return
	}

	now := time.Now()
	isNew := f.LastPurchaseAt == nil && len(grants) == 0
	projection := Project(grants, isNew, now)

	packs, err := h.offerRepo.ListPacks(ctx)
	if err != nil {
		api.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, entitlementsResponse{
		AccessSummary: projection,
		UnlockedPacks: UnlockedPacksFor(projection.ActiveGrantTypes),
		Packs:         offer.ClassifyPackStatus(packs, grants, now),
	})
}
