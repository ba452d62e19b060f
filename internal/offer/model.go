package offer

import (
	"fanledger/internal/grant"
)

// Product types carried on resolved purchases.
const (
	ProductPack   = "pack"
	ProductExtra  = "extra"
	ProductPPV    = "ppv"
	ProductOneOff = "one_off"
)

// Well-known pack codes that resolve even without a catalog row.
const (
	CodeTrial   = "trial"
	CodeMonthly = "monthly"
	CodeSpecial = "special"
)

// Offer is a configured catalog record for a purchasable product.
type Offer struct {
	ID             int         `db:"id" json:"id"`
	Code           string      `db:"code" json:"code"`
	Title          string      `db:"title" json:"title"`
	PriceCents     int64       `db:"price_cents" json:"price_cents"`
	GrantType      *grant.Type `db:"grant_type" json:"grant_type,omitempty"`
	ProductType    string      `db:"product_type" json:"product_type"`
	ExtendIfActive bool        `db:"extend_if_active" json:"extend_if_active"`
}

// Resolved is the canonical tuple the purchase orchestrator consumes. The
// resolver performs no mutation; this is pure normalization.
type Resolved struct {
	Title          string
	AmountCents    int64
	GrantType      *grant.Type
	ProductType    string
	ExtendIfActive bool
}

// Free marks the named complimentary path: a purchase that commits with no
// charge and no entitlement is intentional, not a fallthrough.
func (r Resolved) Free() bool {
	return r.AmountCents == 0
}
