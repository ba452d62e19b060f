package purchase

import (
	"time"

	"fanledger/internal/grant"
	"fanledger/internal/wallet"
)

// Purchase kinds for non-entitlement purchases.
const (
	KindExtra = "EXTRA"
	KindTip   = "TIP"
	KindGift  = "GIFT"
)

func ValidKind(kind string) bool {
	switch kind {
	case KindExtra, KindTip, KindGift:
		return true
	}
	return false
}

// Outcome is the terminal state of one purchase attempt.
type Outcome string

const (
	OutcomeCreated             Outcome = "created"
	OutcomeReused              Outcome = "reused"
	OutcomeAlreadyHasAccess    Outcome = "already_has_access"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
	OutcomeNotFound            Outcome = "not_found"
)

// Purchase rows are immutable once committed. ClientTxnID is unique per
// (fan, kind) and makes retries safe.
type Purchase struct {
	ID            int       `db:"id" json:"id"`
	FanID         int       `db:"fan_id" json:"fan_id"`
	ContentItemID *int      `db:"content_item_id" json:"content_item_id,omitempty"`
	Kind          string    `db:"kind" json:"kind"`
	AmountCents   int64     `db:"amount_cents" json:"amount_cents"`
	ProductID     *string   `db:"product_id" json:"product_id,omitempty"`
	ProductType   string    `db:"product_type" json:"product_type"`
	Title         string    `db:"title" json:"title"`
	ClientTxnID   string    `db:"client_txn_id" json:"client_txn_id"`
	SessionTag    *string   `db:"session_tag" json:"session_tag,omitempty"`
	IsArchived    bool      `db:"is_archived" json:"is_archived"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PPVPurchase is one unlock of one PPV message by one fan, ever.
type PPVPurchase struct {
	ID           int       `db:"id" json:"id"`
	PPVMessageID int       `db:"ppv_message_id" json:"ppv_message_id"`
	FanID        int       `db:"fan_id" json:"fan_id"`
	AmountCents  int64     `db:"amount_cents" json:"amount_cents"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const PPVStatusPaid = "paid"

// Result is what one orchestrated attempt produced.
type Result struct {
	Outcome       Outcome
	Purchase      *Purchase
	PPV           *PPVPurchase
	Wallet        *wallet.Wallet
	Grant         *grant.AccessGrant
	AccessGranted bool
	Reused        bool
	Complimentary bool
	RequiredCents int64
}

type PurchaseRequest struct {
	Kind          string `json:"kind" binding:"required"`
	OfferID       string `json:"offerId,omitempty"`
	PackID        string `json:"packId,omitempty"`
	ContentItemID *int   `json:"contentItemId,omitempty"`
	AmountCents   int64  `json:"amount,omitempty"`
	ClientTxnID   string `json:"clientTxnId" binding:"required"`
	SessionTag    string `json:"sessionTag,omitempty"`
}

type PPVUnlockRequest struct {
	AmountCents int64  `json:"amount" binding:"required"`
	ClientTxnID string `json:"clientTxnId" binding:"required"`
}
