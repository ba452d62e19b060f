package wallet

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Transaction kinds.
const (
	KindTopUp     = "topup"
	KindPurchase  = "purchase"
	KindPPVUnlock = "ppv_unlock"
	KindRefund    = "refund"
)

type Wallet struct {
	ID           int       `db:"id" json:"id"`
	FanID        int       `db:"fan_id" json:"fan_id"`
	Currency     string    `db:"currency" json:"currency"`
	BalanceCents int64     `db:"balance_cents" json:"balance_cents"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction rows are append-only. AmountCents is signed: debits are
// negative, credits positive. BalanceAfterCents is the wallet balance the
// moment this row committed; the wallet balance always equals the sum of
// its transactions' signed amounts.
type Transaction struct {
	ID                int            `db:"id" json:"id"`
	WalletID          int            `db:"wallet_id" json:"wallet_id"`
	Kind              string         `db:"kind" json:"kind"`
	AmountCents       int64          `db:"amount_cents" json:"amount_cents"`
	BalanceAfterCents int64          `db:"balance_after_cents" json:"balance_after_cents"`
	IdempotencyKey    *string        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Meta              types.JSONText `db:"meta" json:"meta,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}
