package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetOrCreateWallet(ctx context.Context, fanID int) (*Wallet, error)

	// Debit and Credit run in their own transaction. The Tx variants run
	// inside a caller-owned transaction so a purchase can commit the debit
	// together with its purchase row and grant.
	Debit(ctx context.Context, fanID int, amountCents int64, idemKey *string, kind string, meta map[string]interface{}) (*Wallet, *Transaction, error)
	Credit(ctx context.Context, fanID int, amountCents int64, idemKey *string, kind string) (*Wallet, *Transaction, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, fanID int, amountCents int64, idemKey *string, kind string, meta map[string]interface{}) (*Wallet, *Transaction, error)

	GetTransactions(ctx context.Context, fanID int, limit, offset int) ([]Transaction, error)
}
