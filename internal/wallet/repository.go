package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

const walletColumns = `id, fan_id, currency, balance_cents, created_at, updated_at`

const txnColumns = `id, wallet_id, kind, amount_cents, balance_after_cents, idempotency_key, meta, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetOrCreateWallet is idempotent. When two requests race on first access
// the insert loses to the unique key on fan_id and the winner row is
// re-fetched instead of surfacing the conflict.
func (r *repository) GetOrCreateWallet(ctx context.Context, fanID int) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w, `SELECT `+walletColumns+` FROM wallets WHERE fan_id = $1`, fanID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO wallets (fan_id)
		 VALUES ($1)
		 RETURNING `+walletColumns,
		fanID,
	).StructScan(w)
	if err == nil {
		return w, nil
	}
	if isUniqueViolation(err) {
		err = r.db.GetContext(ctx, w, `SELECT `+walletColumns+` FROM wallets WHERE fan_id = $1`, fanID)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, err
}

func (r *repository) Debit(ctx context.Context, fanID int, amountCents int64, idemKey *string, kind string, meta map[string]interface{}) (*Wallet, *Transaction, error) {
	var (
		w   *Wallet
		txn *Transaction
	)
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		w, txn, err = r.DebitTx(ctx, tx, fanID, amountCents, idemKey, kind, meta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return w, txn, nil
}

// DebitTx re-reads the wallet row under FOR UPDATE so two concurrent debits
// serialize on the row instead of both passing a stale balance check. A
// zero amount performs no ledger mutation and returns the current snapshot.
func (r *repository) DebitTx(ctx context.Context, tx *sqlx.Tx, fanID int, amountCents int64, idemKey *string, kind string, meta map[string]interface{}) (*Wallet, *Transaction, error) {
	if amountCents < 0 {
		return nil, nil, ErrInvalidAmount
	}

	w, err := lockWallet(ctx, tx, fanID)
	if err != nil {
		return nil, nil, err
	}

	if amountCents == 0 {
		return w, nil, nil
	}

	if idemKey != nil {
		existing, err := findByIdempotencyKey(ctx, tx, *idemKey)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			return w, existing, nil
		}
	}

	if w.BalanceCents < amountCents {
		return nil, nil, ErrInsufficientBalance
	}

	return applyTransaction(ctx, tx, w, -amountCents, idemKey, kind, meta)
}

func (r *repository) Credit(ctx context.Context, fanID int, amountCents int64, idemKey *string, kind string) (*Wallet, *Transaction, error) {
	if amountCents <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	var (
		w   *Wallet
		txn *Transaction
	)
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		w, err = lockWallet(ctx, tx, fanID)
		if err != nil {
			return err
		}

		if idemKey != nil {
			existing, err := findByIdempotencyKey(ctx, tx, *idemKey)
			if err != nil {
				return err
			}
			if existing != nil {
				txn = existing
				return nil
			}
		}

		w, txn, err = applyTransaction(ctx, tx, w, amountCents, idemKey, kind, nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return w, txn, nil
}

func (r *repository) GetTransactions(ctx context.Context, fanID int, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var walletID int
	err := r.db.GetContext(ctx, &walletID, `SELECT id FROM wallets WHERE fan_id = $1`, fanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Transaction{}, nil
		}
		return nil, err
	}

	var txns []Transaction
	err = r.db.SelectContext(ctx, &txns, `
		SELECT `+txnColumns+`
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockWallet reads the wallet row FOR UPDATE, creating it if missing.
func lockWallet(ctx context.Context, tx *sqlx.Tx, fanID int) (*Wallet, error) {
	w := &Wallet{}
	err := tx.QueryRowxContext(ctx,
		`SELECT `+walletColumns+`
		 FROM wallets
		 WHERE fan_id = $1
		 FOR UPDATE`,
		fanID,
	).StructScan(w)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO wallets (fan_id)
			 VALUES ($1)
			 RETURNING `+walletColumns,
			fanID,
		).StructScan(w)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func findByIdempotencyKey(ctx context.Context, tx *sqlx.Tx, key string) (*Transaction, error) {
	txn := &Transaction{}
	err := tx.GetContext(ctx, txn,
		`SELECT `+txnColumns+` FROM wallet_transactions WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// applyTransaction writes the transaction row and the new balance together,
// keeping balance_cents equal to the sum of signed transaction amounts.
func applyTransaction(ctx context.Context, tx *sqlx.Tx, w *Wallet, signedAmount int64, idemKey *string, kind string, meta map[string]interface{}) (*Wallet, *Transaction, error) {
	newBalance := w.BalanceCents + signedAmount
	if newBalance < 0 {
		return nil, nil, ErrInsufficientBalance
	}

	metaJSON := []byte("{}")
	if meta != nil {
		var err error
		metaJSON, err = json.Marshal(meta)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal transaction meta: %w", err)
		}
	}

	txn := &Transaction{}
	err := tx.QueryRowxContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, kind, amount_cents, balance_after_cents, idempotency_key, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+txnColumns,
		w.ID, kind, signedAmount, newBalance, idemKey, metaJSON,
	).StructScan(txn)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets
		 SET balance_cents = $1, updated_at = NOW()
		 WHERE id = $2`,
		newBalance, w.ID,
	)
	if err != nil {
		return nil, nil, err
	}

	updated := *w
	updated.BalanceCents = newBalance
	return &updated, txn, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
