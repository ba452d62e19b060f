package purchase

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate is the explicit conflict variant for a uniqueness violation
// on a purchase key. The orchestrator maps it to a reused response when the
// conflict is the caller's own prior request.
var ErrDuplicate = errors.New("duplicate purchase")

const purchaseColumns = `id, fan_id, content_item_id, kind, amount_cents, product_id, product_type,
	title, client_txn_id, session_tag, is_archived, created_at`

const ppvColumns = `id, ppv_message_id, fan_id, amount_cents, status, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByClientTxn(ctx context.Context, fanID int, kind, clientTxnID string) (*Purchase, error) {
	p := &Purchase{}
	err := r.db.GetContext(ctx, p, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE fan_id = $1 AND kind = $2 AND client_txn_id = $3
	`, fanID, kind, clientTxnID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *Purchase) (*Purchase, error) {
	created := &Purchase{}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO purchases (fan_id, content_item_id, kind, amount_cents, product_id, product_type, title, client_txn_id, session_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+purchaseColumns,
		p.FanID, p.ContentItemID, p.Kind, p.AmountCents, p.ProductID, p.ProductType, p.Title, p.ClientTxnID, p.SessionTag,
	).StructScan(created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

func (r *repository) ListByFan(ctx context.Context, fanID int, limit, offset int) ([]Purchase, error) {
	if limit <= 0 {
		limit = 50
	}

	purchases := []Purchase{}
	err := r.db.SelectContext(ctx, &purchases, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE fan_id = $1 AND is_archived = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, fanID, limit, offset)
	return purchases, err
}

func (r *repository) FindPPV(ctx context.Context, ppvMessageID, fanID int) (*PPVPurchase, error) {
	p := &PPVPurchase{}
	err := r.db.GetContext(ctx, p, `
		SELECT `+ppvColumns+`
		FROM ppv_purchases
		WHERE ppv_message_id = $1 AND fan_id = $2
	`, ppvMessageID, fanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) CreatePPVTx(ctx context.Context, tx *sqlx.Tx, p *PPVPurchase) (*PPVPurchase, error) {
	created := &PPVPurchase{}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO ppv_purchases (ppv_message_id, fan_id, amount_cents, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+ppvColumns,
		p.PPVMessageID, p.FanID, p.AmountCents, p.Status,
	).StructScan(created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
