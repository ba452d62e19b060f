package purchase

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// FindByClientTxn returns (nil, nil) when the fan has no purchase with
	// this kind and client transaction id.
	FindByClientTxn(ctx context.Context, fanID int, kind, clientTxnID string) (*Purchase, error)

	// CreateTx inserts inside the caller's transaction. A unique violation
	// on (fan_id, kind, client_txn_id) comes back as ErrDuplicate so the
	// orchestrator can resolve the race into a reused response.
	CreateTx(ctx context.Context, tx *sqlx.Tx, p *Purchase) (*Purchase, error)

	ListByFan(ctx context.Context, fanID int, limit, offset int) ([]Purchase, error)

	FindPPV(ctx context.Context, ppvMessageID, fanID int) (*PPVPurchase, error)
	CreatePPVTx(ctx context.Context, tx *sqlx.Tx, p *PPVPurchase) (*PPVPurchase, error)
}
