package grant

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// Upsert creates or refreshes a grant. With extendIfActive the current
	// unexpired grant is pushed out by one duration (gift stacking); without
	// it existing grants of the type are replaced by one fresh grant so
	// repeated direct buys do not stack without bound.
	Upsert(ctx context.Context, fanID int, t Type, extendIfActive bool) (*AccessGrant, error)
	UpsertTx(ctx context.Context, tx *sqlx.Tx, fanID int, t Type, extendIfActive bool) (*AccessGrant, error)

	ActiveGrants(ctx context.Context, fanID int, now time.Time) ([]AccessGrant, error)
	AllGrants(ctx context.Context, fanID int) ([]AccessGrant, error)
	HasActiveGrant(ctx context.Context, fanID int, t Type, now time.Time) (bool, error)
}
