package fan

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("fan not found")

const fanColumns = `id, creator_id, email, name, password_hash, role, adult_confirmed,
	last_purchase_at, temperature, temp_bucket, activity_preview, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, creatorID int, name, email, passwordHash, role string) (*Fan, error) {
	f := &Fan{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO fans (creator_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+fanColumns,
		creatorID, name, email, passwordHash, role,
	).StructScan(f)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *repository) FindByID(ctx context.Context, id int) (*Fan, error) {
	f := &Fan{}
	err := r.db.GetContext(ctx, f, `SELECT `+fanColumns+` FROM fans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Fan, error) {
	f := &Fan{}
	err := r.db.GetContext(ctx, f, `SELECT `+fanColumns+` FROM fans WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM fans WHERE email = $1)`, email)
	return exists, err
}

func (r *repository) ConfirmAdult(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fans SET adult_confirmed = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPurchaseSignal bumps the engagement signals after a committed
// purchase. Bucket thresholds here must stay in sync with Bucket.
func (r *repository) RecordPurchaseSignal(ctx context.Context, id int, preview string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fans SET
			last_purchase_at = NOW(),
			activity_preview = $2,
			temperature = temperature + $3,
			temp_bucket = CASE
				WHEN temperature + $3 >= 30 THEN 'hot'
				WHEN temperature + $3 >= 10 THEN 'warm'
				ELSE 'cold'
			END,
			updated_at = NOW()
		WHERE id = $1`,
		id, preview, PurchaseBoost,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
