package offer

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("offer not found")

const offerColumns = `id, code, title, price_cents, grant_type, product_type, extend_if_active`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByIdentifier(ctx context.Context, identifier string) (*Offer, error) {
	o := &Offer{}

	if id, err := strconv.Atoi(identifier); err == nil {
		err := r.db.GetContext(ctx, o, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	err := r.db.GetContext(ctx, o, `SELECT `+offerColumns+` FROM offers WHERE code = $1`, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) ListPacks(ctx context.Context) ([]Offer, error) {
	offers := []Offer{}
	err := r.db.SelectContext(ctx, &offers, `
		SELECT `+offerColumns+`
		FROM offers
		WHERE product_type = $1
		ORDER BY price_cents ASC
	`, ProductPack)
	return offers, err
}
