package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const grantColumns = `id, fan_id, type, created_at, expires_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, fanID int, t Type, extendIfActive bool) (*AccessGrant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	g, err := r.UpsertTx(ctx, tx, fanID, t, extendIfActive)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *repository) UpsertTx(ctx context.Context, tx *sqlx.Tx, fanID int, t Type, extendIfActive bool) (*AccessGrant, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown grant type %q", t)
	}

	now := time.Now()

	if extendIfActive {
		// Extend the most-recently-expiring unexpired grant, if any.
		current := &AccessGrant{}
		err := tx.QueryRowxContext(ctx, `
			SELECT `+grantColumns+`
			FROM access_grants
			WHERE fan_id = $1 AND type = $2 AND expires_at > $3
			ORDER BY expires_at DESC
			LIMIT 1
			FOR UPDATE
		`, fanID, t, now).StructScan(current)
		if err == nil {
			updated := &AccessGrant{}
			err = tx.QueryRowxContext(ctx, `
				UPDATE access_grants
				SET expires_at = $1
				WHERE id = $2
				RETURNING `+grantColumns,
				current.ExpiresAt.Add(Duration(t)), current.ID,
			).StructScan(updated)
			if err != nil {
				return nil, err
			}
			return updated, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return insertGrant(ctx, tx, fanID, t, now.Add(Duration(t)))
	}

	// Replace: one fresh grant supersedes whatever was there.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM access_grants WHERE fan_id = $1 AND type = $2`, fanID, t); err != nil {
		return nil, err
	}
	return insertGrant(ctx, tx, fanID, t, now.Add(Duration(t)))
}

func insertGrant(ctx context.Context, tx *sqlx.Tx, fanID int, t Type, expiresAt time.Time) (*AccessGrant, error) {
	g := &AccessGrant{}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO access_grants (fan_id, type, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+grantColumns,
		fanID, t, expiresAt,
	).StructScan(g)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *repository) ActiveGrants(ctx context.Context, fanID int, now time.Time) ([]AccessGrant, error) {
	grants := []AccessGrant{}
	err := r.db.SelectContext(ctx, &grants, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE fan_id = $1 AND expires_at > $2
		ORDER BY expires_at ASC
	`, fanID, now)
	return grants, err
}

func (r *repository) AllGrants(ctx context.Context, fanID int) ([]AccessGrant, error) {
	grants := []AccessGrant{}
	err := r.db.SelectContext(ctx, &grants, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE fan_id = $1
		ORDER BY created_at DESC
	`, fanID)
	return grants, err
}

func (r *repository) HasActiveGrant(ctx context.Context, fanID int, t Type, now time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM access_grants
			WHERE fan_id = $1 AND type = $2 AND expires_at > $3
		)
	`, fanID, t, now)
	return exists, err
}
