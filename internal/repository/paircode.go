package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wolfpackcloud/robot-gateway/internal/model"
)

type PairCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*model.PairCode, error)
	FindPendingByCode(ctx context.Context, code string) (*model.PairCode, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*model.PairCode, error)
	Create(ctx context.Context, params model.CreatePairCodeParams) (*model.PairCode, error)
	MarkExpired(ctx context.Context, id string) error
	MarkConfirmed(ctx context.Context, id string, confirmedAt time.Time) error
	DeleteByRobotID(ctx context.Context, robotID string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairCodeRepository
}

type pairCodeRepo struct {
	db sqlxDB
}

func NewPairCodeRepository(db *sqlx.DB) PairCodeRepository {
	return &pairCodeRepo{db: db}
}

func (r *pairCodeRepo) WithTx(tx *sqlx.Tx) PairCodeRepository {
	return &pairCodeRepo{db: tx}
}

// FindByCode returns the most recent code row for the given string regardless
// of status. Code strings are reusable once a prior occupant has expired, so
// the latest row is the one callers care about.
func (r *pairCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairCode, error) {
	var pc model.PairCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pair_codes
		WHERE code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairCodeRepo) FindPendingByCode(ctx context.Context, code string) (*model.PairCode, error) {
	var pc model.PairCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pair_codes
		WHERE code = $1 AND status = 'pending'
	`, code)
	return HandleNotFound(&pc, err)
}

// FindByCodeForUpdate locks the latest row for the code so concurrent
// confirmations serialize; exactly one of them observes "pending".
func (r *pairCodeRepo) FindByCodeForUpdate(ctx context.Context, code string) (*model.PairCode, error) {
	var pc model.PairCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pair_codes
		WHERE code = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairCodeRepo) Create(ctx context.Context, params model.CreatePairCodeParams) (*model.PairCode, error) {
	var pc model.PairCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pair_codes (id, code, robot_id, status, expires_at)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING *
	`, params.ID, params.Code, params.RobotID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// MarkExpired transitions a pending code to expired. The status guard makes
// the transition idempotent and one-way.
func (r *pairCodeRepo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pair_codes SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

func (r *pairCodeRepo) MarkConfirmed(ctx context.Context, id string, confirmedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pair_codes SET
			status = 'confirmed',
			confirmed_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, confirmedAt)
	return err
}

func (r *pairCodeRepo) DeleteByRobotID(ctx context.Context, robotID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pair_codes WHERE robot_id = $1`, robotID)
	return err
}
