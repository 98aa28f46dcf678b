package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wolfpackcloud/robot-gateway/internal/model"
)

type RobotRepository interface {
	FindByID(ctx context.Context, id string) (*model.Robot, error)
	FindByIngestToken(ctx context.Context, token string) (*model.Robot, error)
	FindAll(ctx context.Context, filter model.RobotFilter) ([]model.Robot, error)
	Count(ctx context.Context, filter model.RobotFilter) (int, error)
	Create(ctx context.Context, params model.CreateRobotParams) (*model.Robot, error)
	Update(ctx context.Context, id string, params model.UpdateRobotParams) (*model.Robot, error)
	Activate(ctx context.Context, id, ownerID, token string, name *string, now time.Time) (*model.Robot, error)
	TouchLastSeen(ctx context.Context, id string, now time.Time) error
	Heartbeat(ctx context.Context, id string, now time.Time) (*model.Robot, error)
	MarkInactiveSince(ctx context.Context, threshold time.Time) ([]model.RobotRef, error)
	Delete(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) RobotRepository
}

type robotRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewRobotRepository(db *sqlx.DB) RobotRepository {
	return &robotRepo{db: db}
}

func (r *robotRepo) WithTx(tx *sqlx.Tx) RobotRepository {
	return &robotRepo{db: tx}
}

func (r *robotRepo) FindByID(ctx context.Context, id string) (*model.Robot, error) {
	var robot model.Robot
	err := r.db.GetContext(ctx, &robot, `
		SELECT * FROM robots WHERE id = $1
	`, id)
	return HandleNotFound(&robot, err)
}

func (r *robotRepo) FindByIngestToken(ctx context.Context, token string) (*model.Robot, error) {
	var robot model.Robot
	err := r.db.GetContext(ctx, &robot, `
		SELECT * FROM robots WHERE ingest_token = $1
	`, token)
	return HandleNotFound(&robot, err)
}

// filterClauses builds the WHERE conditions shared by FindAll and Count.
func filterClauses(filter model.RobotFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR hostname ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *robotRepo) FindAll(ctx context.Context, filter model.RobotFilter) ([]model.Robot, error) {
	where, args := filterClauses(filter)

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`
		SELECT * FROM robots%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos)

	var robots []model.Robot
	err := r.db.SelectContext(ctx, &robots, query, args...)
	if err != nil {
		return nil, err
	}
	return robots, nil
}

func (r *robotRepo) Count(ctx context.Context, filter model.RobotFilter) (int, error) {
	where, args := filterClauses(filter)

	var count int
	err := r.db.GetContext(ctx, &count, fmt.Sprintf(`SELECT COUNT(*) FROM robots%s`, where), args...)
	return count, err
}

func (r *robotRepo) Create(ctx context.Context, params model.CreateRobotParams) (*model.Robot, error) {
	var robot model.Robot
	err := r.db.GetContext(ctx, &robot, `
		INSERT INTO robots (id, name, hostname, ip_address, architecture, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING *
	`, params.ID, params.Name, params.Hostname, params.IPAddress, params.Architecture)
	if err != nil {
		return nil, err
	}
	return &robot, nil
}

func (r *robotRepo) Update(ctx context.Context, id string, params model.UpdateRobotParams) (*model.Robot, error) {
	var robot model.Robot
	err := r.db.GetContext(ctx, &robot, `
		UPDATE robots SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			ip_address = COALESCE($4, ip_address),
			status = COALESCE($5, status),
			updated_at = $6
		WHERE id = $1
		RETURNING *
	`, id, params.Name, params.Description, params.IPAddress, params.Status, time.Now())
	return HandleNotFound(&robot, err)
}

// Activate flips a robot to active as part of pairing confirmation: sets the
// owner, stores the freshly minted ingest token, and stamps last_seen_at.
func (r *robotRepo) Activate(ctx context.Context, id, ownerID, token string, name *string, now time.Time) (*model.Robot, error) {
	var robot model.Robot
	err := r.db.GetContext(ctx, &robot, `
		UPDATE robots SET
			status = 'active',
			owner_id = $2,
			ingest_token = $3,
			name = COALESCE($4, name),
			last_seen_at = $5,
			updated_at = $5
		WHERE id = $1
		RETURNING *
	`, id, ownerID, token, name, now)
	return HandleNotFound(&robot, err)
}

func (r *robotRepo) TouchLastSeen(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE robots SET last_seen_at = $2 WHERE id = $1
	`, id, now)
	return err
}

// Heartbeat bumps last_seen_at and promotes inactive robots back to active.
// Pending and error robots keep their status.
func (r *robotRepo) Heartbeat(ctx context.Context, id string, now time.Time) (*model.Robot, error) {
	var robot model.Robot
	err := r.db.GetContext(ctx, &robot, `
		UPDATE robots SET
			last_seen_at = $2,
			status = CASE WHEN status = 'inactive' THEN 'active'::robot_status ELSE status END,
			updated_at = $2
		WHERE id = $1
		RETURNING *
	`, id, now)
	return HandleNotFound(&robot, err)
}

func (r *robotRepo) MarkInactiveSince(ctx context.Context, threshold time.Time) ([]model.RobotRef, error) {
	var demoted []model.RobotRef
	err := r.db.SelectContext(ctx, &demoted, `
		UPDATE robots SET
			status = 'inactive',
			updated_at = NOW()
		WHERE status = 'active' AND last_seen_at < $1
		RETURNING id, name
	`, threshold)
	if err != nil {
		return nil, err
	}
	return demoted, nil
}

func (r *robotRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM robots WHERE id = $1`, id)
	return err
}
