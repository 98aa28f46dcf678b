package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wolfpackcloud/robot-gateway/internal/model"
)

// UserRepository is read-only: user records belong to the identity service,
// this gateway only resolves bearer tokens to accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type userRepo struct {
	db sqlxDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}
