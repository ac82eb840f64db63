package postgres

import (
	"context"

	"github.com/google/uuid"

	"pricewise/internal/domain/user"
	"pricewise/pkg/errors"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository reads business accounts.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, business_name, is_active, settings, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *UserRepository) ListActive(ctx context.Context) ([]*user.User, error) {
	var users []*user.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_active
		ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active users")
	}
	return users, nil
}

// Create inserts a user. Only used by fixtures and the sync tooling.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :business_name, :is_active, :settings, :created_at, :updated_at)`, u)
	return errors.Wrap(err, "failed to create user")
}
