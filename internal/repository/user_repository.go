package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fajar-dev/be-sele-sele/internal/model"
)

type UpsertUserParams struct {
	Email       string
	Sub         *string
	Name        *string
	AvatarURL   *string
	LastLoginIP string
	LastLoginAt time.Time
}

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Upsert(ctx context.Context, params UpsertUserParams) (*model.User, error)
}

type postgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT * FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	query := `SELECT * FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Upsert creates the user on first login and refreshes the profile plus
// last-login fields on every later one. Profile fields are only overwritten
// when the identity provider actually supplied a value.
func (r *postgresUserRepository) Upsert(ctx context.Context, params UpsertUserParams) (*model.User, error) {
	query := `
		INSERT INTO users (id, email, sub, name, avatar_url, last_login_ip, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			sub = COALESCE(EXCLUDED.sub, users.sub),
			name = COALESCE(EXCLUDED.name, users.name),
			avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
			last_login_ip = EXCLUDED.last_login_ip,
			last_login_at = EXCLUDED.last_login_at,
			updated_at = now()
		RETURNING *
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query,
		uuid.Must(uuid.NewV7()), params.Email, params.Sub, params.Name,
		params.AvatarURL, params.LastLoginIP, params.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
