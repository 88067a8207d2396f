package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/fajar-dev/be-sele-sele/internal/model"
	repo "github.com/fajar-dev/be-sele-sele/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestPostgresTokenRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := repo.NewPostgresTokenRepository(sqlxDB)

	userID := uuid.New()
	expires := time.Now().Add(14 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`)).
		WithArgs(userID, "hash", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = r.Create(context.Background(), &model.RefreshToken{
		UserID:    userID,
		TokenHash: "hash",
		ExpiresAt: expires,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenRepository_ConsumeByHash_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := repo.NewPostgresTokenRepository(sqlxDB)

	id := uuid.New()
	userID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
		AddRow(id, userID, "hash", now.Add(time.Hour), now)
	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING id, user_id, token_hash, expires_at, created_at`)).
		WithArgs("hash").WillReturnRows(rows)

	token, err := r.ConsumeByHash(context.Background(), "hash")
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Equal(t, userID, token.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenRepository_ConsumeByHash_AlreadyConsumed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := repo.NewPostgresTokenRepository(sqlxDB)

	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING id, user_id, token_hash, expires_at, created_at`)).
		WithArgs("hash").WillReturnError(sql.ErrNoRows)

	token, err := r.ConsumeByHash(context.Background(), "hash")
	require.NoError(t, err)
	require.Nil(t, token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := repo.NewPostgresTokenRepository(sqlxDB)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE token_hash = $1`)).
		WithArgs("hash").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Delete(context.Background(), "hash"))
	require.NoError(t, mock.ExpectationsWereMet())
}
