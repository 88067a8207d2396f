package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken stores only the SHA-256 of the opaque token handed to the
// client; the raw string never reaches the database.
type RefreshToken struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
