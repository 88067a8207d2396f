package model

import (
	"time"

	"github.com/google/uuid"
)

// Collaboration grants an email access to a page. The email does not have to
// belong to a registered user; that is how invites work.
type Collaboration struct {
	ID        uuid.UUID `db:"id"`
	PageID    uuid.UUID `db:"page_id"`
	Email     string    `db:"email"`
	IsOwner   bool      `db:"is_owner"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Member is the read-side projection of a collaboration row left-joined
// against users. IsPending is never stored: it is recomputed on every read
// as "no user with this email has registered yet", so an invite resolves by
// itself the first time the invited email logs in.
type Member struct {
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
	IsOwner   bool    `json:"is_owner"`
	IsPending bool    `json:"is_pending"`
}
