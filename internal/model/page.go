package model

import (
	"time"

	"github.com/google/uuid"
)

// Page is document metadata. The markdown body itself lives in the content
// store keyed by the page id; DeletedAt marks a soft delete and every read
// path filters on it.
type Page struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Icon        *string    `db:"icon" json:"icon"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
	Members     []Member   `db:"-" json:"members,omitempty"`
}
