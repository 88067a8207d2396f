package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	Sub         *string    `db:"sub" json:"-"`
	Name        *string    `db:"name" json:"name"`
	AvatarURL   *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	LastLoginIP *string    `db:"last_login_ip" json:"-"`
	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
