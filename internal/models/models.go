package models

import (
	"time"
)

type User struct {
	ID           string    `gorm:"primaryKey"           json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null"             json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Role struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

// RoleClaim is a permission flag attached to a role, e.g. users:read -> true.
type RoleClaim struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RoleID uint   `gorm:"index;not null"           json:"role_id"`
	Claim  string `gorm:"not null"                 json:"claim"`
	Value  string `gorm:"not null"                 json:"value"`
}

// UserRole links a user to a role. A user holds at most one role, the
// assignment flows replace the full set instead of appending.
type UserRole struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID string `gorm:"index;not null"           json:"user_id"`
	RoleID uint   `gorm:"not null"                 json:"role_id"`
}

type RefreshToken struct {
	Token       string    `gorm:"primaryKey"     json:"token"`
	JwtID       string    `gorm:"index;not null" json:"jwt_id"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	ExpiresAt   time.Time `gorm:"not null"       json:"expires_at"`
	Invalidated bool      `gorm:"default:false"  json:"invalidated"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
