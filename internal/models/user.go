package models

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User is a read-only projection of the identity provider's account. The
// practice service only needs enough to key sessions and snapshots.
type User struct {
	ID        string   `json:"id" gorm:"primaryKey;size:255"`
	Username  string   `json:"username" gorm:"size:100"`
	Email     string   `json:"email" gorm:"size:255"`
	Role      UserRole `json:"role" gorm:"size:32;default:student"`
	CreatedAt time.Time `json:"created_at"`
}
