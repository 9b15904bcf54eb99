package entities

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleStudent  UserRole = "student"
	UserRoleExternal UserRole = "external"
	UserRoleAdmin    UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleExternal, UserRoleAdmin:
		return true
	}
	return false
}

type UserAccount struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	FirstName        string     `gorm:"size:100;not null" json:"first_name"`
	LastName         string     `gorm:"size:100;not null" json:"last_name"`
	Email            string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash     string     `gorm:"size:255;not null" json:"-"`
	Role             UserRole   `gorm:"size:20;not null;default:student" json:"role"`
	IsActive         bool       `gorm:"not null;default:true" json:"is_active"`
	FailedLoginCount int        `gorm:"not null;default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (UserAccount) TableName() string {
	return "user_accounts"
}

func (u UserAccount) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u UserAccount) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
