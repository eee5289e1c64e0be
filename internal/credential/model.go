package credential

import (
	"time"
)

const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

type User struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Phone     string `gorm:"uniqueIndex;not null"`
	PassHash  string `gorm:"column:pass_hash;not null"`
	Name      string
	Status    string `gorm:"not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) Active() bool {
	return u != nil && u.Status == StatusActive
}

type Role struct {
	ID   int16  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex;not null"`
	Name string `gorm:"not null"`
	Sort int    `gorm:"not null"`
}

func (Role) TableName() string {
	return "roles"
}

type UserRole struct {
	UserID int64 `gorm:"primaryKey"`
	RoleID int16 `gorm:"primaryKey"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// Grant is one role held by a user together with its priority.
type Grant struct {
	Code string
	Sort int
}
