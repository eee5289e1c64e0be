package reset

import "time"

type Token struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null"`
	TokenHash string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
}

func (Token) TableName() string {
	return "password_resets"
}

// Request is the outcome of a successful reset request. Token is the raw
// value and must only travel out of band.
type Request struct {
	UserID    int64
	Email     string
	Token     string
	ExpiresAt time.Time
}
