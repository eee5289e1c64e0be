package remember

import "time"

// Session is one remember-me token. Only the hash of the validator is kept.
type Session struct {
	ID            int64  `gorm:"primaryKey"`
	UserID        int64  `gorm:"not null;index"`
	Selector      string `gorm:"uniqueIndex;not null"`
	ValidatorHash string `gorm:"not null"`
	IP            string
	UserAgent     string
	CreatedAt     time.Time
	ExpiresAt     time.Time `gorm:"not null"`
	RevokedAt     *time.Time
}

func (Session) TableName() string {
	return "auth_sessions"
}

func (s *Session) usableAt(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
