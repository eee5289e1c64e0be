package throttle

import "time"

// LoginAttempt counts failed logins for one identifier+origin key.
type LoginAttempt struct {
	Key       string `gorm:"column:key_str;primaryKey"`
	Attempts  int    `gorm:"not null"`
	LastTryAt time.Time
	LockUntil *time.Time
}

func (LoginAttempt) TableName() string {
	return "login_attempts"
}

func (a *LoginAttempt) LockedAt(now time.Time) bool {
	return a != nil && a.LockUntil != nil && now.Before(*a.LockUntil)
}
