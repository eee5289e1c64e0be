package audit

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"

	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event is one row of the audit trail.
type Event struct {
	ID        int64 `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    *int64
	Role      string
	Module    string
	Action    string `gorm:"not null"`
	Entity    string
	EntityID  string
	Outcome   string  `gorm:"not null"`
	Level     string  `gorm:"not null"`
	Payload   Payload `gorm:"type:jsonb"`
	IP        string
	UserAgent string
}

func (Event) TableName() string {
	return "audit_log"
}

// Payload is free form event detail. Never put secrets in it.
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Payload) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	return json.Unmarshal(raw, (*map[string]any)(p))
}
