package audit

import (
	"context"

	"gorm.io/gorm"
)

type Sink interface {
	Write(ctx context.Context, event *Event) error
}

type gormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) Sink {
	return &gormSink{db: db}
}

func (s *gormSink) Write(ctx context.Context, event *Event) error {
	return s.db.WithContext(ctx).Create(event).Error
}
