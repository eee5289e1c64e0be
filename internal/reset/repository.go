package reset

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/database"
)

type Repository interface {
	// DeleteUnused removes tokens of userID that were never redeemed.
	DeleteUnused(ctx context.Context, userID int64) error
	Create(ctx context.Context, token *Token) error
	FindByHash(ctx context.Context, hash string) (*Token, error)
	// MarkUsed reports whether this call consumed the token.
	MarkUsed(ctx context.Context, id int64, now time.Time) (bool, error)
	// Purge deletes tokens that expired or were used before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) DeleteUnused(ctx context.Context, userID int64) error {
	return database.Conn(ctx, r.db).
		Where("user_id = ? AND used_at IS NULL", userID).
		Delete(&Token{}).Error
}

func (r *repository) Create(ctx context.Context, token *Token) error {
	return database.Conn(ctx, r.db).Create(token).Error
}

func (r *repository) FindByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	if err := database.Conn(ctx, r.db).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *repository) MarkUsed(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).Model(&Token{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := database.Conn(ctx, r.db).
		Where("expires_at < ? OR used_at < ?", before, before).
		Delete(&Token{})
	return res.RowsAffected, res.Error
}
