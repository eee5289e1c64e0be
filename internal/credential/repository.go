package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/database"
)

const uniqueViolation = "23505"

type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	SetPasswordHash(ctx context.Context, userID int64, hash string) error
	SetStatus(ctx context.Context, userID int64, status string) error
	Delete(ctx context.Context, userID int64) error
	Grants(ctx context.Context, userID int64) ([]Grant, error)
	// SetRole replaces every grant of the user with the single role code.
	SetRole(ctx context.Context, userID int64, code string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) first(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	if err := database.Conn(ctx, r.db).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.first(ctx, "phone = ?", phone)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *repository) Create(ctx context.Context, user *User) error {
	return translate(database.Conn(ctx, r.db).Create(user).Error)
}

func (r *repository) Update(ctx context.Context, user *User) error {
	res := database.Conn(ctx, r.db).Model(&User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"email": user.Email,
		"phone": user.Phone,
		"name":  user.Name,
	})
	if err := translate(res.Error); err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) SetPasswordHash(ctx context.Context, userID int64, hash string) error {
	return r.updateColumn(ctx, userID, "pass_hash", hash)
}

func (r *repository) SetStatus(ctx context.Context, userID int64, status string) error {
	return r.updateColumn(ctx, userID, "status", status)
}

func (r *repository) updateColumn(ctx context.Context, userID int64, column string, value any) error {
	res := database.Conn(ctx, r.db).Model(&User{}).Where("id = ?", userID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, userID int64) error {
	res := database.Conn(ctx, r.db).Delete(&User{}, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) Grants(ctx context.Context, userID int64) ([]Grant, error) {
	var grants []Grant
	err := database.Conn(ctx, r.db).
		Table("user_roles").
		Select("roles.code AS code, roles.sort AS sort").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.sort ASC").
		Scan(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load role grants: %w", err)
	}
	return grants, nil
}

func (r *repository) SetRole(ctx context.Context, userID int64, code string) error {
	return database.NewTransactor(r.db).WithinTx(ctx, func(ctx context.Context) error {
		db := database.Conn(ctx, r.db)

		var role Role
		if err := db.Where("code = ?", code).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("unknown role %q", code)
			}
			return err
		}
		if err := db.Where("user_id = ?", userID).Delete(&UserRole{}).Error; err != nil {
			return err
		}
		return db.Create(&UserRole{UserID: userID, RoleID: role.ID}).Error
	})
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUserExists
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return err
}
