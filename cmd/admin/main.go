package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
	"github.com/elskow/backoffice/internal/server"
)

// Creates the first administrator, or resets an existing account to admin
// with -update.
func main() {
	email := flag.String("email", "", "admin email")
	phone := flag.String("phone", "", "admin phone")
	name := flag.String("name", "Administrator", "display name")
	update := flag.Bool("update", false, "reset password and role of an existing account")
	flag.Parse()

	password := os.Getenv("BACKOFFICE_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("BACKOFFICE_ADMIN_PASSWORD must be set")
	}

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := credential.ValidatePassword(password, cfg.Security.PasswordMinLength); err != nil {
		log.Fatalf("Password rejected: %v", err)
	}

	logger, err := server.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	manager, err := database.NewManager(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer manager.Close()

	ctx := context.Background()
	repo := credential.NewRepository(manager.DB())
	hasher := credential.NewHasher()
	tx := database.NewTransactor(manager.DB())

	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &credential.User{
		Email:    credential.NormalizeEmail(*email),
		Phone:    credential.NormalizePhone(*phone),
		Name:     *name,
		PassHash: hash,
		Status:   credential.StatusActive,
	}
	if !credential.ValidEmail(user.Email) || user.Phone == "" {
		log.Fatal("a valid -email and -phone are required")
	}

	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := repo.GetByEmail(ctx, user.Email)
		switch {
		case errors.Is(err, credential.ErrUserNotFound):
			if err := repo.Create(ctx, user); err != nil {
				return err
			}
		case err != nil:
			return err
		case !*update:
			return credential.ErrUserExists
		default:
			user.ID = existing.ID
			if err := repo.SetPasswordHash(ctx, user.ID, hash); err != nil {
				return err
			}
			if err := repo.SetStatus(ctx, user.ID, credential.StatusActive); err != nil {
				return err
			}
		}
		return repo.SetRole(ctx, user.ID, acl.RoleAdmin.String())
	})
	if err != nil {
		log.Fatalf("Failed to provision admin: %v", err)
	}

	logger.Info("admin account ready", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
}
