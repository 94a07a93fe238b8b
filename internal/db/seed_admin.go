package db

import (
	"context"
	"errors"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/config"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/security"
)

type AdminSeeder interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
}

// EnsureAdminUser creates the configured admin account once. Nothing happens when
// ADMIN_EMAIL or ADMIN_PASSWORD is unset or the account already exists.
func EnsureAdminUser(ctx context.Context, users AdminSeeder, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	// check if the user exists
	_, err := users.GetByEmail(ctx, email)

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = users.Create(ctx, user.CreateParams{
		FirstName:    cfg.AdminFirstName,
		LastName:     cfg.AdminLastName,
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		Subscription: user.SubscriptionFull,
	})

	// lost a race with another instance seeding the same account
	if errors.Is(err, user.ErrEmailTaken) {
		return nil
	}

	return err
}
