package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/auth"
	"github.com/codinglab/eduhub/internal/logger"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type CreateUserCmd struct {
	Email    string `arg:"" help:"email address of the account"`
	Name     string `help:"display name"`
	Password string `help:"password, at least 8 characters" env:"EDUHUB_USER_PASSWORD" required:""`
	Staff    bool   `help:"grant staff privileges"`

	StoreType     string             `help:"store type (memory or postgres)" default:"postgres" env:"EDUHUB_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *CreateUserCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := openBackend(ctx, c.StoreType, &c.PostgresStore, false)
	if err != nil {
		return err
	}
	defer stores.Close()

	user, err := createUser(ctx, stores.Users, c.Email, c.Name, c.Password, c.Staff)
	if err != nil {
		return err
	}

	fmt.Println(user.UserID)
	return nil
}

// createUser adds a verified account with a password. Accounts made from
// the command line skip email verification.
func createUser(ctx context.Context, users store.UserStore, email, name, password string, staff bool) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now()
	user := &models.User{
		UserID:        id,
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		IsStaff:       staff,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}

	log.Info().Str("email", email).Bool("staff", staff).Msg("Created user")
	return user, nil
}
