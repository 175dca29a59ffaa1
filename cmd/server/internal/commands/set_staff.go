package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/logger"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/rs/zerolog/log"
)

type SetStaffCmd struct {
	Email string `arg:"" help:"email address of the account"`
	Staff bool   `help:"grant staff privileges, --no-staff revokes them" default:"true" negatable:""`

	StoreType     string             `help:"store type (memory or postgres)" default:"postgres" env:"EDUHUB_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *SetStaffCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := openBackend(ctx, c.StoreType, &c.PostgresStore, false)
	if err != nil {
		return err
	}
	defer stores.Close()

	_, err = setStaff(ctx, stores.Users, stores.Sessions, c.Email, c.Staff)
	return err
}

// setStaff changes the staff flag and ends every session of the account so
// access tokens carrying the old flag stop verifying.
func setStaff(ctx context.Context, users store.UserStore, sessions store.SessionStore, email string, staff bool) (*models.User, error) {
	user, err := users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", email, err)
	}

	if user.IsStaff != staff {
		user.IsStaff = staff
		user.UpdatedAt = time.Now()
		if err := users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", email, err)
		}
	}

	ended, err := sessions.DeleteByUser(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to end sessions for %s: %w", email, err)
	}

	log.Info().Str("email", user.Email).Bool("staff", staff).Int("sessions_ended", ended).Msg("Updated staff flag")
	return user, nil
}
