package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/codinglab/eduhub/internal/logger"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type SeedCmd struct {
	File          string             `arg:"" help:"YAML fixture with a staff account and classes" type:"existingfile"`
	StaffPassword string             `help:"password for the fixture's staff account" env:"EDUHUB_SEED_STAFF_PASSWORD"`
	StoreType     string             `help:"store type (memory or postgres)" default:"postgres" env:"EDUHUB_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

// fixture is the seed file layout.
type fixture struct {
	Staff *struct {
		Email string `yaml:"email"`
		Name  string `yaml:"name"`
	} `yaml:"staff"`
	Classes []*models.InternalClass `yaml:"classes"`
}

func (c *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	fx, err := loadFixture(c.File)
	if err != nil {
		return err
	}

	stores, err := openBackend(ctx, c.StoreType, &c.PostgresStore, false)
	if err != nil {
		return err
	}
	defer stores.Close()

	return seed(ctx, stores, fx, c.StaffPassword)
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}

	for i, class := range fx.Classes {
		class.ApplyDefaults()
		if err := class.Validate(); err != nil {
			return nil, fmt.Errorf("class %d (%s): %w", i+1, class.Title, err)
		}
	}
	return &fx, nil
}

// seed creates the staff account and every class not already present.
// A class is present when an existing class has the same title and date.
func seed(ctx context.Context, stores *backend, fx *fixture, password string) error {
	if fx.Staff != nil {
		_, err := createUser(ctx, stores.Users, fx.Staff.Email, fx.Staff.Name, password, true)
		switch {
		case errors.Is(err, store.ErrUserAlreadyExists):
			log.Info().Str("email", fx.Staff.Email).Msg("Staff account already exists")
		case err != nil:
			return err
		}
	}

	created := 0
	for _, class := range fx.Classes {
		existing, _, err := stores.Classes.List(ctx, store.ListOptions{Search: class.Title})
		if err != nil {
			return fmt.Errorf("failed to look up class %q: %w", class.Title, err)
		}
		if hasClass(existing, class) {
			continue
		}
		if err := stores.Classes.Create(ctx, class); err != nil {
			return fmt.Errorf("failed to create class %q: %w", class.Title, err)
		}
		created++
	}

	log.Info().Int("created", created).Int("skipped", len(fx.Classes)-created).Msg("Seeded classes")
	return nil
}

func hasClass(existing []*models.InternalClass, class *models.InternalClass) bool {
	for _, e := range existing {
		if strings.EqualFold(e.Title, class.Title) && e.ScheduleDate.Equal(class.ScheduleDate.Time) {
			return true
		}
	}
	return false
}
