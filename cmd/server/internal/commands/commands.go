package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codinglab/eduhub/internal/server"
	"github.com/codinglab/eduhub/internal/store"
	memorystore "github.com/codinglab/eduhub/internal/store/memory"
	postgresstore "github.com/codinglab/eduhub/internal/store/postgres"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"EDUHUB_POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	StartupTimeout  time.Duration `help:"how long to wait for the database at startup" default:"30s"`
}

// validate is called only when the postgres store is selected.
func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or EDUHUB_POSTGRES_CONNECTION_STRING)")
	}
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("--postgres-min-conns (%d) exceeds --postgres-max-conns (%d)", s.MinConns, s.MaxConns)
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
		StartupTimeout:  s.StartupTimeout,
	}
}

// backend is every store the binary needs, opened against one store type.
type backend struct {
	server.Stores
	Users         store.UserStore
	Sessions      store.SessionStore
	Verifications store.VerificationStore

	close func()
}

func (b *backend) Close() {
	if b.close != nil {
		b.close()
	}
}

func openBackend(ctx context.Context, storeType string, flags *PostgresStoreFlags, migrate bool) (*backend, error) {
	switch storeType {
	case "postgres":
		if err := flags.validate(); err != nil {
			return nil, err
		}
		pool, err := postgresstore.NewPool(ctx, flags.poolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if migrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		log.Info().Msg("Using PostgreSQL stores")
		return &backend{
			Stores: server.Stores{
				Inquiries: postgresstore.NewInquiryStore(pool),
				Lessons:   postgresstore.NewLessonStore(pool),
				Outreach:  postgresstore.NewOutreachStore(pool),
				Classes:   postgresstore.NewClassStore(pool),
			},
			Users:         postgresstore.NewUserStore(pool),
			Sessions:      postgresstore.NewSessionStore(pool),
			Verifications: postgresstore.NewVerificationStore(pool),
			close:         pool.Close,
		}, nil

	case "memory":
		log.Warn().Msg("Using in-memory stores, data is lost on restart")
		outreach := memorystore.NewOutreachStore()
		return &backend{
			Stores: server.Stores{
				Inquiries: memorystore.NewInquiryStore(),
				Lessons:   memorystore.NewLessonStore(),
				Outreach:  outreach,
				Classes:   memorystore.NewClassStore(outreach),
			},
			Users:         memorystore.NewUserStore(),
			Sessions:      memorystore.NewSessionStore(),
			Verifications: memorystore.NewVerificationStore(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}
}
