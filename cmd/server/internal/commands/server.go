package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codinglab/eduhub/internal/auth"
	"github.com/codinglab/eduhub/internal/housekeeping"
	httpmiddleware "github.com/codinglab/eduhub/internal/http"
	"github.com/codinglab/eduhub/internal/logger"
	"github.com/codinglab/eduhub/internal/login"
	"github.com/codinglab/eduhub/internal/oidc"
	"github.com/codinglab/eduhub/internal/server"
	"github.com/codinglab/eduhub/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type ServerCmd struct {
	// Server configuration
	Listen     string `help:"HTTP server listen address" default:"0.0.0.0:8000" env:"EDUHUB_LISTEN"`
	Cert       string `help:"path to TLS cert file" default:"" env:"EDUHUB_TLS_CERT"`
	Key        string `help:"path to TLS key file" default:"" env:"EDUHUB_TLS_KEY"`
	BaseURL    string `help:"public base URL, also the token issuer" default:"http://localhost:8000" env:"EDUHUB_BASE_URL"`
	TrustProxy bool   `help:"take the client address from X-Forwarded-For" default:"false" env:"EDUHUB_TRUST_PROXY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"EDUHUB_CORS_ORIGINS"`

	Tracing bool `help:"enable OpenTelemetry export" default:"false" env:"EDUHUB_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"EDUHUB_STORE_TYPE" enum:"memory,postgres"`
	AutoMigrate   bool               `help:"run database migrations on startup" default:"false" env:"EDUHUB_POSTGRES_AUTO_MIGRATE"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	Auth         AuthFlags      `embed:"" prefix:"auth-"`
	RateLimit    RateLimitFlags `embed:"" prefix:"rate-limit-"`
	Housekeeping string         `help:"cron schedule for removing expired sessions and stale verification tokens" default:"@hourly" env:"EDUHUB_HOUSEKEEPING_SCHEDULE"`
}

type AuthFlags struct {
	SigningKey   string        `help:"path to the PEM encoded ES256 signing key, created when missing" default:"" env:"EDUHUB_SIGNING_KEY"`
	AccessTTL    time.Duration `help:"access token lifetime" default:"1h" env:"EDUHUB_ACCESS_TTL"`
	SessionTTL   time.Duration `help:"refresh session lifetime" default:"168h" env:"EDUHUB_SESSION_TTL"`
	OIDCIssuer   string        `help:"external OpenID Connect issuer whose ID tokens are accepted" default:"" env:"EDUHUB_OIDC_ISSUER"`
	OIDCAudience string        `help:"client ID expected in external ID tokens" default:"" env:"EDUHUB_OIDC_AUDIENCE"`
}

func (a *AuthFlags) Validate() error {
	if a.AccessTTL <= 0 || a.SessionTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if a.OIDCIssuer != "" && a.OIDCAudience == "" {
		return errors.New("--auth-oidc-audience is required with --auth-oidc-issuer")
	}
	return nil
}

type RateLimitFlags struct {
	RPS   float64 `help:"sustained requests per second per client on rate limited endpoints" default:"1" env:"EDUHUB_RATE_LIMIT_RPS"`
	Burst int     `help:"burst size per client" default:"10" env:"EDUHUB_RATE_LIMIT_BURST"`
}

func (f RateLimitFlags) config() httpmiddleware.RateLimitConfig {
	return httpmiddleware.RateLimitConfig{RequestsPerSecond: f.RPS, Burst: f.Burst}
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if err := c.Auth.Validate(); err != nil {
		return err
	}
	limits := c.RateLimit.config()
	if err := limits.Validate(); err != nil {
		return err
	}

	shutdown, err := telemetry.InitTelemetry(ctx, c.Tracing, "eduhub-server", globals.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		shutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}()

	stores, err := openBackend(ctx, c.StoreType, &c.PostgresStore, c.AutoMigrate)
	if err != nil {
		return err
	}
	defer stores.Close()

	keys, err := oidc.LoadKeyManager(c.Auth.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	revocation := auth.NewSessionRevocationChecker(stores.Sessions)
	verifiers := []auth.TokenVerifier{auth.NewLocalVerifier(c.BaseURL, keys).WithRevocation(revocation)}
	if c.Auth.OIDCIssuer != "" {
		external, err := auth.NewOIDCVerifier(ctx, c.Auth.OIDCIssuer, c.Auth.OIDCAudience, stores.Users)
		if err != nil {
			return err
		}
		verifiers = append(verifiers, external)
		log.Info().Str("issuer", c.Auth.OIDCIssuer).Msg("Accepting external ID tokens")
	}

	limiter := httpmiddleware.NewRateLimiter(limits)

	accounts := login.NewHandler(
		login.Stores{Users: stores.Users, Sessions: stores.Sessions, Verifications: stores.Verifications},
		login.NewTokenIssuer(keys, c.BaseURL, c.Auth.AccessTTL),
		nil,
		login.Config{BaseURL: c.BaseURL, SessionTTL: c.Auth.SessionTTL},
	)

	srv := server.NewServer(server.Config{
		BaseURL:     c.BaseURL,
		CORSOrigins: c.CORSOrigins,
		TrustProxy:  c.TrustProxy,
	}, stores.Stores, auth.NewAuthenticator(server.Unauthorized, verifiers...), limiter).
		WithAccounts(accounts).
		WithWellKnown(oidc.NewHandler(keys, c.BaseURL))

	httpServer := configureHTTPServer(c.Listen, srv.Handler(log))
	scheduler := housekeeping.NewScheduler(c.Housekeeping, stores.Sessions, stores.Verifications, limiter)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Str("store", c.StoreType).Msg("Listening")
		var err error
		if c.Cert != "" && c.Key != "" {
			err = httpServer.ListenAndServeTLS(c.Cert, c.Key)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
