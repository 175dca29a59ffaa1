// Package housekeeping removes account records that are no longer useful.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/telemetry"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSchedule = "@hourly"

	// Unverified tokens older than this are deleted.
	VerificationMaxAge = 7 * 24 * time.Hour

	limiterIdle = time.Hour
)

// SessionStore is the subset of store.SessionStore used for cleanup.
type SessionStore interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// VerificationStore is the subset of store.VerificationStore used for cleanup.
type VerificationStore interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Pruner drops per-client state that has been idle for a while.
type Pruner interface {
	Prune(idle time.Duration) int
}

// Scheduler runs the cleanup on a cron schedule.
type Scheduler struct {
	cron          *cron.Cron
	schedule      string
	sessions      SessionStore
	verifications VerificationStore
	limiter       Pruner
	metrics       *telemetry.Metrics
	now           func() time.Time
}

// NewScheduler creates a scheduler. limiter may be nil.
func NewScheduler(schedule string, sessions SessionStore, verifications VerificationStore, limiter Pruner) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		cron:          cron.New(),
		schedule:      schedule,
		sessions:      sessions,
		verifications: verifications,
		limiter:       limiter,
		metrics:       telemetry.GetMetrics(),
		now:           time.Now,
	}
}

// Run starts the scheduler and blocks until ctx is cancelled. Jobs still
// running at that point are waited for.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Housekeeping failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid housekeeping schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("Housekeeping scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Info().Msg("Housekeeping scheduler stopped")
	return nil
}

// RunOnce performs a single cleanup pass. Every step runs even if an earlier
// one fails.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error

	sessions, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to delete expired sessions: %w", err))
	}
	s.metrics.RecordHousekeeping(ctx, "session", sessions)

	cutoff := s.now().Add(-VerificationMaxAge)
	verifications, err := s.verifications.DeleteStale(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to delete stale verification tokens: %w", err))
	}
	s.metrics.RecordHousekeeping(ctx, "verification", verifications)

	var clients int
	if s.limiter != nil {
		clients = s.limiter.Prune(limiterIdle)
	}

	log.Info().
		Int("sessions", sessions).
		Int("verifications", verifications).
		Int("rate_limit_clients", clients).
		Msg("Housekeeping completed")

	return errors.Join(errs...)
}
