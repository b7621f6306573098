package keyring

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the session sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper evicts expired override sessions on a cron schedule, so that
// expiry is audited promptly even when nobody checks the session again.
type Sweeper struct {
	registry *Registry
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper schedules CleanupExpired against the registry. The schedule
// accepts standard cron expressions and descriptors like "@every 1m"; an
// empty schedule uses DefaultSweepSchedule.
func NewSweeper(registry *Registry, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		registry: registry,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "keyring.sweeper"),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("keyring: invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	if n := s.registry.CleanupExpired(); n > 0 {
		s.logger.Info("expired override sessions removed", "count", n)
	}
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
