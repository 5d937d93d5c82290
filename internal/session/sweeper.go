package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically drops idle sessions.
type Sweeper struct {
	store  *Store
	cron   *cron.Cron
	idle   time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSweeper schedules SweepExpired on spec (standard cron or a descriptor like "@every 1m").
func NewSweeper(log *slog.Logger, store *Store, spec string, idle time.Duration) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Sweeper{
		store:  store,
		cron:   cron.New(cron.WithParser(parser)),
		idle:   idle,
		now:    time.Now,
		logger: log.With(slog.String("service", "session_sweeper")),
	}
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("session sweep spec %q: %w", spec, err)
	}
	return s, nil
}

// Sweep runs one pass.
func (s *Sweeper) Sweep() {
	if n := s.store.SweepExpired(s.now(), s.idle); n > 0 {
		s.logger.Info("expired sessions removed", slog.Int("count", n), slog.Int("active", s.store.Len()))
	}
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
