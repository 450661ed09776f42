package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RefreshLockKey names the lock that keeps one replica refreshing at a time.
const RefreshLockKey = "catalog-refresh"

// Guard runs fn unless another holder owns key.
type Guard interface {
	TryRun(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error)
}

// Warm drops the cached remote lists and resolves them again.
func (s *Service) Warm(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	_, err := s.Snapshot(ctx)
	return err
}

// Refresher re-warms the option cache on a cron schedule.
type Refresher struct {
	Service *Service
	Guard   Guard
	Timeout time.Duration
	Logger  zerolog.Logger

	cron *cron.Cron
}

// Start schedules RunOnce using a robfig/cron spec such as "@every 10m".
func (r *Refresher) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { _, _ = r.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule catalog refresh: %w", err)
	}
	r.cron = c
	c.Start()
	return nil
}

// Stop waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce warms the cache, reporting false when another replica held the lock.
func (r *Refresher) RunOnce(ctx context.Context) (bool, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		ran bool
		err error
	)
	if r.Guard == nil {
		ran, err = true, r.Service.Warm(ctx)
	} else {
		ran, err = r.Guard.TryRun(ctx, RefreshLockKey, timeout, r.Service.Warm)
	}
	switch {
	case err != nil:
		r.Logger.Warn().Err(err).Msg("catalog refresh failed")
	case ran:
		r.Logger.Debug().Msg("catalog refreshed")
	default:
		r.Logger.Debug().Msg("catalog refresh held by another replica")
	}
	return ran, err
}
