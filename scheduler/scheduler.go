// Package scheduler runs the periodic jobs of the store: expiring unpaid
// orders and taking backups.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liontech/backup"
	"liontech/config"
)

// OrderExpirer cancels pending orders older than ttl.
type OrderExpirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration) (int, error)
}

// Backups takes backups and applies retention.
type Backups interface {
	Create(ctx context.Context) (backup.Info, error)
	Prune(ctx context.Context, keep int) ([]string, error)
}

// Scheduler owns the background loops. Settings are read on every tick so
// changes from the dashboard apply without a restart.
type Scheduler struct {
	orders   OrderExpirer
	backups  Backups
	settings func() config.Settings
	log      *zap.Logger

	expireEvery time.Duration
	checkEvery  time.Duration
	now         func() time.Time
}

func New(orders OrderExpirer, backups Backups, settings func() config.Settings, log *zap.Logger) *Scheduler {
	return &Scheduler{
		orders:      orders,
		backups:     backups,
		settings:    settings,
		log:         log,
		expireEvery: time.Minute,
		checkEvery:  time.Minute,
		now:         time.Now,
	}
}

// Run blocks until ctx is cancelled. Job failures are logged and retried
// on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.expireLoop(ctx) })
	g.Go(func() error { return s.backupLoop(ctx) })
	err := g.Wait()
	s.log.Info("scheduler stopped")
	return err
}

func (s *Scheduler) expireLoop(ctx context.Context) error {
	t := time.NewTicker(s.expireEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.ExpireOrders(ctx)
		}
	}
}

// ExpireOrders runs one expiry pass with the configured TTL.
func (s *Scheduler) ExpireOrders(ctx context.Context) {
	if _, err := s.orders.ExpireStale(ctx, s.settings().PendingOrderTTL()); err != nil && ctx.Err() == nil {
		s.log.Error("order expiry failed", zap.Error(err))
	}
}

func (s *Scheduler) backupLoop(ctx context.Context) error {
	if s.backups == nil {
		return nil
	}
	last := s.now()
	t := time.NewTicker(s.checkEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			interval := s.settings().BackupInterval()
			if interval <= 0 || s.now().Sub(last) < interval {
				continue
			}
			last = s.now()
			s.Backup(ctx)
		}
	}
}

// Backup takes one backup and prunes old ones.
func (s *Scheduler) Backup(ctx context.Context) {
	if _, err := s.backups.Create(ctx); err != nil {
		return
	}
	if _, err := s.backups.Prune(ctx, s.settings().BackupRetention); err != nil {
		s.log.Warn("backup retention failed", zap.Error(err))
	}
}
