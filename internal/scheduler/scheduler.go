// Package scheduler drives the recurring reconciliation sweep that keeps
// cached obligation statuses aligned with the clock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/clock"
	obsmetrics "github.com/stayloop/stayloop/internal/observability/metrics"
	"github.com/stayloop/stayloop/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const sweepLockKey = "sweep:reconcile"

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	BillingSvc billingdomain.Service
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	billingSvc billingdomain.Service
	locker     *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BillingSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	sweepMetrics := obsmetrics.Sweep()
	sweepMetrics.IncJobRun(name)

	err := fn(ctx)
	sweepMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// A deadline is a soft failure: the next run picks up where the
	// batch stopped.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		sweepMetrics.IncJobTimeout(name)
	}
	sweepMetrics.IncJobError(name, err)
	if isTimeout {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs a single sweep pass over both obligation types. When a
// distributed lock is configured, only one replica performs the pass.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(parent, sweepLockKey, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("sweep lock unavailable", zap.Error(err))
		} else if !ok {
			s.log.Debug("sweep already running elsewhere")
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(parent, sweepLockKey, token); err != nil {
					s.log.Warn("sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	var err error
	err = errors.Join(err, s.runJob(parent, "reconcile_listings", s.cfg.JobTimeout, s.ReconcileListingsJob))
	err = errors.Join(err, s.runJob(parent, "reconcile_leases", s.cfg.JobTimeout, s.ReconcileLeasesJob))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) ReconcileListingsJob(ctx context.Context) error {
	result, err := s.billingSvc.ReconcileListings(ctx, s.cfg.ListingBatchSize)
	if err != nil {
		return err
	}
	s.logSweepResult("reconcile_listings", result)
	return nil
}

func (s *Scheduler) ReconcileLeasesJob(ctx context.Context) error {
	result, err := s.billingSvc.ReconcileLeases(ctx, s.cfg.LeaseBatchSize)
	if err != nil {
		return err
	}
	s.logSweepResult("reconcile_leases", result)
	return nil
}

func (s *Scheduler) logSweepResult(job string, result billingdomain.ReconcileResult) {
	fields := []zap.Field{
		zap.String("job", job),
		zap.Int("scanned", result.Scanned),
	}
	for status, count := range result.Transitions {
		fields = append(fields, zap.Int("to_"+status, count))
	}
	s.log.Info("sweep pass complete", fields...)
}
