// Package scheduler drives billing cycle processing on a timer: every tick
// it picks up PENDING cycles whose billing date has arrived and processes
// them one by one.
package scheduler

import (
	"context"
	"errors"
	"time"

	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	"github.com/droidtel/bss/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	CycleSvc billingcycledomain.Service
	Config   Config `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	cycleSvc billingcycledomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.CycleSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		cycleSvc: p.CycleSvc,
	}, nil
}

// RunOnce processes every due cycle in one sweep. A failing cycle is logged
// and skipped so one bad run never starves the rest of the batch.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	cycles, err := s.cycleSvc.FindDuePending(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return nil
	}

	s.log.Info("processing due billing cycles", zap.Int("count", len(cycles)))
	for _, cycle := range cycles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.cycleSvc.Process(ctx, cycle.ID); err != nil {
			// ErrInvalidState means another instance claimed the cycle
			// between the sweep query and the lock.
			if errors.Is(err, billingcycledomain.ErrInvalidState) {
				s.log.Debug("cycle claimed by a concurrent run",
					zap.String("billing_cycle_id", cycle.ID.String()))
				continue
			}
			s.log.Error("cycle processing failed, skipped",
				zap.String("billing_cycle_id", cycle.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("scheduler sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
