/*
sweeper.go - Periodic expiration sweep

PURPOSE:
  Runs the engine's ExpireDue on a schedule so ACTIVE reservations whose end
  time has passed drift to COMPLETED without anyone asking for it. The same
  sweep is exposed on demand via POST /api/admin/expire.

DESIGN:
  - robfig/cron drives the schedule (default: every 5 minutes)
  - A sweep failure is logged and the next tick tries again; the sweep is
    idempotent, so missed or doubled runs are harmless

USAGE:
  sweeper := NewExpirationSweeper(engine)
  if err := sweeper.Start(); err != nil { ... }
  defer sweeper.Stop()
*/
package api

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unicalrent/booking-engine/booking"
)

// ExpirationSweeper periodically transitions ended reservations to COMPLETED.
type ExpirationSweeper struct {
	Engine *booking.Engine

	// Schedule is a cron spec; defaults to every 5 minutes.
	Schedule string

	// SweepTimeout bounds a single sweep.
	SweepTimeout time.Duration

	cron *cron.Cron
}

// NewExpirationSweeper creates a sweeper with the default schedule.
func NewExpirationSweeper(engine *booking.Engine) *ExpirationSweeper {
	return &ExpirationSweeper{
		Engine:       engine,
		Schedule:     "@every 5m",
		SweepTimeout: 30 * time.Second,
	}
}

// Start schedules the sweep and runs one immediately.
func (s *ExpirationSweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[Sweeper] Started with schedule %q", s.Schedule)

	s.sweep()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ExpirationSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Println("[Sweeper] Stopped")
}

func (s *ExpirationSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.SweepTimeout)
	defer cancel()

	n, err := s.Engine.ExpireDue(ctx)
	if err != nil {
		log.Printf("[Sweeper] Sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] Completed %d ended reservations", n)
	}
}
