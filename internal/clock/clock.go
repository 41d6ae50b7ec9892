// Package clock drives the periodic recomputation of derived durations.
package clock

import (
	"time"

	"accountwatch/internal/logger"

	"github.com/go-co-op/gocron"
)

// Tick period is fixed: displayed durations have one-second resolution.
const tickInterval = 1

// Ticker receives the periodic tick. The engine implements it; ticks
// while no run is active are no-ops on its side.
type Ticker interface {
	Tick(now time.Time)
}

type Service struct {
	scheduler *gocron.Scheduler
	target    Ticker
	log       logger.Logger
}

func New(target Ticker) *Service {
	return &Service{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		log:       logger.New("clock"),
	}
}

// Start registers the one-second tick and runs the scheduler in the
// background.
func (s *Service) Start() error {
	log := s.log.Function("Start")

	_, err := s.scheduler.Every(tickInterval).Second().Do(func() {
		s.target.Tick(time.Now())
	})
	if err != nil {
		return log.Err("failed to register tick", err)
	}

	s.scheduler.StartAsync()
	log.Info("Clock started", "intervalSeconds", tickInterval)
	return nil
}

func (s *Service) Stop() {
	s.scheduler.Stop()
	s.log.Function("Stop").Info("Clock stopped")
}
