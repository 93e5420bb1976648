package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
)

// Scheduler periodically refreshes carbon data for the configured location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *carbon.Service
	interval  time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, service *carbon.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
	}
}

// Start schedules the periodic refresh and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, errDetails := s.service.Refresh(ctx); errDetails != nil {
			log.Warn().
				Str("location", s.service.Location()).
				Str("kind", string(errDetails.Kind)).
				Msg("scheduled refresh failed")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
