package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Puller is the job body; Syncer.PullAll satisfies it.
type Puller interface {
	PullAll(ctx context.Context)
}

type Scheduler struct {
	cron    *gocron.Scheduler
	timeout time.Duration
}

// New schedules puller every interval in the named time zone. A pull that
// is still running when the next tick fires is skipped.
func New(puller Puller, interval time.Duration, timezone string, timeout time.Duration) (*Scheduler, error) {
	if interval < time.Minute {
		return nil, fmt.Errorf("sync interval must be at least one minute, got %s", interval)
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load sync timezone %q: %w", timezone, err)
	}
	if timeout <= 0 {
		timeout = interval
	}

	s := &Scheduler{cron: gocron.NewScheduler(location), timeout: timeout}
	s.cron.SingletonModeAll()
	minutes := int(interval / time.Minute)
	if _, err := s.cron.Every(minutes).Minutes().Do(s.run, puller); err != nil {
		return nil, fmt.Errorf("schedule sync job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) run(puller Puller) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	startedAt := time.Now()
	puller.PullAll(ctx)
	log.Printf("[schedule] sync pass finished in %s", time.Since(startedAt))
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) NextRun() time.Time {
	_, next := s.cron.NextRun()
	return next
}
