package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers a job on a fixed interval, with a one-shot run
// after a short initial delay at startup.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	initial *time.Timer
	delay   time.Duration
	job     func()
}

// New creates a scheduler for the given interval and initial delay.
func New(interval, initialDelay time.Duration, job func()) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if initialDelay < 0 {
		return nil, errors.New("initial delay must be non-negative")
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), job); err != nil {
		return nil, fmt.Errorf("add cron: %w", err)
	}
	return &Scheduler{cron: c, delay: initialDelay, job: job}, nil
}

// Start begins the initial-delay timer and the interval schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initial = time.AfterFunc(s.delay, s.job)
	s.cron.Start()
}

// Stop cancels the initial run if still pending and waits for an
// in-flight interval job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.initial != nil {
		s.initial.Stop()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
}
