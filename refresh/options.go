package refresh

import (
	"log/slog"
	"time"
)

type SchedulerOption func(s *Scheduler)

// WithSchedulerLogger specifies the logger for the scheduler
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithQueryInterval specifies the due-job poll interval for the scheduler.
// Defaults to 1s.
// This should only be modified if the refresh cadence is sparse
// (once every hour / 24hrs)
func WithQueryInterval(q time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.queryInterval = q
	}
}
