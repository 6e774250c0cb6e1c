package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/rules"
)

var (
	errInvalidSweepPlatform = errors.New("invalid platform")

	// ErrRefreshTooSoon is returned for unforced manual triggers that fall
	// inside the configured refresh cadence
	ErrRefreshTooSoon = errors.New("refresh already ran within the configured interval")
)

const fallbackInterval = time.Minute * 5

// Scheduler is the periodic sweep scheduler for registered platforms
type Scheduler struct {
	logger *slog.Logger
	job    *Job
	rules  rules.Provider

	registeredPlatforms sync.Map

	q             iq.Queue[scheduledSweep]
	queryInterval time.Duration
	qMux          sync.Mutex

	lastRun    time.Time
	lastRunMux sync.Mutex
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(job *Job, provider rules.Provider, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		job:           job,
		rules:         provider,
		q:             iq.NewQueue[scheduledSweep](),
		queryInterval: time.Second, // every second
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register registers a new platform with the scheduler.
// The platform is immediately queued up for a sweep
func (s *Scheduler) Register(p platform.Platform) error {
	if p == nil || p.Code() == "" {
		return errInvalidSweepPlatform
	}

	// Register the platform
	id := xid.New()
	s.registeredPlatforms.Store(id, p)

	s.logger.Info(
		"registered new platform",
		"code", p.Code(),
	)

	// Schedule the sweep
	s.scheduleSweep(
		time.Now().UTC(),
		id,
		p,
	)

	return nil
}

// Start starts the sweep scheduling service loop [BLOCKING]
func (s *Scheduler) Start(ctx context.Context) error {
	collectorCh := make(chan *sweepResponse, 100)

	// Start a listener for monitoring jobs
	ticker := time.NewTicker(s.queryInterval)
	defer ticker.Stop()

	// handleSweeps initializes all jobs that are executable (due)
	handleSweeps := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				nextSweep := s.nextSweep()
				if nextSweep == nil {
					return // nothing to schedule anymore
				}

				s.logger.Info(
					"scheduling sweep",
					"platform", nextSweep.platform.Code(),
				)

				// Spawn worker
				info := &sweepInfo{
					job:        s.job,
					platform:   nextSweep.platform,
					platformID: nextSweep.platformID,
					resCh:      collectorCh,
				}

				go handleSweep(ctx, info)
			}
		}
	}

	// Initialize the first set of due jobs (on boot)
	handleSweeps()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler shut down")
			close(collectorCh)

			return nil
		case <-ticker.C:
			handleSweeps()
		case response := <-collectorCh:
			now := time.Now().UTC()

			rpRaw, ok := s.registeredPlatforms.Load(response.platformID)

			if !ok {
				s.logger.Error(
					"unable to load registered platform",
					"id", response.platformID.String(),
				)

				continue
			}

			rp, _ := rpRaw.(platform.Platform)

			if response.error != nil {
				s.logger.Error(
					"error encountered during refresh sweep",
					"platform", rp.Code(),
					"err", response.error.Error(),
				)

				// Retry the sweep soon
				s.scheduleSweep(
					now.Add(time.Second*10),
					response.platformID,
					rp,
				)

				continue
			}

			s.markRun(now)

			for _, comboErr := range response.result.Errors {
				s.logger.Warn(
					"refresh combination failed",
					"platform", rp.Code(),
					"combo", comboErr,
				)
			}

			s.logger.Info(
				"sweep complete",
				"platform", rp.Code(),
				"updated", response.result.Updated,
				"errors", len(response.result.Errors),
			)

			// Schedule a new sweep for this platform
			s.scheduleSweep(
				now.Add(s.interval(ctx)),
				response.platformID,
				rp,
			)
		}
	}
}

// Refresh runs a full sweep across all platforms, immediately and
// synchronously. Unforced triggers inside the configured cadence are
// rejected with ErrRefreshTooSoon
func (s *Scheduler) Refresh(ctx context.Context, force bool) (*types.RefreshResult, error) {
	interval := s.interval(ctx)

	s.lastRunMux.Lock()
	tooSoon := !s.lastRun.IsZero() && time.Since(s.lastRun) < interval
	s.lastRunMux.Unlock()

	if tooSoon && !force {
		return nil, ErrRefreshTooSoon
	}

	result, err := s.job.Run(ctx)
	if err != nil {
		return nil, err
	}

	s.markRun(time.Now().UTC())

	return result, nil
}

// interval resolves the refresh cadence from the active rules
func (s *Scheduler) interval(ctx context.Context) time.Duration {
	interval, err := s.rules.RefreshInterval(ctx)
	if err != nil || interval <= 0 {
		s.logger.Warn(
			"unable to resolve refresh interval, using fallback",
			"fallback", fallbackInterval,
		)

		return fallbackInterval
	}

	return interval
}

func (s *Scheduler) markRun(at time.Time) {
	s.lastRunMux.Lock()
	defer s.lastRunMux.Unlock()

	if at.After(s.lastRun) {
		s.lastRun = at
	}
}

// scheduleSweep schedules a new platform sweep
func (s *Scheduler) scheduleSweep(
	at time.Time,
	platformID xid.ID,
	p platform.Platform,
) {
	s.qMux.Lock()
	defer s.qMux.Unlock()

	futureSweep := scheduledSweep{
		at:         at,
		platformID: platformID,
		platform:   p,
	}

	s.q.Push(futureSweep)
}

// nextSweep fetches the next due sweep job, as of the moment of calling
func (s *Scheduler) nextSweep() *scheduledSweep {
	s.qMux.Lock()
	defer s.qMux.Unlock()

	now := time.Now().UTC()

	// Check if anything needs to be scheduled
	if s.q.Len() == 0 {
		return nil // nothing to schedule, all jobs are running
	}

	// Check if the top element is due
	if s.q.Index(0).at.After(now) {
		return nil // nothing to schedule, latest job is in the future
	}

	// Grab the next job
	nextSweep := s.q.PopFront()

	return nextSweep
}
