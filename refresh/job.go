package refresh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/rules"
	"github.com/sig-0/p2prates/snapshot"
	"github.com/sig-0/p2prates/source"
)

const (
	defaultFetchTimeout = time.Second * 15
	defaultConcurrency  = 4

	bestRateCount = 3

	variationAlertPct = 10.0
)

// ComboOutcome is the typed result of one (platform, fiat, country, side)
// refresh combination
type ComboOutcome struct {
	Key types.SnapshotKey
	Err error // nil on success
}

// Job refreshes offer snapshots for the full platform × currency ×
// country × side matrix. It is the sole producer of truth in snapshot
// mode. Failures are isolated per combination and never abort the sweep
type Job struct {
	logger *slog.Logger

	registry *platform.Registry
	store    snapshot.Store
	rules    rules.Provider
	rater    *engine.Engine

	fetchTimeout time.Duration
	concurrency  int

	lastRates map[string]decimal.Decimal // pair → last observed rate
	ratesMux  sync.Mutex
}

type JobOption func(j *Job)

// WithLogger specifies the logger for the job
func WithLogger(l *slog.Logger) JobOption {
	return func(j *Job) {
		j.logger = l
	}
}

// WithFetchTimeout specifies the per-combination fetch timeout
func WithFetchTimeout(timeout time.Duration) JobOption {
	return func(j *Job) {
		j.fetchTimeout = timeout
	}
}

// WithConcurrency bounds the combination fan-out
func WithConcurrency(n int) JobOption {
	return func(j *Job) {
		j.concurrency = n
	}
}

// NewJob creates a new refresh job. Best rates are recomputed from the
// freshly written snapshots, through the same filter and adjustment path
// readers use
func NewJob(
	registry *platform.Registry,
	store snapshot.Store,
	provider rules.Provider,
	opts ...JobOption,
) *Job {
	j := &Job{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry:     registry,
		store:        store,
		rules:        provider,
		fetchTimeout: defaultFetchTimeout,
		concurrency:  defaultConcurrency,
		lastRates:    make(map[string]decimal.Decimal),
	}

	for _, opt := range opts {
		opt(j)
	}

	j.rater = engine.New(source.NewStored(registry, store), provider)

	return j
}

// Run refreshes every registered platform
func (j *Job) Run(ctx context.Context) (*types.RefreshResult, error) {
	result := &types.RefreshResult{
		Errors: make([]string, 0),
	}

	for _, p := range j.registry.All() {
		platformResult, err := j.RunPlatform(ctx, p)
		if err != nil {
			return nil, err
		}

		result.Updated += platformResult.Updated
		result.Errors = append(result.Errors, platformResult.Errors...)
	}

	return result, nil
}

// RunPlatform refreshes the currency × country × side matrix for one
// platform, with bounded fan-out. Snapshot writes are atomic per key,
// so a combination is never half-visible to readers
func (j *Job) RunPlatform(
	ctx context.Context,
	p platform.Platform,
) (*types.RefreshResult, error) {
	currencies, err := j.rules.ActiveCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch active currencies: %w", err)
	}

	var (
		outcomes   []ComboOutcome
		outcomeMux sync.Mutex
	)

	group, gCtx := errgroup.WithContext(ctx)
	group.SetLimit(j.concurrency)

	for _, currency := range currencies {
		countries, err := j.rules.CountriesFor(ctx, currency.Code)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch countries for %s: %w", currency.Code, err)
		}

		// The global (all countries) segment always comes first
		segments := make([]string, 0, len(countries)+1)
		segments = append(segments, "")

		for _, country := range countries {
			segments = append(segments, country.Code)
		}

		for _, country := range segments {
			for _, side := range types.Sides() {
				key := types.SnapshotKey{
					Platform: p.Code(),
					Fiat:     currency.Code,
					Side:     side,
					Country:  country,
				}

				group.Go(func() error {
					outcome := ComboOutcome{
						Key: key,
						Err: j.refreshCombo(gCtx, p, key),
					}

					outcomeMux.Lock()
					outcomes = append(outcomes, outcome)
					outcomeMux.Unlock()

					return nil // combination failures never abort the sweep
				})
			}
		}
	}

	_ = group.Wait() //nolint:errcheck // workers never return errors

	result := &types.RefreshResult{
		Errors: make([]string, 0),
	}

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result.Errors = append(
				result.Errors,
				fmt.Sprintf("%s: %s", outcome.Key, outcome.Err),
			)

			continue
		}

		result.Updated++
	}

	j.logger.Info(
		"platform refresh complete",
		"platform", p.Code(),
		"updated", result.Updated,
		"errors", len(result.Errors),
	)

	return result, nil
}

// refreshCombo fetches one combination directly from the platform
// (bypassing cache and markup) and fully replaces its snapshot
func (j *Job) refreshCombo(
	ctx context.Context,
	p platform.Platform,
	key types.SnapshotKey,
) error {
	fetchCtx, cancelFn := context.WithTimeout(ctx, j.fetchTimeout)
	defer cancelFn()

	offers, err := p.FetchOffers(fetchCtx, platform.OfferRequest{
		Asset:   platform.DefaultAsset,
		Fiat:    key.Fiat,
		Side:    key.Side,
		Country: key.Country,
	})
	if err != nil {
		return fmt.Errorf("unable to fetch offers: %w", err)
	}

	snap := &types.Snapshot{
		Key:       key,
		Offers:    offers,
		FetchedAt: time.Now().UTC(),
	}

	if err := j.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("unable to save snapshot: %w", err)
	}

	if err := j.updateBestRates(ctx, key); err != nil {
		return err
	}

	return nil
}

// updateBestRates recomputes the ranked top rates from the freshly
// written snapshot and fully replaces the materialized view
func (j *Job) updateBestRates(ctx context.Context, key types.SnapshotKey) error {
	best, err := j.rater.FetchBest(
		ctx,
		engine.OfferQuery{
			Fiat:     key.Fiat,
			Side:     key.Side,
			Country:  key.Country,
			Platform: key.Platform,
		},
		bestRateCount,
	)
	if err != nil {
		return fmt.Errorf("unable to rank best offers: %w", err)
	}

	now := time.Now().UTC()
	rates := make([]types.BestRate, 0, len(best))

	for i, offer := range best {
		rates = append(rates, types.BestRate{
			Fiat:      key.Fiat,
			Side:      key.Side,
			Country:   key.Country,
			Platform:  key.Platform,
			Rank:      i + 1,
			Rate:      offer.EffectivePrice(),
			UpdatedAt: now,
		})
	}

	if err := j.store.ReplaceBestRates(ctx, key, rates); err != nil {
		return fmt.Errorf("unable to replace best rates: %w", err)
	}

	if len(rates) > 0 {
		j.observeRate(ctx, key, rates[0].Rate, now)
	}

	return nil
}

// observeRate appends the top rate to the history log and warns on
// abnormal variation against the previous observation for the pair
func (j *Job) observeRate(
	ctx context.Context,
	key types.SnapshotKey,
	rate decimal.Decimal,
	now time.Time,
) {
	obs := &types.RateObservation{
		SourceCurrency: key.Fiat,
		TargetCurrency: platform.DefaultAsset,
		Rate:           rate,
		Side:           key.Side,
		Platform:       key.Platform,
		Country:        key.Country,
		ObservedAt:     now,
	}

	if err := j.store.SaveRateObservation(ctx, obs); err != nil {
		j.logger.Warn(
			"unable to save rate observation",
			"key", key.String(),
			"err", err,
		)
	}

	pair := key.String()

	j.ratesMux.Lock()
	previous, ok := j.lastRates[pair]
	j.lastRates[pair] = rate
	j.ratesMux.Unlock()

	if !ok || !previous.IsPositive() {
		return
	}

	pct, _ := rate.Sub(previous).Div(previous).Abs().Mul(oneHundred).Float64()
	if pct > variationAlertPct {
		j.logger.Warn(
			"abnormal rate variation",
			"key", pair,
			"previous", previous.String(),
			"current", rate.String(),
			"pct", pct,
		)
	}
}

var oneHundred = decimal.NewFromInt(100)
