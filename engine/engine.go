package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/rules"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	defaultBestLimit = 3
	maxBestLimit     = 50
)

// OfferQuery selects one normalized offer set
type OfferQuery struct {
	Fiat     types.Currency
	Side     types.Side
	Country  string // empty means all countries
	Platform string // empty means default platform with fallback
}

// Source yields normalized, unfiltered, unadjusted offers for a query.
// Whether the offers come from a live TTL cache or a refreshed snapshot
// is a deployment decision the engine is agnostic to
type Source interface {
	Offers(ctx context.Context, query OfferQuery) ([]*types.Offer, error)
}

// Engine orchestrates fetch, liquidity filtering, price adjustment and
// ranking of P2P offers
type Engine struct {
	logger *slog.Logger

	source Source
	rules  rules.Provider
}

type Option func(e *Engine)

// WithLogger specifies the logger for the engine
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a new aggregation engine
func New(source Source, provider rules.Provider, opts ...Option) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		source: source,
		rules:  provider,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// FetchOffers returns the filtered, adjusted offers for the query,
// best offer first (SELL descending, BUY ascending, ties in input order)
func (e *Engine) FetchOffers(
	ctx context.Context,
	query OfferQuery,
) ([]*types.Offer, error) {
	offers, err := e.source.Offers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unable to source offers: %w", err)
	}

	// Sources may serve shared cached state. Adjustment and ranking
	// work on copies only, never through to another reader
	offers = cloneOffers(offers)

	bound, err := e.rules.LiquidityBound(ctx, query.Side)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch liquidity bound: %w", err)
	}

	offers = filterByLiquidity(offers, bound)

	adjustments, err := e.rules.OfferAdjustments(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch adjustments: %w", err)
	}

	active := adjustmentsByTarget(adjustments)

	for _, offer := range offers {
		// The offer's own country wins over the query scope
		country := offer.Country
		if country == "" {
			country = query.Country
		}

		adjusted := applyAdjustment(offer.Price, active, query.Fiat, country, query.Side)
		offer.AdjustedPrice = &adjusted
	}

	sortOffers(offers, query.Side)

	return offers, nil
}

// FetchBest returns the top offers for the query.
// The limit is clamped to [1, 50] and defaults to 3
func (e *Engine) FetchBest(
	ctx context.Context,
	query OfferQuery,
	limit int,
) ([]*types.Offer, error) {
	offers, err := e.FetchOffers(ctx, query)
	if err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = defaultBestLimit
	}

	if limit > maxBestLimit {
		limit = maxBestLimit
	}

	if limit > len(offers) {
		limit = len(offers)
	}

	return offers[:limit], nil
}

// Page slices the already sorted offer list. Pagination is never pushed
// down to the source
func Page(offers []*types.Offer, page, pageSize int) []*types.Offer {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	start := (page - 1) * pageSize
	if start >= len(offers) {
		return []*types.Offer{}
	}

	end := start + pageSize
	if end > len(offers) {
		end = len(offers)
	}

	return offers[start:end]
}

// cloneOffers copies the sourced offer set, elements included
func cloneOffers(offers []*types.Offer) []*types.Offer {
	cloned := make([]*types.Offer, len(offers))

	for i, offer := range offers {
		clone := *offer

		if offer.AdjustedPrice != nil {
			adjusted := *offer.AdjustedPrice
			clone.AdjustedPrice = &adjusted
		}

		if offer.PaymentMethods != nil {
			clone.PaymentMethods = append([]string(nil), offer.PaymentMethods...)
		}

		cloned[i] = &clone
	}

	return cloned
}

// sortOffers orders offers best-first by effective price.
// The sort is stable, so ties keep their input order
func sortOffers(offers []*types.Offer, side types.Side) {
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i].EffectivePrice(), offers[j].EffectivePrice()

		if side == types.SideSELL {
			return a.GreaterThan(b)
		}

		return a.LessThan(b)
	})
}
