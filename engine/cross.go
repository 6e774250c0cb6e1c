package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
)

const crossRatePrecision = 8

// Leg identifies one side of a cross-rate computation
type Leg struct {
	Currency types.Currency `json:"currency"`
	Side     types.Side     `json:"side"`
	Country  string         `json:"country,omitempty"`
}

func (l Leg) String() string {
	out := fmt.Sprintf("%s %s", l.Currency, l.Side)
	if l.Country != "" {
		out += fmt.Sprintf(" (country: %s)", l.Country)
	}

	return out
}

// UnavailableError reports exactly which cross-rate legs have no usable
// offers. It is deterministic for the same empty inputs and is never
// silently replaced by a stale or global rate
type UnavailableError struct {
	Missing []Leg
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Missing))

	for _, leg := range e.Missing {
		parts = append(parts, leg.String())
	}

	return "cross rate unavailable: missing " + strings.Join(parts, "; ")
}

// CrossRate is a computed from → to rate through the bridge asset,
// along with the winning offer on each leg
type CrossRate struct {
	From     types.Currency  `json:"from_currency"`
	To       types.Currency  `json:"to_currency"`
	Rate     decimal.Decimal `json:"rate"`
	BestBuy  *types.Offer    `json:"best_offer_from,omitempty"`
	BestSell *types.Offer    `json:"best_offer_to,omitempty"`
}

// CrossRate computes the from → to rate through the bridge asset:
// the cheapest way to acquire the asset with the source currency (best
// BUY) against the most target currency received per asset unit (best
// SELL), cross-adjusted and rounded to 8 decimal places.
// Identical currencies rate exactly 1 regardless of data availability
func (e *Engine) CrossRate(
	ctx context.Context,
	from, to types.Currency,
	countryFrom, countryTo string,
) (*CrossRate, error) {
	if from == to {
		return &CrossRate{
			From: from,
			To:   to,
			Rate: decimal.New(1, 0),
		}, nil
	}

	bestBuy, err := e.bestLeg(ctx, from, types.SideBUY, countryFrom)
	if err != nil {
		return nil, err
	}

	bestSell, err := e.bestLeg(ctx, to, types.SideSELL, countryTo)
	if err != nil {
		return nil, err
	}

	missing := make([]Leg, 0, 2)

	if bestBuy == nil {
		missing = append(missing, Leg{Currency: from, Side: types.SideBUY, Country: countryFrom})
	}

	if bestSell == nil {
		missing = append(missing, Leg{Currency: to, Side: types.SideSELL, Country: countryTo})
	}

	if len(missing) > 0 {
		return nil, &UnavailableError{Missing: missing}
	}

	crossAdjustments, err := e.rules.CrossAdjustments(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch cross adjustments: %w", err)
	}

	buyPrice, sellPrice := applyCrossAdjustment(
		bestBuy.Price,
		bestSell.Price,
		crossAdjustmentsByTarget(crossAdjustments),
		from,
		to,
	)

	if !buyPrice.IsPositive() {
		return nil, &UnavailableError{
			Missing: []Leg{{Currency: from, Side: types.SideBUY, Country: countryFrom}},
		}
	}

	return &CrossRate{
		From:     from,
		To:       to,
		Rate:     sellPrice.Div(buyPrice).Round(crossRatePrecision),
		BestBuy:  bestBuy,
		BestSell: bestSell,
	}, nil
}

// bestLeg finds the best raw-priced offer for one cross leg: lowest
// price for BUY, highest for SELL. Offers with a non-positive price are
// treated as absent. The country scope is exact, with no fallback to
// the global segment
func (e *Engine) bestLeg(
	ctx context.Context,
	fiat types.Currency,
	side types.Side,
	country string,
) (*types.Offer, error) {
	query := OfferQuery{
		Fiat:    fiat,
		Side:    side,
		Country: country,
	}

	offers, err := e.source.Offers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unable to source %s %s offers: %w", fiat, side, err)
	}

	bound, err := e.rules.LiquidityBound(ctx, side)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch liquidity bound: %w", err)
	}

	var best *types.Offer

	for _, offer := range filterByLiquidity(offers, bound) {
		if !offer.Price.IsPositive() {
			continue
		}

		if best == nil {
			best = offer

			continue
		}

		if side == types.SideBUY && offer.Price.LessThan(best.Price) {
			best = offer
		}

		if side == types.SideSELL && offer.Price.GreaterThan(best.Price) {
			best = offer
		}
	}

	return best, nil
}
