package rules

import (
	"context"
	"time"

	"github.com/sig-0/p2prates/market/types"
)

// Provider exposes the externally-managed aggregation configuration.
// All data is read-only to the engine; the engine reads each set at most
// once per aggregation call and treats it as a consistent snapshot
type Provider interface {
	// ActiveCurrencies lists the fiat currencies enabled for aggregation
	ActiveCurrencies(ctx context.Context) ([]types.CurrencyInfo, error)

	// CountriesFor lists the active country segments for the given fiat
	CountriesFor(ctx context.Context, fiat types.Currency) ([]types.CountryInfo, error)

	// AllCountries lists every active country segment, with its fiat
	AllCountries(ctx context.Context) ([]types.CountryInfo, error)

	// LiquidityBound fetches the active bound for the side.
	// A nil bound means unrestricted
	LiquidityBound(ctx context.Context, side types.Side) (*types.LiquidityBound, error)

	// OfferAdjustments lists the active offer-side adjustment rules
	OfferAdjustments(ctx context.Context) ([]types.Adjustment, error)

	// CrossAdjustments lists the active cross-rate adjustment rules
	CrossAdjustments(ctx context.Context) ([]types.CrossAdjustment, error)

	// DefaultPlatform returns the configured default platform code
	DefaultPlatform(ctx context.Context) (string, error)

	// RefreshInterval returns the minimum interval between refresh sweeps
	RefreshInterval(ctx context.Context) (time.Duration, error)
}
