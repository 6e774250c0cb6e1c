package mock

import (
	"context"
	"time"

	"github.com/sig-0/p2prates/market/types"
)

type (
	ActiveCurrenciesDelegate func(context.Context) ([]types.CurrencyInfo, error)
	CountriesForDelegate     func(context.Context, types.Currency) ([]types.CountryInfo, error)
	AllCountriesDelegate     func(context.Context) ([]types.CountryInfo, error)
	LiquidityBoundDelegate   func(context.Context, types.Side) (*types.LiquidityBound, error)
	OfferAdjustmentsDelegate func(context.Context) ([]types.Adjustment, error)
	CrossAdjustmentsDelegate func(context.Context) ([]types.CrossAdjustment, error)
	DefaultPlatformDelegate  func(context.Context) (string, error)
	RefreshIntervalDelegate  func(context.Context) (time.Duration, error)
)

type Provider struct {
	ActiveCurrenciesFn ActiveCurrenciesDelegate
	CountriesForFn     CountriesForDelegate
	AllCountriesFn     AllCountriesDelegate
	LiquidityBoundFn   LiquidityBoundDelegate
	OfferAdjustmentsFn OfferAdjustmentsDelegate
	CrossAdjustmentsFn CrossAdjustmentsDelegate
	DefaultPlatformFn  DefaultPlatformDelegate
	RefreshIntervalFn  RefreshIntervalDelegate
}

func (m *Provider) ActiveCurrencies(ctx context.Context) ([]types.CurrencyInfo, error) {
	if m.ActiveCurrenciesFn != nil {
		return m.ActiveCurrenciesFn(ctx)
	}

	return nil, nil
}

func (m *Provider) CountriesFor(
	ctx context.Context,
	fiat types.Currency,
) ([]types.CountryInfo, error) {
	if m.CountriesForFn != nil {
		return m.CountriesForFn(ctx, fiat)
	}

	return nil, nil
}

func (m *Provider) AllCountries(ctx context.Context) ([]types.CountryInfo, error) {
	if m.AllCountriesFn != nil {
		return m.AllCountriesFn(ctx)
	}

	return nil, nil
}

func (m *Provider) LiquidityBound(
	ctx context.Context,
	side types.Side,
) (*types.LiquidityBound, error) {
	if m.LiquidityBoundFn != nil {
		return m.LiquidityBoundFn(ctx, side)
	}

	return nil, nil
}

func (m *Provider) OfferAdjustments(ctx context.Context) ([]types.Adjustment, error) {
	if m.OfferAdjustmentsFn != nil {
		return m.OfferAdjustmentsFn(ctx)
	}

	return nil, nil
}

func (m *Provider) CrossAdjustments(ctx context.Context) ([]types.CrossAdjustment, error) {
	if m.CrossAdjustmentsFn != nil {
		return m.CrossAdjustmentsFn(ctx)
	}

	return nil, nil
}

func (m *Provider) DefaultPlatform(ctx context.Context) (string, error) {
	if m.DefaultPlatformFn != nil {
		return m.DefaultPlatformFn(ctx)
	}

	return "", nil
}

func (m *Provider) RefreshInterval(ctx context.Context) (time.Duration, error) {
	if m.RefreshIntervalFn != nil {
		return m.RefreshIntervalFn(ctx)
	}

	return 0, nil
}
