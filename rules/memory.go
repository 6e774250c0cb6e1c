package rules

import (
	"context"
	"sync"
	"time"

	"github.com/sig-0/p2prates/market/types"
)

const defaultRefreshInterval = time.Minute * 5

// Memory is an in-memory rules provider. All setters fully replace the
// corresponding set, mirroring how an admin surface would push updates
type Memory struct {
	currencies       []types.CurrencyInfo
	countries        map[types.Currency][]types.CountryInfo
	bounds           map[types.Side]*types.LiquidityBound
	adjustments      []types.Adjustment
	crossAdjustments []types.CrossAdjustment
	defaultPlatform  string
	refreshInterval  time.Duration

	mu sync.RWMutex
}

// NewMemory creates an empty in-memory rules provider
func NewMemory() *Memory {
	return &Memory{
		countries:       make(map[types.Currency][]types.CountryInfo),
		bounds:          make(map[types.Side]*types.LiquidityBound),
		refreshInterval: defaultRefreshInterval,
	}
}

func (m *Memory) ActiveCurrencies(_ context.Context) ([]types.CurrencyInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.CurrencyInfo, len(m.currencies))
	copy(out, m.currencies)

	return out, nil
}

func (m *Memory) CountriesFor(
	_ context.Context,
	fiat types.Currency,
) ([]types.CountryInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.CountryInfo, len(m.countries[fiat]))
	copy(out, m.countries[fiat])

	return out, nil
}

func (m *Memory) AllCountries(_ context.Context) ([]types.CountryInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.CountryInfo, 0)

	for _, currency := range m.currencies {
		out = append(out, m.countries[currency.Code]...)
	}

	return out, nil
}

func (m *Memory) LiquidityBound(
	_ context.Context,
	side types.Side,
) (*types.LiquidityBound, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bound, ok := m.bounds[side]
	if !ok {
		return nil, nil //nolint:nilnil // valid case, unrestricted
	}

	cp := *bound

	return &cp, nil
}

func (m *Memory) OfferAdjustments(_ context.Context) ([]types.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Adjustment, 0, len(m.adjustments))

	for _, adj := range m.adjustments {
		if adj.Active {
			out = append(out, adj)
		}
	}

	return out, nil
}

func (m *Memory) CrossAdjustments(_ context.Context) ([]types.CrossAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.CrossAdjustment, 0, len(m.crossAdjustments))

	for _, adj := range m.crossAdjustments {
		if adj.Active {
			out = append(out, adj)
		}
	}

	return out, nil
}

func (m *Memory) DefaultPlatform(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.defaultPlatform, nil
}

func (m *Memory) RefreshInterval(_ context.Context) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.refreshInterval, nil
}

// SetCurrencies replaces the active currency set
func (m *Memory) SetCurrencies(currencies ...types.CurrencyInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currencies = currencies
}

// SetCountries replaces the country segments for the fiat
func (m *Memory) SetCountries(fiat types.Currency, countries ...types.CountryInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.countries[fiat] = countries
}

// SetLiquidityBound replaces the bound for the side. Nil clears it
func (m *Memory) SetLiquidityBound(side types.Side, bound *types.LiquidityBound) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bound == nil {
		delete(m.bounds, side)

		return
	}

	m.bounds[side] = bound
}

// SetAdjustments replaces the offer-side adjustment rule set
func (m *Memory) SetAdjustments(adjustments ...types.Adjustment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adjustments = adjustments
}

// SetCrossAdjustments replaces the cross adjustment rule set
func (m *Memory) SetCrossAdjustments(adjustments ...types.CrossAdjustment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.crossAdjustments = adjustments
}

// SetDefaultPlatform replaces the default platform code
func (m *Memory) SetDefaultPlatform(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.defaultPlatform = code
}

// SetRefreshInterval replaces the refresh cadence
func (m *Memory) SetRefreshInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshInterval = interval
}
