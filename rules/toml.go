package rules

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
)

var (
	errInvalidSide = errors.New("invalid side")
	errInvalidMode = errors.New("invalid adjustment mode")
)

// fileConfig is the TOML shape of the rules file
type fileConfig struct {
	DefaultPlatform        string             `toml:"default_platform"`
	RefreshIntervalMinutes int                `toml:"refresh_interval_minutes"`
	Currencies             []currencyConfig   `toml:"currencies"`
	Liquidity              []liquidityConfig  `toml:"liquidity"`
	Adjustments            []adjustmentConfig `toml:"adjustments"`
	CrossAdjustments       []crossConfig      `toml:"cross_adjustments"`
}

type currencyConfig struct {
	Code      string          `toml:"code"`
	Name      string          `toml:"name"`
	Countries []countryConfig `toml:"countries"`
}

type countryConfig struct {
	Code string `toml:"code"`
	Name string `toml:"name"`
}

type liquidityConfig struct {
	Side             string `toml:"side"`
	Min              string `toml:"min"`
	Max              string `toml:"max"`
	RequireInclusion bool   `toml:"require_inclusion"`
	AmountInAsset    bool   `toml:"amount_in_asset"`
}

type adjustmentConfig struct {
	Target string `toml:"target"`
	Mode   string `toml:"mode"`
	Value  string `toml:"value"`
}

type crossConfig struct {
	Target    string `toml:"target"`
	Mode      string `toml:"mode"`
	ValueBuy  string `toml:"value_buy"`
	ValueSell string `toml:"value_sell"`
}

// Load reads a TOML rules file into an in-memory provider
func Load(path string) (*Memory, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg fileConfig

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	return fromConfig(&cfg)
}

func fromConfig(cfg *fileConfig) (*Memory, error) {
	m := NewMemory()

	currencies := make([]types.CurrencyInfo, 0, len(cfg.Currencies))

	for _, c := range cfg.Currencies {
		fiat := types.Currency(c.Code)

		currencies = append(currencies, types.CurrencyInfo{
			Code: fiat,
			Name: c.Name,
		})

		countries := make([]types.CountryInfo, 0, len(c.Countries))

		for _, country := range c.Countries {
			countries = append(countries, types.CountryInfo{
				Code: country.Code,
				Name: country.Name,
				Fiat: fiat,
			})
		}

		m.SetCountries(fiat, countries...)
	}

	m.SetCurrencies(currencies...)

	for _, l := range cfg.Liquidity {
		bound, err := parseLiquidity(l)
		if err != nil {
			return nil, fmt.Errorf("invalid liquidity bound: %w", err)
		}

		m.SetLiquidityBound(bound.Side, bound)
	}

	adjustments := make([]types.Adjustment, 0, len(cfg.Adjustments))

	for _, a := range cfg.Adjustments {
		mode, err := parseMode(a.Mode)
		if err != nil {
			return nil, fmt.Errorf("invalid adjustment %q: %w", a.Target, err)
		}

		value, err := decimal.NewFromString(a.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid adjustment value %q: %w", a.Value, err)
		}

		adjustments = append(adjustments, types.Adjustment{
			Target: a.Target,
			Mode:   mode,
			Value:  value,
			Active: true,
		})
	}

	m.SetAdjustments(adjustments...)

	crossAdjustments := make([]types.CrossAdjustment, 0, len(cfg.CrossAdjustments))

	for _, c := range cfg.CrossAdjustments {
		mode, err := parseMode(c.Mode)
		if err != nil {
			return nil, fmt.Errorf("invalid cross adjustment %q: %w", c.Target, err)
		}

		valueBuy, err := decimal.NewFromString(c.ValueBuy)
		if err != nil {
			return nil, fmt.Errorf("invalid cross buy value %q: %w", c.ValueBuy, err)
		}

		valueSell, err := decimal.NewFromString(c.ValueSell)
		if err != nil {
			return nil, fmt.Errorf("invalid cross sell value %q: %w", c.ValueSell, err)
		}

		crossAdjustments = append(crossAdjustments, types.CrossAdjustment{
			Target:    c.Target,
			Mode:      mode,
			ValueBuy:  valueBuy,
			ValueSell: valueSell,
			Active:    true,
		})
	}

	m.SetCrossAdjustments(crossAdjustments...)

	if cfg.DefaultPlatform != "" {
		m.SetDefaultPlatform(cfg.DefaultPlatform)
	}

	if cfg.RefreshIntervalMinutes > 0 {
		m.SetRefreshInterval(time.Duration(cfg.RefreshIntervalMinutes) * time.Minute)
	}

	return m, nil
}

func parseLiquidity(cfg liquidityConfig) (*types.LiquidityBound, error) {
	side := types.Side(cfg.Side)
	if side != types.SideBUY && side != types.SideSELL {
		return nil, errInvalidSide
	}

	minAmount, err := decimal.NewFromString(cfg.Min)
	if err != nil {
		return nil, fmt.Errorf("invalid min %q: %w", cfg.Min, err)
	}

	bound := &types.LiquidityBound{
		Side:             side,
		Min:              minAmount,
		RequireInclusion: cfg.RequireInclusion,
		AmountInFiat:     !cfg.AmountInAsset,
	}

	if cfg.Max != "" {
		maxAmount, err := decimal.NewFromString(cfg.Max)
		if err != nil {
			return nil, fmt.Errorf("invalid max %q: %w", cfg.Max, err)
		}

		bound.Max = &maxAmount
	}

	return bound, nil
}

func parseMode(raw string) (types.AdjustmentMode, error) {
	mode := types.AdjustmentMode(raw)

	switch mode {
	case types.ModePercent, types.ModeFixed:
		return mode, nil
	default:
		return "", errInvalidMode
	}
}
