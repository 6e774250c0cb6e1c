package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

func (c Currency) String() string {
	return string(c)
}

type Side string

const (
	SideBUY  Side = "BUY"
	SideSELL Side = "SELL"
)

func (s Side) String() string {
	return string(s)
}

// Sides lists the two trade directions, in refresh sweep order
func Sides() []Side {
	return []Side{SideBUY, SideSELL}
}

// CurrencyInfo is a fiat currency enabled for aggregation
type CurrencyInfo struct {
	Code Currency `json:"code"`
	Name string   `json:"name"`
}

// CountryInfo is a country segment attached to a fiat currency
type CountryInfo struct {
	Code string   `json:"code"`
	Name string   `json:"name"`
	Fiat Currency `json:"fiat,omitempty"`
}

// Advertiser describes the party behind an offer
type Advertiser struct {
	Name     string `json:"name"`
	Merchant bool   `json:"merchant"`
}

// Offer is a single advertised P2P trade, normalized across platforms.
// Prices are quoted as fiat per 1 unit of the bridge asset.
// AdjustedPrice is only ever set on engine-owned copies, never on
// offers shared through a cache or snapshot
type Offer struct {
	Platform       string           `json:"platform"`
	ID             string           `json:"offer_id"`
	Side           Side             `json:"side"`
	Fiat           Currency         `json:"fiat"`
	Country        string           `json:"country,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	MinFiat        decimal.Decimal  `json:"min_fiat"`
	MaxFiat        decimal.Decimal  `json:"max_fiat"`
	MinAsset       decimal.Decimal  `json:"min_asset"`
	MaxAsset       decimal.Decimal  `json:"max_asset"`
	Available      decimal.Decimal  `json:"available_amount"`
	Advertiser     Advertiser       `json:"advertiser"`
	PaymentMethods []string         `json:"payment_methods,omitempty"`
	AdjustedPrice  *decimal.Decimal `json:"adjusted_price,omitempty"`
}

// EffectivePrice returns the adjusted price when set, the raw price otherwise
func (o *Offer) EffectivePrice() decimal.Decimal {
	if o.AdjustedPrice != nil {
		return *o.AdjustedPrice
	}

	return o.Price
}

// SnapshotKey uniquely identifies one stored offer set.
// An empty Country means the global (all countries) segment
type SnapshotKey struct {
	Platform string   `json:"platform"`
	Fiat     Currency `json:"fiat"`
	Side     Side     `json:"side"`
	Country  string   `json:"country"`
}

func (k SnapshotKey) String() string {
	country := k.Country
	if country == "" {
		country = "all"
	}

	return fmt.Sprintf("%s/%s/%s/%s", k.Platform, k.Fiat, country, k.Side)
}

// Snapshot is the last full, unfiltered, unadjusted offer set for one key.
// A snapshot with zero offers is a valid state, distinct from no snapshot
type Snapshot struct {
	Key       SnapshotKey `json:"key"`
	Offers    []*Offer    `json:"offers"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// BestRate is one ranked entry of the materialized best-rate view
type BestRate struct {
	Fiat      Currency        `json:"fiat"`
	Side      Side            `json:"side"`
	Country   string          `json:"country"`
	Platform  string          `json:"platform"`
	Rank      int             `json:"rank"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RateObservation is one entry of the append-only rate history log
type RateObservation struct {
	SourceCurrency Currency        `json:"source_currency"`
	TargetCurrency Currency        `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
	Side           Side            `json:"side"`
	Platform       string          `json:"platform"`
	Country        string          `json:"country"`
	ObservedAt     time.Time       `json:"observed_at"`
}

// RefreshResult summarizes one refresh sweep
type RefreshResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

type AdjustmentMode string

const (
	ModePercent AdjustmentMode = "percent"
	ModeFixed   AdjustmentMode = "fixed"
)

// Adjustment is an offer-side price adjustment rule.
// Target encodes specificity: SIDE, CURRENCY:SIDE or CURRENCY:COUNTRY:SIDE.
// A positive value always reads "more favorable to the operator":
// markup on SELL, markdown on BUY
type Adjustment struct {
	Target string          `json:"target"`
	Mode   AdjustmentMode  `json:"mode"`
	Value  decimal.Decimal `json:"value"`
	Active bool            `json:"active"`
}

// CrossAdjustment is a cross-rate adjustment rule with independent
// values per leg. Target is cross, cross:FROM or cross:FROM:TO
type CrossAdjustment struct {
	Target    string          `json:"target"`
	Mode      AdjustmentMode  `json:"mode"`
	ValueBuy  decimal.Decimal `json:"value_buy"`
	ValueSell decimal.Decimal `json:"value_sell"`
	Active    bool            `json:"active"`
}

// LiquidityBound is the per-side tradable-amount filter configuration.
// Max == nil means unbounded above. When AmountInFiat is false the bound
// is compared against the offer's asset-denominated range
type LiquidityBound struct {
	Side             Side             `json:"side"`
	Min              decimal.Decimal  `json:"min"`
	Max              *decimal.Decimal `json:"max"`
	RequireInclusion bool             `json:"require_inclusion"`
	AmountInFiat     bool             `json:"amount_in_fiat"`
}
