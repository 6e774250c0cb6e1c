package server

import (
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
)

type OffersResponse struct {
	Count    int            `json:"count"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Offers   []*types.Offer `json:"offers"`
}

type PricesResponse struct {
	Count  int               `json:"count"`
	Prices []decimal.Decimal `json:"prices"`
}

type BestOffersResponse struct {
	Results []*types.Offer `json:"results"`
}

type BestRatesResponse struct {
	Results []types.BestRate `json:"results"`
}

type CurrenciesResponse struct {
	Results []types.CurrencyInfo `json:"results"`
}

type CountriesResponse struct {
	Results []types.CountryInfo `json:"results"`
}

type ErrorResponse struct {
	Error   string       `json:"error"`
	Missing []engine.Leg `json:"missing,omitempty"`
}
