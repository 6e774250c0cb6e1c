//nolint:tagliatelle // Binance API uses camel case
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
)

const (
	Code = "binance"

	searchURL = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"

	successCode = "000000"

	pageSize = 20
	maxPages = 100
)

// searchRequest is the request body for the Binance P2P search API.
// The payload mirrors the p2p.binance.com frontend, so server-side
// filters (countries in particular) are actually applied
type searchRequest struct {
	Asset      string   `json:"asset"`
	Fiat       string   `json:"fiat"`
	TradeType  string   `json:"tradeType"`
	Page       int      `json:"page"`
	Rows       int      `json:"rows"`
	Countries  []string `json:"countries"`
	PayTypes   []string `json:"payTypes"`
	Classifies []string `json:"classifies"`
	FilterType string   `json:"filterType"`
}

// searchResponse is the response from the Binance P2P search API
type searchResponse struct {
	Code  string       `json:"code"`
	Data  []searchItem `json:"data"`
	Total int          `json:"total"`
}

type searchItem struct {
	Adv        searchAdv        `json:"adv"`
	Advertiser searchAdvertiser `json:"advertiser"`
}

type searchAdv struct {
	AdvNo                string        `json:"advNo"`
	TradeType            string        `json:"tradeType"`
	Price                string        `json:"price"`
	MinSingleTransAmount string        `json:"minSingleTransAmount"`
	MaxSingleTransAmount string        `json:"maxSingleTransAmount"`
	SurplusAmount        string        `json:"surplusAmount"`
	TradableQuantity     string        `json:"tradableQuantity"`
	TradeMethods         []tradeMethod `json:"tradeMethods"`
}

type tradeMethod struct {
	Identifier string `json:"identifier"`
}

type searchAdvertiser struct {
	NickName string `json:"nickName"`
	UserType string `json:"userType"`
}

// Platform fetches P2P offers from Binance
type Platform struct {
	client *http.Client
	url    string
}

// New creates a new Binance P2P platform adapter
func New(timeout time.Duration) *Platform {
	return &Platform{
		client: &http.Client{
			Timeout: timeout,
		},
		url: searchURL,
	}
}

func (p *Platform) Code() string {
	return Code
}

func (p *Platform) Name() string {
	return "Binance P2P"
}

// FetchOffers walks all result pages for the query and returns the
// normalized offer set. Items that cannot be parsed into the minimal
// required fields are dropped individually
func (p *Platform) FetchOffers(
	ctx context.Context,
	req platform.OfferRequest,
) ([]*types.Offer, error) {
	offers := make([]*types.Offer, 0, pageSize)

	for page := 1; page <= maxPages; page++ {
		items, total, err := p.fetchPage(ctx, req, page)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			offer := normalizeItem(item, req)
			if offer == nil {
				continue // malformed item, keep the batch going
			}

			offers = append(offers, offer)
		}

		if len(items) < pageSize || len(offers) >= total {
			break
		}
	}

	return offers, nil
}

// fetchPage executes a single search request
func (p *Platform) fetchPage(
	ctx context.Context,
	req platform.OfferRequest,
	page int,
) ([]searchItem, int, error) {
	countries := make([]string, 0, 1)
	if req.Country != "" {
		countries = append(countries, req.Country)
	}

	reqBody := searchRequest{
		Asset:      req.Asset.String(),
		Fiat:       req.Fiat.String(),
		TradeType:  req.Side.String(),
		Page:       page,
		Rows:       pageSize,
		Countries:  countries,
		PayTypes:   []string{},
		Classifies: []string{"mass", "profession", "fiat_trade"},
		FilterType: "all",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("unable to create POST request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to execute POST request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	var apiResp searchResponse
	if err = json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, 0, fmt.Errorf("unable to decode response: %w", err)
	}

	if apiResp.Code != successCode {
		return nil, 0, fmt.Errorf("invalid response code received: %s", apiResp.Code)
	}

	return apiResp.Data, apiResp.Total, nil
}

// IsAvailable probes the search API with a minimal query
func (p *Platform) IsAvailable(ctx context.Context) bool {
	probeCtx, cancelFn := context.WithTimeout(ctx, time.Second*5)
	defer cancelFn()

	req := platform.OfferRequest{
		Asset: platform.DefaultAsset,
		Fiat:  "XOF",
		Side:  types.SideSELL,
	}

	items, _, err := p.fetchPage(probeCtx, req, 1)

	return err == nil && items != nil
}

// normalizeItem maps a raw search item into the canonical offer shape.
// Returns nil when the item lacks a positive price or any amount bound
func normalizeItem(item searchItem, req platform.OfferRequest) *types.Offer {
	price, ok := parseDecimal(item.Adv.Price)
	if !ok || !price.IsPositive() {
		return nil
	}

	var (
		minFiat, _ = parseDecimal(item.Adv.MinSingleTransAmount)
		maxFiat, _ = parseDecimal(item.Adv.MaxSingleTransAmount)
	)

	maxAsset, ok := parseDecimal(item.Adv.SurplusAmount)
	if !ok {
		maxAsset, _ = parseDecimal(item.Adv.TradableQuantity)
	}

	if maxFiat.IsZero() && maxAsset.IsZero() {
		return nil // no tradable ceiling in either basis
	}

	methods := make([]string, 0, len(item.Adv.TradeMethods))
	for _, m := range item.Adv.TradeMethods {
		if m.Identifier != "" {
			methods = append(methods, m.Identifier)
		}
	}

	side := types.Side(item.Adv.TradeType)
	if side != types.SideBUY && side != types.SideSELL {
		side = req.Side
	}

	return &types.Offer{
		Platform: Code,
		ID:       item.Adv.AdvNo,
		Side:     side,
		Fiat:     req.Fiat,
		Country:  req.Country,
		Price:    price,
		MinFiat:  minFiat,
		MaxFiat:  maxFiat,
		MaxAsset: maxAsset,
		// The max single-transaction amount is the effective tradable ceiling
		Available: maxFiat,
		Advertiser: types.Advertiser{
			Name:     item.Advertiser.NickName,
			Merchant: item.Advertiser.UserType == "merchant",
		},
		PaymentMethods: methods,
	}
}

// parseDecimal parses a decimal string, coercing absent values to zero
func parseDecimal(value string) (decimal.Decimal, bool) {
	if value == "" {
		return decimal.Zero, false
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}

	return parsed, true
}
