//nolint:tagliatelle // OKX API uses camel case
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
)

const (
	Code = "okx"

	booksURL = "https://www.okx.com/v3/c2c/tradingOrders/books"
)

// booksResponse is the response from the OKX C2C books API
type booksResponse struct {
	Code int       `json:"code"`
	Data booksData `json:"data"`
}

type booksData struct {
	Buy  []bookItem `json:"buy"`
	Sell []bookItem `json:"sell"`
}

type bookItem struct {
	ID                     string   `json:"id"`
	Price                  string   `json:"price"`
	AvailableAmount        string   `json:"availableAmount"`
	QuoteMinAmountPerOrder string   `json:"quoteMinAmountPerOrder"`
	QuoteMaxAmountPerOrder string   `json:"quoteMaxAmountPerOrder"`
	NickName               string   `json:"nickName"`
	PaymentMethods         []string `json:"paymentMethods"`
	MerchantID             string   `json:"merchantId"`
}

// Platform fetches C2C offers from OKX.
// The books endpoint is not country-segmented, so country-scoped
// queries yield an empty list rather than mislabeled global offers
type Platform struct {
	client *http.Client
	url    string
}

// New creates a new OKX C2C platform adapter
func New(timeout time.Duration) *Platform {
	return &Platform{
		client: &http.Client{
			Timeout: timeout,
		},
		url: booksURL,
	}
}

func (p *Platform) Code() string {
	return Code
}

func (p *Platform) Name() string {
	return "OKX C2C"
}

func (p *Platform) FetchOffers(
	ctx context.Context,
	req platform.OfferRequest,
) ([]*types.Offer, error) {
	if req.Country != "" {
		return []*types.Offer{}, nil
	}

	data, err := p.fetchBooks(ctx, req)
	if err != nil {
		return nil, err
	}

	items := data.Sell
	if req.Side == types.SideBUY {
		items = data.Buy
	}

	offers := make([]*types.Offer, 0, len(items))

	for _, item := range items {
		offer := normalizeItem(item, req)
		if offer == nil {
			continue // malformed item, keep the batch going
		}

		offers = append(offers, offer)
	}

	return offers, nil
}

// fetchBooks executes a single books request
func (p *Platform) fetchBooks(
	ctx context.Context,
	req platform.OfferRequest,
) (*booksData, error) {
	query := url.Values{
		"baseCurrency":  []string{strings.ToLower(req.Asset.String())},
		"quoteCurrency": []string{strings.ToLower(req.Fiat.String())},
		"side":          []string{strings.ToLower(req.Side.String())},
		"paymentMethod": []string{"all"},
		"userType":      []string{"all"},
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		p.url+"?"+query.Encode(),
		http.NoBody,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create GET request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("unable to execute GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	var apiResp booksResponse
	if err = json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("unable to decode response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("invalid response code received: %d", apiResp.Code)
	}

	return &apiResp.Data, nil
}

// IsAvailable probes the books API with a minimal query
func (p *Platform) IsAvailable(ctx context.Context) bool {
	probeCtx, cancelFn := context.WithTimeout(ctx, time.Second*5)
	defer cancelFn()

	req := platform.OfferRequest{
		Asset: platform.DefaultAsset,
		Fiat:  "NGN",
		Side:  types.SideSELL,
	}

	_, err := p.fetchBooks(probeCtx, req)

	return err == nil
}

// normalizeItem maps a raw book item into the canonical offer shape.
// Returns nil when the item lacks a positive price or any amount bound
func normalizeItem(item bookItem, req platform.OfferRequest) *types.Offer {
	price, ok := parseDecimal(item.Price)
	if !ok || !price.IsPositive() {
		return nil
	}

	var (
		minFiat, _  = parseDecimal(item.QuoteMinAmountPerOrder)
		maxFiat, _  = parseDecimal(item.QuoteMaxAmountPerOrder)
		maxAsset, _ = parseDecimal(item.AvailableAmount)
	)

	if maxFiat.IsZero() && maxAsset.IsZero() {
		return nil // no tradable ceiling in either basis
	}

	available := maxFiat
	if available.IsZero() {
		// Derive the fiat ceiling from the available asset amount
		available = maxAsset.Mul(price)
		maxFiat = available
	}

	return &types.Offer{
		Platform:  Code,
		ID:        item.ID,
		Side:      req.Side,
		Fiat:      req.Fiat,
		Price:     price,
		MinFiat:   minFiat,
		MaxFiat:   maxFiat,
		MaxAsset:  maxAsset,
		Available: available,
		Advertiser: types.Advertiser{
			Name:     item.NickName,
			Merchant: item.MerchantID != "",
		},
		PaymentMethods: item.PaymentMethods,
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
