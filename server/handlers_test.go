package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/refresh"
	"github.com/sig-0/p2prates/rules/mock"
	snapshotmock "github.com/sig-0/p2prates/snapshot/mock"
)

type sourceDelegate func(context.Context, engine.OfferQuery) ([]*types.Offer, error)

type mockSource struct {
	OffersFn sourceDelegate
}

func (m *mockSource) Offers(
	ctx context.Context,
	query engine.OfferQuery,
) ([]*types.Offer, error) {
	if m.OffersFn != nil {
		return m.OffersFn(ctx, query)
	}

	return nil, nil
}

type refreshDelegate func(context.Context, bool) (*types.RefreshResult, error)

type mockRefresher struct {
	RefreshFn refreshDelegate
}

func (m *mockRefresher) Refresh(
	ctx context.Context,
	force bool,
) (*types.RefreshResult, error) {
	if m.RefreshFn != nil {
		return m.RefreshFn(ctx, force)
	}

	return nil, nil
}

func testServer(src engine.Source, provider *mock.Provider) *Server {
	if provider == nil {
		provider = &mock.Provider{}
	}

	return &Server{
		logger: noopLogger,
		engine: engine.New(src, provider),
		rules:  provider,
	}
}

func sellOffers(prices ...int64) []*types.Offer {
	offers := make([]*types.Offer, 0, len(prices))

	for i, price := range prices {
		offers = append(offers, &types.Offer{
			ID:      string(rune('a' + i)),
			Side:    types.SideSELL,
			Price:   decimal.NewFromInt(price),
			MaxFiat: decimal.NewFromInt(500000),
		})
	}

	return offers
}

func TestHandlers_Offers(t *testing.T) {
	t.Parallel()

	t.Run("invalid side", func(t *testing.T) {
		t.Parallel()

		var called bool

		s := testServer(&mockSource{
			OffersFn: func(_ context.Context, _ engine.OfferQuery) ([]*types.Offer, error) {
				called = true

				return nil, nil
			},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/offers?fiat=XOF&side=hold", http.NoBody)
		w := httptest.NewRecorder()

		s.Offers(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, called)
	})

	t.Run("invalid currency", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/offers?fiat=FRANCS&side=sell", http.NoBody)
		w := httptest.NewRecorder()

		s.Offers(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("source error", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{
			OffersFn: func(_ context.Context, _ engine.OfferQuery) ([]*types.Offer, error) {
				return nil, errors.New("boom")
			},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/offers?fiat=XOF&side=sell", http.NoBody)
		w := httptest.NewRecorder()

		s.Offers(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("success with pagination", func(t *testing.T) {
		t.Parallel()

		var capturedQuery engine.OfferQuery

		s := testServer(&mockSource{
			OffersFn: func(_ context.Context, query engine.OfferQuery) ([]*types.Offer, error) {
				capturedQuery = query

				return sellOffers(600, 610, 605), nil
			},
		}, nil)

		url := "/v1/offers?fiat=xof&side=sell&country=bj&page=1&page_size=2"
		req := httptest.NewRequest(http.MethodGet, url, http.NoBody)
		w := httptest.NewRecorder()

		s.Offers(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp OffersResponse

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

		assert.Equal(t, 3, resp.Count)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 2, resp.PageSize)
		require.Len(t, resp.Offers, 2)

		// SELL descending
		assert.True(t, resp.Offers[0].Price.Equal(decimal.NewFromInt(610)))
		assert.True(t, resp.Offers[1].Price.Equal(decimal.NewFromInt(605)))

		// Parameters are normalized to upper case
		assert.Equal(t, types.Currency("XOF"), capturedQuery.Fiat)
		assert.Equal(t, types.SideSELL, capturedQuery.Side)
		assert.Equal(t, "BJ", capturedQuery.Country)
	})
}

func TestHandlers_Prices(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		OfferAdjustmentsFn: func(_ context.Context) ([]types.Adjustment, error) {
			return []types.Adjustment{
				{
					Target: "SELL",
					Mode:   types.ModePercent,
					Value:  decimal.NewFromInt(1),
					Active: true,
				},
			}, nil
		},
	}

	s := testServer(&mockSource{
		OffersFn: func(_ context.Context, _ engine.OfferQuery) ([]*types.Offer, error) {
			return sellOffers(600), nil
		},
	}, provider)

	req := httptest.NewRequest(http.MethodGet, "/v1/offers/prices?fiat=XOF&side=sell", http.NoBody)
	w := httptest.NewRecorder()

	s.Prices(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp PricesResponse

	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Prices, 1)

	// Adjusted, not raw: 600 * 1.01
	assert.True(t, resp.Prices[0].Equal(decimal.NewFromInt(606)))
}

func TestHandlers_CrossRate(t *testing.T) {
	t.Parallel()

	t.Run("missing parameters", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/cross?from=XOF", http.NoBody)
		w := httptest.NewRecorder()

		s.CrossRate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unavailable legs yield 404 with details", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)

		url := "/v1/rates/cross?from=XOF&to=GNF&country_from=BJ"
		req := httptest.NewRequest(http.MethodGet, url, http.NoBody)
		w := httptest.NewRecorder()

		s.CrossRate(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)

		var resp ErrorResponse

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Missing, 2)
		assert.Equal(t, types.Currency("XOF"), resp.Missing[0].Currency)
		assert.Equal(t, "BJ", resp.Missing[0].Country)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{
			OffersFn: func(_ context.Context, query engine.OfferQuery) ([]*types.Offer, error) {
				if query.Fiat == "XOF" {
					return sellOffers(600), nil
				}

				return sellOffers(9000), nil
			},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/cross?from=XOF&to=GNF", http.NoBody)
		w := httptest.NewRecorder()

		s.CrossRate(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp engine.CrossRate

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "15", resp.Rate.String())
	})
}

func TestHandlers_Currencies(t *testing.T) {
	t.Parallel()

	t.Run("rules error", func(t *testing.T) {
		t.Parallel()

		provider := &mock.Provider{
			ActiveCurrenciesFn: func(_ context.Context) ([]types.CurrencyInfo, error) {
				return nil, errors.New("boom")
			},
		}

		s := testServer(&mockSource{}, provider)

		req := httptest.NewRequest(http.MethodGet, "/v1/currencies", http.NoBody)
		w := httptest.NewRecorder()

		s.Currencies(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		provider := &mock.Provider{
			ActiveCurrenciesFn: func(_ context.Context) ([]types.CurrencyInfo, error) {
				return []types.CurrencyInfo{
					{Code: "XOF", Name: "CFA Franc BCEAO"},
				}, nil
			},
		}

		s := testServer(&mockSource{}, provider)

		req := httptest.NewRequest(http.MethodGet, "/v1/currencies", http.NoBody)
		w := httptest.NewRecorder()

		s.Currencies(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp CurrenciesResponse

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, types.Currency("XOF"), resp.Results[0].Code)
	})
}

func TestHandlers_Countries(t *testing.T) {
	t.Parallel()

	t.Run("scoped by fiat", func(t *testing.T) {
		t.Parallel()

		var capturedFiat types.Currency

		provider := &mock.Provider{
			CountriesForFn: func(_ context.Context, fiat types.Currency) ([]types.CountryInfo, error) {
				capturedFiat = fiat

				return []types.CountryInfo{
					{Code: "BJ", Name: "Benin", Fiat: "XOF"},
				}, nil
			},
		}

		s := testServer(&mockSource{}, provider)

		req := httptest.NewRequest(http.MethodGet, "/v1/countries?fiat=XOF", http.NoBody)
		w := httptest.NewRecorder()

		s.Countries(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, types.Currency("XOF"), capturedFiat)
	})

	t.Run("unscoped lists everything", func(t *testing.T) {
		t.Parallel()

		var called bool

		provider := &mock.Provider{
			AllCountriesFn: func(_ context.Context) ([]types.CountryInfo, error) {
				called = true

				return []types.CountryInfo{
					{Code: "BJ", Fiat: "XOF"},
					{Code: "GN", Fiat: "GNF"},
				}, nil
			},
		}

		s := testServer(&mockSource{}, provider)

		req := httptest.NewRequest(http.MethodGet, "/v1/countries", http.NoBody)
		w := httptest.NewRecorder()

		s.Countries(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)

		var resp CountriesResponse

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.Results, 2)
	})
}

func TestHandlers_BestRates(t *testing.T) {
	t.Parallel()

	t.Run("disabled without a store", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/best?fiat=XOF&side=sell", http.NoBody)
		w := httptest.NewRecorder()

		s.BestRates(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)
		s.store = &snapshotmock.Store{
			BestRatesFn: func(
				_ context.Context,
				fiat types.Currency,
				side types.Side,
				country string,
			) ([]types.BestRate, error) {
				return []types.BestRate{
					{
						Fiat:     fiat,
						Side:     side,
						Country:  country,
						Platform: "binance",
						Rank:     1,
						Rate:     decimal.NewFromInt(610),
					},
				}, nil
			},
		}

		url := "/v1/rates/best?fiat=XOF&side=sell&country=BJ"
		req := httptest.NewRequest(http.MethodGet, url, http.NoBody)
		w := httptest.NewRecorder()

		s.BestRates(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp BestRatesResponse

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "binance", resp.Results[0].Platform)
	})
}

func TestHandlers_TriggerRefresh(t *testing.T) {
	t.Parallel()

	t.Run("disabled without a refresher", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/refresh", http.NoBody)
		w := httptest.NewRecorder()

		s.TriggerRefresh(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("cadence gate maps to 429", func(t *testing.T) {
		t.Parallel()

		s := testServer(&mockSource{}, nil)
		s.refresher = &mockRefresher{
			RefreshFn: func(_ context.Context, _ bool) (*types.RefreshResult, error) {
				return nil, refresh.ErrRefreshTooSoon
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/refresh", http.NoBody)
		w := httptest.NewRecorder()

		s.TriggerRefresh(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("force flag is forwarded", func(t *testing.T) {
		t.Parallel()

		var capturedForce bool

		s := testServer(&mockSource{}, nil)
		s.refresher = &mockRefresher{
			RefreshFn: func(_ context.Context, force bool) (*types.RefreshResult, error) {
				capturedForce = force

				return &types.RefreshResult{
					Updated: 4,
					Errors:  []string{},
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/refresh?force=true", http.NoBody)
		w := httptest.NewRecorder()

		s.TriggerRefresh(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, capturedForce)

		var resp types.RefreshResult

		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 4, resp.Updated)
	})
}
