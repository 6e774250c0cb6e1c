package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/rules/mock"
)

func pricedOffer(id string, price int64) *types.Offer {
	return &types.Offer{
		ID:      id,
		Price:   decimal.NewFromInt(price),
		MinFiat: decimal.NewFromInt(1),
		MaxFiat: decimal.NewFromInt(1000000),
	}
}

func offerIDs(offers []*types.Offer) []string {
	ids := make([]string, 0, len(offers))
	for _, offer := range offers {
		ids = append(ids, offer.ID)
	}

	return ids
}

func TestEngine_FetchOffers(t *testing.T) {
	t.Parallel()

	t.Run("source error", func(t *testing.T) {
		t.Parallel()

		fetchErr := errors.New("fetch error")

		src := &mockSource{
			OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
				return nil, fetchErr
			},
		}

		e := New(src, &mock.Provider{})

		_, err := e.FetchOffers(
			context.Background(),
			OfferQuery{Fiat: "XOF", Side: types.SideSELL},
		)

		assert.ErrorIs(t, err, fetchErr)
	})

	t.Run("SELL sorts descending", func(t *testing.T) {
		t.Parallel()

		src := &mockSource{
			OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
				return []*types.Offer{
					pricedOffer("mid", 600),
					pricedOffer("best", 610),
					pricedOffer("worst", 590),
				}, nil
			},
		}

		e := New(src, &mock.Provider{})

		offers, err := e.FetchOffers(
			context.Background(),
			OfferQuery{Fiat: "XOF", Side: types.SideSELL},
		)

		require.NoError(t, err)
		assert.Equal(t, []string{"best", "mid", "worst"}, offerIDs(offers))
	})

	t.Run("BUY sorts ascending", func(t *testing.T) {
		t.Parallel()

		src := &mockSource{
			OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
				return []*types.Offer{
					pricedOffer("mid", 600),
					pricedOffer("worst", 610),
					pricedOffer("best", 590),
				}, nil
			},
		}

		e := New(src, &mock.Provider{})

		offers, err := e.FetchOffers(
			context.Background(),
			OfferQuery{Fiat: "XOF", Side: types.SideBUY},
		)

		require.NoError(t, err)
		assert.Equal(t, []string{"best", "mid", "worst"}, offerIDs(offers))
	})

	t.Run("adjustment drives the ranking", func(t *testing.T) {
		t.Parallel()

		src := &mockSource{
			OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
				benin := pricedOffer("benin", 600)
				benin.Country = "BJ"

				return []*types.Offer{
					benin,
					pricedOffer("global", 605),
				}, nil
			},
		}

		provider := &mock.Provider{
			OfferAdjustmentsFn: func(_ context.Context) ([]types.Adjustment, error) {
				return []types.Adjustment{
					{
						Target: "XOF:BJ:SELL",
						Mode:   types.ModePercent,
						Value:  decimal.NewFromInt(2),
						Active: true,
					},
				}, nil
			},
		}

		e := New(src, provider)

		offers, err := e.FetchOffers(
			context.Background(),
			OfferQuery{Fiat: "XOF", Side: types.SideSELL},
		)

		require.NoError(t, err)

		// 600 * 1.02 = 612 outranks the unadjusted 605
		assert.Equal(t, []string{"benin", "global"}, offerIDs(offers))

		require.NotNil(t, offers[0].AdjustedPrice)
		assert.True(t, offers[0].AdjustedPrice.Equal(decimal.NewFromInt(612)))

		require.NotNil(t, offers[1].AdjustedPrice)
		assert.True(t, offers[1].AdjustedPrice.Equal(decimal.NewFromInt(605)))
	})

	t.Run("liquidity bound filters before ranking", func(t *testing.T) {
		t.Parallel()

		src := &mockSource{
			OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
				thin := pricedOffer("thin", 650)
				thin.MaxFiat = decimal.NewFromInt(100)

				return []*types.Offer{
					thin,
					pricedOffer("deep", 600),
				}, nil
			},
		}

		provider := &mock.Provider{
			LiquidityBoundFn: func(_ context.Context, _ types.Side) (*types.LiquidityBound, error) {
				return &types.LiquidityBound{
					Side:         types.SideSELL,
					Min:          decimal.NewFromInt(3000),
					AmountInFiat: true,
				}, nil
			},
		}

		e := New(src, provider)

		offers, err := e.FetchOffers(
			context.Background(),
			OfferQuery{Fiat: "XOF", Side: types.SideSELL},
		)

		require.NoError(t, err)
		assert.Equal(t, []string{"deep"}, offerIDs(offers))
	})
}

func TestEngine_FetchBest(t *testing.T) {
	t.Parallel()

	newEngine := func(count int) *Engine {
		src := &mockSource{
			OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
				offers := make([]*types.Offer, 0, count)
				for i := 0; i < count; i++ {
					offers = append(offers, pricedOffer("offer", 600))
				}

				return offers, nil
			},
		}

		return New(src, &mock.Provider{})
	}

	testTable := []struct {
		name     string
		offers   int
		limit    int
		expected int
	}{
		{
			name:     "default limit",
			offers:   10,
			limit:    0,
			expected: 3,
		},
		{
			name:     "explicit limit",
			offers:   10,
			limit:    5,
			expected: 5,
		},
		{
			name:     "limit clamped to max",
			offers:   100,
			limit:    1000,
			expected: 50,
		},
		{
			name:     "fewer offers than limit",
			offers:   2,
			limit:    5,
			expected: 2,
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			offers, err := newEngine(testCase.offers).FetchBest(
				context.Background(),
				OfferQuery{Fiat: "XOF", Side: types.SideSELL},
				testCase.limit,
			)

			require.NoError(t, err)
			assert.Len(t, offers, testCase.expected)
		})
	}
}

func TestEngine_Page(t *testing.T) {
	t.Parallel()

	offers := make([]*types.Offer, 0, 45)
	for i := 0; i < 45; i++ {
		offers = append(offers, pricedOffer("offer", 600))
	}

	testTable := []struct {
		name     string
		page     int
		pageSize int
		expected int
	}{
		{
			name:     "first page defaults",
			page:     0,
			pageSize: 0,
			expected: 20,
		},
		{
			name:     "last partial page",
			page:     3,
			pageSize: 20,
			expected: 5,
		},
		{
			name:     "page past the end",
			page:     10,
			pageSize: 20,
			expected: 0,
		},
		{
			name:     "page size clamped",
			page:     1,
			pageSize: 1000,
			expected: 45,
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Len(
				t,
				Page(offers, testCase.page, testCase.pageSize),
				testCase.expected,
			)
		})
	}
}

func TestEngine_FetchOffers_SharedSource(t *testing.T) {
	t.Parallel()

	// The source hands out the same backing slice on every call,
	// the way a TTL cache or snapshot store does
	shared := []*types.Offer{
		pricedOffer("low", 600),
		pricedOffer("high", 610),
	}

	src := &mockSource{
		OffersFn: func(_ context.Context, _ OfferQuery) ([]*types.Offer, error) {
			return shared, nil
		},
	}

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

	e := New(src, provider)
	query := OfferQuery{Fiat: "XOF", Side: types.SideSELL}

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 25; j++ {
				offers, err := e.FetchOffers(context.Background(), query)

				assert.NoError(t, err)
				assert.Equal(t, []string{"high", "low"}, offerIDs(offers))
			}
		}()
	}

	wg.Wait()

	// The shared backing state was never written: original order
	// intact, no adjusted prices
	assert.Equal(t, []string{"low", "high"}, offerIDs(shared))
	assert.Nil(t, shared[0].AdjustedPrice)
	assert.Nil(t, shared[1].AdjustedPrice)
}
