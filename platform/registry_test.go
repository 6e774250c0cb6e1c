package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/market/types"
)

type (
	codeDelegate        func() string
	fetchOffersDelegate func(context.Context, OfferRequest) ([]*types.Offer, error)
)

// mockPlatform is defined locally to avoid an import cycle with the
// platform mock package
type mockPlatform struct {
	CodeFn        codeDelegate
	FetchOffersFn fetchOffersDelegate
}

func (m *mockPlatform) Code() string {
	if m.CodeFn != nil {
		return m.CodeFn()
	}

	return ""
}

func (m *mockPlatform) Name() string {
	return "Mock"
}

func (m *mockPlatform) FetchOffers(
	ctx context.Context,
	req OfferRequest,
) ([]*types.Offer, error) {
	if m.FetchOffersFn != nil {
		return m.FetchOffersFn(ctx, req)
	}

	return nil, nil
}

func (m *mockPlatform) IsAvailable(_ context.Context) bool {
	return true
}

func staticPlatform(code string, offers []*types.Offer, err error) *mockPlatform {
	return &mockPlatform{
		CodeFn: func() string {
			return code
		},
		FetchOffersFn: func(_ context.Context, _ OfferRequest) ([]*types.Offer, error) {
			return offers, err
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("invalid platform", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()

		assert.ErrorIs(t, r.Register(nil), errInvalidPlatform)
		assert.ErrorIs(t, r.Register(&mockPlatform{}), errInvalidPlatform)
	})

	t.Run("duplicate platform", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()

		require.NoError(t, r.Register(staticPlatform("binance", nil, nil)))
		assert.ErrorIs(
			t,
			r.Register(staticPlatform("binance", nil, nil)),
			errDuplicatePlatform,
		)
	})

	t.Run("registration order is preserved", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()

		require.NoError(t, r.Register(staticPlatform("binance", nil, nil)))
		require.NoError(t, r.Register(staticPlatform("okx", nil, nil)))

		all := r.All()

		require.Len(t, all, 2)
		assert.Equal(t, "binance", all[0].Code())
		assert.Equal(t, "okx", all[1].Code())
	})
}

func TestRegistry_Default(t *testing.T) {
	t.Parallel()

	t.Run("no platforms", func(t *testing.T) {
		t.Parallel()

		_, err := NewRegistry().Default(context.Background())

		assert.ErrorIs(t, err, ErrNoPlatforms)
	})

	t.Run("resolver picks the configured platform", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(
			WithDefaultResolver(func(_ context.Context) (string, error) {
				return "okx", nil
			}),
		)

		require.NoError(t, r.Register(staticPlatform("binance", nil, nil)))
		require.NoError(t, r.Register(staticPlatform("okx", nil, nil)))

		p, err := r.Default(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "okx", p.Code())
	})

	t.Run("unknown configured code falls back to first", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(
			WithDefaultResolver(func(_ context.Context) (string, error) {
				return "missing", nil
			}),
		)

		require.NoError(t, r.Register(staticPlatform("binance", nil, nil)))

		p, err := r.Default(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "binance", p.Code())
	})
}

func TestRegistry_FetchWithFallback(t *testing.T) {
	t.Parallel()

	req := OfferRequest{
		Asset: DefaultAsset,
		Fiat:  "XOF",
		Side:  types.SideSELL,
	}

	t.Run("explicit platform, no fallback", func(t *testing.T) {
		t.Parallel()

		var okxCalled bool

		r := NewRegistry()

		require.NoError(t, r.Register(
			staticPlatform("binance", nil, errors.New("down")),
		))
		require.NoError(t, r.Register(&mockPlatform{
			CodeFn: func() string { return "okx" },
			FetchOffersFn: func(_ context.Context, _ OfferRequest) ([]*types.Offer, error) {
				okxCalled = true

				return []*types.Offer{{}}, nil
			},
		}))

		_, err := r.FetchWithFallback(context.Background(), "binance", req)

		assert.ErrorIs(t, err, ErrAllPlatformsFailed)
		assert.False(t, okxCalled)
	})

	t.Run("unknown explicit platform", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()

		require.NoError(t, r.Register(staticPlatform("binance", nil, nil)))

		_, err := r.FetchWithFallback(context.Background(), "missing", req)

		assert.ErrorIs(t, err, ErrPlatformNotFound)
	})

	t.Run("default fails over in registration order", func(t *testing.T) {
		t.Parallel()

		expected := []*types.Offer{{ID: "from-okx"}}

		r := NewRegistry()

		require.NoError(t, r.Register(
			staticPlatform("binance", nil, errors.New("down")),
		))
		require.NoError(t, r.Register(staticPlatform("okx", expected, nil)))

		offers, err := r.FetchWithFallback(context.Background(), "", req)

		require.NoError(t, err)
		assert.Equal(t, expected, offers)
	})

	t.Run("empty result counts as success", func(t *testing.T) {
		t.Parallel()

		var okxCalled bool

		r := NewRegistry()

		require.NoError(t, r.Register(
			staticPlatform("binance", []*types.Offer{}, nil),
		))
		require.NoError(t, r.Register(&mockPlatform{
			CodeFn: func() string { return "okx" },
			FetchOffersFn: func(_ context.Context, _ OfferRequest) ([]*types.Offer, error) {
				okxCalled = true

				return nil, nil
			},
		}))

		offers, err := r.FetchWithFallback(context.Background(), "", req)

		require.NoError(t, err)
		assert.Empty(t, offers)
		assert.False(t, okxCalled)
	})

	t.Run("all platforms failed", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()

		require.NoError(t, r.Register(
			staticPlatform("binance", nil, errors.New("down")),
		))
		require.NoError(t, r.Register(
			staticPlatform("okx", nil, errors.New("down too")),
		))

		_, err := r.FetchWithFallback(context.Background(), "", req)

		assert.ErrorIs(t, err, ErrAllPlatformsFailed)
	})
}
