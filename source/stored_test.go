package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/platform/mock"
	"github.com/sig-0/p2prates/snapshot/memory"
)

func staticPlatform(code string) *mock.Platform {
	return &mock.Platform{
		CodeFn: func() string {
			return code
		},
	}
}

func TestStored_Offers(t *testing.T) {
	t.Parallel()

	query := engine.OfferQuery{
		Fiat:    "XOF",
		Side:    types.SideSELL,
		Country: "BJ",
	}

	t.Run("reads the exact snapshot key", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()

		require.NoError(t, store.SaveSnapshot(context.Background(), &types.Snapshot{
			Key: types.SnapshotKey{
				Platform: "binance",
				Fiat:     "XOF",
				Side:     types.SideSELL,
				Country:  "BJ",
			},
			Offers:    []*types.Offer{{ID: "a"}},
			FetchedAt: time.Now().UTC(),
		}))

		src := NewStored(newRegistry(t, staticPlatform("binance")), store)

		offers, err := src.Offers(context.Background(), query)

		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, "a", offers[0].ID)
	})

	t.Run("missing snapshot yields empty, not error", func(t *testing.T) {
		t.Parallel()

		src := NewStored(newRegistry(t, staticPlatform("binance")), memory.NewStore())

		offers, err := src.Offers(context.Background(), query)

		require.NoError(t, err)
		assert.Empty(t, offers)
	})

	t.Run("no fallback to the global segment", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()

		// Only the global segment was refreshed
		require.NoError(t, store.SaveSnapshot(context.Background(), &types.Snapshot{
			Key: types.SnapshotKey{
				Platform: "binance",
				Fiat:     "XOF",
				Side:     types.SideSELL,
			},
			Offers:    []*types.Offer{{ID: "global"}},
			FetchedAt: time.Now().UTC(),
		}))

		src := NewStored(newRegistry(t, staticPlatform("binance")), store)

		offers, err := src.Offers(context.Background(), query)

		require.NoError(t, err)
		assert.Empty(t, offers)
	})

	t.Run("explicit platform targets its snapshot", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()

		require.NoError(t, store.SaveSnapshot(context.Background(), &types.Snapshot{
			Key: types.SnapshotKey{
				Platform: "okx",
				Fiat:     "XOF",
				Side:     types.SideSELL,
				Country:  "BJ",
			},
			Offers:    []*types.Offer{{ID: "from-okx"}},
			FetchedAt: time.Now().UTC(),
		}))

		registry := newRegistry(t, staticPlatform("binance"), staticPlatform("okx"))
		src := NewStored(registry, store)

		scoped := query
		scoped.Platform = "okx"

		offers, err := src.Offers(context.Background(), scoped)

		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, "from-okx", offers[0].ID)
	})

	t.Run("no platforms registered", func(t *testing.T) {
		t.Parallel()

		src := NewStored(platform.NewRegistry(), memory.NewStore())

		_, err := src.Offers(context.Background(), query)

		assert.ErrorIs(t, err, platform.ErrNoPlatforms)
	})
}
