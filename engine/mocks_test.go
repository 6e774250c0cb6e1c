package engine

import (
	"context"

	"github.com/sig-0/p2prates/market/types"
)

type offersDelegate func(context.Context, OfferQuery) ([]*types.Offer, error)

type mockSource struct {
	OffersFn offersDelegate
}

func (m *mockSource) Offers(
	ctx context.Context,
	query OfferQuery,
) ([]*types.Offer, error) {
	if m.OffersFn != nil {
		return m.OffersFn(ctx, query)
	}

	return nil, nil
}
