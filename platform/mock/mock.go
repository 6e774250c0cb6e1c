package mock

import (
	"context"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
)

type (
	CodeDelegate        func() string
	NameDelegate        func() string
	FetchOffersDelegate func(context.Context, platform.OfferRequest) ([]*types.Offer, error)
	IsAvailableDelegate func(context.Context) bool
)

type Platform struct {
	CodeFn        CodeDelegate
	NameFn        NameDelegate
	FetchOffersFn FetchOffersDelegate
	IsAvailableFn IsAvailableDelegate
}

func (m *Platform) Code() string {
	if m.CodeFn != nil {
		return m.CodeFn()
	}

	return ""
}

func (m *Platform) Name() string {
	if m.NameFn != nil {
		return m.NameFn()
	}

	return ""
}

func (m *Platform) FetchOffers(
	ctx context.Context,
	req platform.OfferRequest,
) ([]*types.Offer, error) {
	if m.FetchOffersFn != nil {
		return m.FetchOffersFn(ctx, req)
	}

	return nil, nil
}

func (m *Platform) IsAvailable(ctx context.Context) bool {
	if m.IsAvailableFn != nil {
		return m.IsAvailableFn(ctx)
	}

	return false
}
