package mock

import (
	"context"

	"github.com/sig-0/p2prates/market/types"
)

type (
	SaveSnapshotDelegate        func(context.Context, *types.Snapshot) error
	SnapshotDelegate            func(context.Context, types.SnapshotKey) (*types.Snapshot, error)
	ReplaceBestRatesDelegate    func(context.Context, types.SnapshotKey, []types.BestRate) error
	BestRatesDelegate           func(context.Context, types.Currency, types.Side, string) ([]types.BestRate, error)
	SaveRateObservationDelegate func(context.Context, *types.RateObservation) error
)

type Store struct {
	SaveSnapshotFn        SaveSnapshotDelegate
	SnapshotFn            SnapshotDelegate
	ReplaceBestRatesFn    ReplaceBestRatesDelegate
	BestRatesFn           BestRatesDelegate
	SaveRateObservationFn SaveRateObservationDelegate
}

func (m *Store) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	if m.SaveSnapshotFn != nil {
		return m.SaveSnapshotFn(ctx, snapshot)
	}

	return nil
}

func (m *Store) Snapshot(
	ctx context.Context,
	key types.SnapshotKey,
) (*types.Snapshot, error) {
	if m.SnapshotFn != nil {
		return m.SnapshotFn(ctx, key)
	}

	return nil, nil
}

func (m *Store) ReplaceBestRates(
	ctx context.Context,
	key types.SnapshotKey,
	rates []types.BestRate,
) error {
	if m.ReplaceBestRatesFn != nil {
		return m.ReplaceBestRatesFn(ctx, key, rates)
	}

	return nil
}

func (m *Store) BestRates(
	ctx context.Context,
	fiat types.Currency,
	side types.Side,
	country string,
) ([]types.BestRate, error) {
	if m.BestRatesFn != nil {
		return m.BestRatesFn(ctx, fiat, side, country)
	}

	return nil, nil
}

func (m *Store) SaveRateObservation(
	ctx context.Context,
	obs *types.RateObservation,
) error {
	if m.SaveRateObservationFn != nil {
		return m.SaveRateObservationFn(ctx, obs)
	}

	return nil
}
