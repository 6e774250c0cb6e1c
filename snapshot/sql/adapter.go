package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
)

// Store is the Postgres-backed snapshot store
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Postgres snapshot store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	offers, err := json.Marshal(snapshot.Offers)
	if err != nil {
		return fmt.Errorf("unable to encode offers: %w", err)
	}

	// The key's unique constraint makes the upsert a full replace
	_, err = s.pool.Exec(
		ctx,
		`INSERT INTO offer_snapshots (platform, fiat, side, country, offers, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (platform, fiat, side, country)
		 DO UPDATE SET offers = EXCLUDED.offers, fetched_at = EXCLUDED.fetched_at`,
		snapshot.Key.Platform,
		snapshot.Key.Fiat.String(),
		snapshot.Key.Side.String(),
		snapshot.Key.Country,
		offers,
		snapshot.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("unable to save snapshot: %w", err)
	}

	return nil
}

func (s *Store) Snapshot(
	ctx context.Context,
	key types.SnapshotKey,
) (*types.Snapshot, error) {
	var (
		raw       []byte
		fetchedAt time.Time
	)

	err := s.pool.QueryRow(
		ctx,
		`SELECT offers, fetched_at FROM offer_snapshots
		 WHERE platform = $1 AND fiat = $2 AND side = $3 AND country = $4`,
		key.Platform,
		key.Fiat.String(),
		key.Side.String(),
		key.Country,
	).Scan(&raw, &fetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // valid case, never refreshed
		}

		return nil, fmt.Errorf("unable to fetch snapshot: %w", err)
	}

	var offers []*types.Offer

	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, fmt.Errorf("unable to decode offers: %w", err)
	}

	return &types.Snapshot{
		Key:       key,
		Offers:    offers,
		FetchedAt: fetchedAt.UTC(),
	}, nil
}

func (s *Store) ReplaceBestRates(
	ctx context.Context,
	key types.SnapshotKey,
	rates []types.BestRate,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	_, err = tx.Exec(
		ctx,
		`DELETE FROM best_rates
		 WHERE fiat = $1 AND side = $2 AND country = $3 AND platform = $4`,
		key.Fiat.String(),
		key.Side.String(),
		key.Country,
		key.Platform,
	)
	if err != nil {
		return fmt.Errorf("unable to clear best rates: %w", err)
	}

	for _, rate := range rates {
		_, err = tx.Exec(
			ctx,
			`INSERT INTO best_rates (fiat, side, country, platform, rank, rate, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`,
			rate.Fiat.String(),
			rate.Side.String(),
			rate.Country,
			rate.Platform,
			rate.Rank,
			rate.Rate.String(),
			rate.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("unable to insert best rate: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("unable to commit best rates: %w", err)
	}

	return nil
}

func (s *Store) BestRates(
	ctx context.Context,
	fiat types.Currency,
	side types.Side,
	country string,
) ([]types.BestRate, error) {
	order := "rate ASC"
	if side == types.SideSELL {
		order = "rate DESC"
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT fiat, side, country, platform, rank, rate::text, updated_at
		 FROM best_rates
		 WHERE fiat = $1 AND side = $2 AND country = $3
		 ORDER BY `+order,
		fiat.String(),
		side.String(),
		country,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch best rates: %w", err)
	}
	defer rows.Close()

	out := make([]types.BestRate, 0)

	for rows.Next() {
		var (
			rate    types.BestRate
			fiatRaw string
			sideRaw string
			rateRaw string
		)

		err := rows.Scan(
			&fiatRaw,
			&sideRaw,
			&rate.Country,
			&rate.Platform,
			&rate.Rank,
			&rateRaw,
			&rate.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to scan best rate: %w", err)
		}

		parsed, err := decimal.NewFromString(rateRaw)
		if err != nil {
			return nil, fmt.Errorf("unable to parse best rate: %w", err)
		}

		rate.Fiat = types.Currency(fiatRaw)
		rate.Side = types.Side(sideRaw)
		rate.Rate = parsed

		out = append(out, rate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate best rates: %w", err)
	}

	return out, nil
}

func (s *Store) SaveRateObservation(
	ctx context.Context,
	obs *types.RateObservation,
) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO rate_observations
		 (source_currency, target_currency, rate, side, platform, country, observed_at)
		 VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`,
		obs.SourceCurrency.String(),
		obs.TargetCurrency.String(),
		obs.Rate.String(),
		obs.Side.String(),
		obs.Platform,
		obs.Country,
		obs.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("unable to save rate observation: %w", err)
	}

	return nil
}
