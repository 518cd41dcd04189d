package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickWindow/internal/model"
)

// Schema creates the tables written by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id      BIGINT  NOT NULL,
	pool_id       TEXT    NOT NULL,
	name          TEXT    NOT NULL DEFAULT '',
	token0        TEXT    NOT NULL,
	token1        TEXT    NOT NULL,
	extension     TEXT    NOT NULL,
	fee           NUMERIC NOT NULL,
	tick_spacing  BIGINT  NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_id)
);

CREATE TABLE IF NOT EXISTS pool_snapshots (
	chain_id          BIGINT  NOT NULL,
	pool_id           TEXT    NOT NULL,
	block_number      BIGINT  NOT NULL,
	block_ts          BIGINT  NOT NULL,
	active_tick       INTEGER NOT NULL,
	active_tick_index INTEGER,
	sqrt_ratio        NUMERIC NOT NULL,
	liquidity         NUMERIC NOT NULL,
	price             TEXT    NOT NULL DEFAULT '',
	min_tick          INTEGER NOT NULL,
	max_tick          INTEGER NOT NULL,
	fetched_ticks     INTEGER NOT NULL,
	reconstructed_at  TEXT    NOT NULL,
	PRIMARY KEY (chain_id, pool_id, block_number)
);

CREATE TABLE IF NOT EXISTS pool_snapshot_ticks (
	chain_id        BIGINT  NOT NULL,
	pool_id         TEXT    NOT NULL,
	block_number    BIGINT  NOT NULL,
	position        INTEGER NOT NULL,
	tick            INTEGER NOT NULL,
	liquidity_delta NUMERIC NOT NULL,
	boundary        BOOLEAN NOT NULL,
	PRIMARY KEY (chain_id, pool_id, block_number, position)
);

CREATE TABLE IF NOT EXISTS pool_reconstruct_errors (
	chain_id     BIGINT NOT NULL,
	pool_id      TEXT   NOT NULL,
	block_number BIGINT NOT NULL,
	error        TEXT   NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for reconstructed windows.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema applies Schema. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		queuePool(batch, pool)
	}
	return sendBatch(ctx, s.pool, batch)
}

// PutSnapshots writes each snapshot and replaces its ticks in one transaction.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		queuePool(batch, snap.Pool)
		queueSnapshot(batch, snap)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return sendBatch(ctx, tx, batch)
	})
}

// PutErrors appends reconstruction failures.
func (s *Store) PutErrors(ctx context.Context, records []model.ReconstructError) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO pool_reconstruct_errors (chain_id, pool_id, block_number, error, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, int64(rec.ChainID), rec.PoolID, int64(rec.BlockNumber), rec.Error)
	}
	return sendBatch(ctx, s.pool, batch)
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load state: %w", err)
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, sender batchSender, batch *pgx.Batch) error {
	br := sender.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}

func queuePool(batch *pgx.Batch, pool model.Pool) {
	batch.Queue(`
		INSERT INTO pools (
			chain_id, pool_id, name, token0, token1, extension, fee, tick_spacing, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, now(), now())
		ON CONFLICT (chain_id, pool_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			extension = EXCLUDED.extension,
			fee = EXCLUDED.fee,
			tick_spacing = EXCLUDED.tick_spacing,
			updated_at = now()
	`,
		int64(pool.ChainID),
		pool.PoolID,
		pool.Name,
		pool.Token0,
		pool.Token1,
		pool.Extension,
		fmt.Sprintf("%d", pool.Fee),
		int64(pool.TickSpacing),
	)
}

func queueSnapshot(batch *pgx.Batch, snap model.Snapshot) {
	var activeIndex *int32
	if snap.ActiveTickIndex != nil {
		v := int32(*snap.ActiveTickIndex)
		activeIndex = &v
	}

	batch.Queue(`
		INSERT INTO pool_snapshots (
			chain_id, pool_id, block_number, block_ts, active_tick, active_tick_index,
			sqrt_ratio, liquidity, price, min_tick, max_tick, fetched_ticks, reconstructed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9,$10,$11,$12,$13)
		ON CONFLICT (chain_id, pool_id, block_number)
		DO UPDATE SET
			block_ts = EXCLUDED.block_ts,
			active_tick = EXCLUDED.active_tick,
			active_tick_index = EXCLUDED.active_tick_index,
			sqrt_ratio = EXCLUDED.sqrt_ratio,
			liquidity = EXCLUDED.liquidity,
			price = EXCLUDED.price,
			min_tick = EXCLUDED.min_tick,
			max_tick = EXCLUDED.max_tick,
			fetched_ticks = EXCLUDED.fetched_ticks,
			reconstructed_at = EXCLUDED.reconstructed_at
	`,
		int64(snap.Pool.ChainID),
		snap.Pool.PoolID,
		int64(snap.BlockNumber),
		int64(snap.Timestamp),
		snap.ActiveTick,
		activeIndex,
		snap.SqrtRatio,
		snap.Liquidity,
		snap.Price,
		snap.MinTick,
		snap.MaxTick,
		int32(snap.FetchedTicks),
		snap.ReconstructedAt,
	)

	batch.Queue(`DELETE FROM pool_snapshot_ticks WHERE chain_id=$1 AND pool_id=$2 AND block_number=$3`,
		int64(snap.Pool.ChainID), snap.Pool.PoolID, int64(snap.BlockNumber))

	for i, tick := range snap.Ticks {
		batch.Queue(`
			INSERT INTO pool_snapshot_ticks (
				chain_id, pool_id, block_number, position, tick, liquidity_delta, boundary
			) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7)
		`,
			int64(snap.Pool.ChainID),
			snap.Pool.PoolID,
			int64(snap.BlockNumber),
			int32(i),
			tick.Index,
			tick.LiquidityDelta,
			tick.Boundary,
		)
	}
}
