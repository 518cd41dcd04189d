package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tickWindow/internal/ekubo"
	"tickWindow/internal/metrics"
	"tickWindow/internal/model"
	"tickWindow/internal/pools"
	"tickWindow/internal/storage"
	"tickWindow/internal/window"
)

// QuoteSource returns partial pool state for a set of pools.
type QuoteSource interface {
	QuoteData(ctx context.Context, keys []ekubo.PoolKey, minTickSpacings uint32, blockNumber *big.Int) ([]ekubo.QuoteData, error)
}

// BlockSource provides chain and block information.
type BlockSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// TokenSource provides token metadata used for display prices.
type TokenSource interface {
	Meta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// Config holds runtime settings for the runner.
type Config struct {
	MinTickSpacings uint32
	// BatchSize is the number of pools per getQuoteData call.
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	Interval     time.Duration
	StateStore   StateStore
}

// Report summarizes one reconstruction run.
type Report struct {
	BlockNumber uint64
	Snapshots   []model.Snapshot
	Errors      []model.ReconstructError
}

// Runner fetches pool windows, reconstructs them and writes them to storage.
type Runner struct {
	cfg     Config
	quotes  QuoteSource
	blocks  BlockSource
	tokens  TokenSource
	storage storage.Storage
	metrics *metrics.Metrics
	logger  *zap.Logger

	chainID uint64
}

// NewRunner builds a Runner. tokens and m may be nil.
func NewRunner(cfg Config, quotes QuoteSource, blocks BlockSource, tokens TokenSource, sink storage.Storage, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.MinTickSpacings == 0 {
		cfg.MinTickSpacings = ekubo.DefaultMinTickSpacings
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{
		cfg:     cfg,
		quotes:  quotes,
		blocks:  blocks,
		tokens:  tokens,
		storage: sink,
		metrics: m,
		logger:  logger,
	}
}

type outcome struct {
	snapshot *model.Snapshot
	failure  *model.ReconstructError
}

// RunOnce reconstructs every target at blockNumber, or at the latest block
// when blockNumber is zero. Pools with inconsistent data are recorded as
// errors; fetch failures abort the run.
func (r *Runner) RunOnce(ctx context.Context, targets []pools.Target, blockNumber uint64) (Report, error) {
	if r.quotes == nil {
		return Report{}, fmt.Errorf("quote source is nil")
	}
	if r.blocks == nil {
		return Report{}, fmt.Errorf("block source is nil")
	}
	if r.storage == nil {
		return Report{}, fmt.Errorf("storage is nil")
	}
	if len(targets) == 0 {
		return Report{}, fmt.Errorf("at least one pool is required")
	}

	timer := prometheus.NewTimer(r.metrics.RunDuration.WithLabelValues())
	defer timer.ObserveDuration()

	chainID, err := r.loadChainID(ctx)
	if err != nil {
		return Report{}, err
	}

	if blockNumber == 0 {
		blockNumber, err = r.latestBlockWithRetry(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("get latest block: %w", err)
		}
	}
	ts, err := r.blockTimestampWithRetry(ctx, blockNumber)
	if err != nil {
		return Report{}, fmt.Errorf("block timestamp %d: %w", blockNumber, err)
	}

	batches, err := splitBatches(len(targets), r.cfg.BatchSize)
	if err != nil {
		return Report{}, err
	}

	outcomes := make([]outcome, len(targets))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.Concurrency)
	for _, batch := range batches {
		batch := batch
		group.Go(func() error {
			return r.processBatch(groupCtx, chainID, blockNumber, ts, targets[batch.From:batch.To], outcomes[batch.From:batch.To])
		})
	}
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{BlockNumber: blockNumber}
	for _, o := range outcomes {
		if o.snapshot != nil {
			report.Snapshots = append(report.Snapshots, *o.snapshot)
		}
		if o.failure != nil {
			report.Errors = append(report.Errors, *o.failure)
		}
	}

	if err := r.storage.PutSnapshots(ctx, report.Snapshots); err != nil {
		return report, fmt.Errorf("store snapshots: %w", err)
	}
	if err := r.storage.PutErrors(ctx, report.Errors); err != nil {
		return report, fmt.Errorf("store errors: %w", err)
	}
	r.metrics.LastBlock.Set(float64(blockNumber))

	r.logger.Info("run complete",
		zap.Uint64("block_number", blockNumber),
		zap.Int("snapshots", len(report.Snapshots)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// Watch runs RunOnce on every interval tick and skips blocks that were already
// reconstructed according to the state store.
func (r *Runner) Watch(ctx context.Context, targets []pools.Target) error {
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.watchStep(ctx, targets); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) watchStep(ctx context.Context, targets []pools.Target) error {
	latest, err := r.latestBlockWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	if r.cfg.StateStore != nil {
		last, ok, err := r.cfg.StateStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if ok && latest <= last {
			r.logger.Debug("block not advanced", zap.Uint64("latest", latest), zap.Uint64("last_processed", last))
			return nil
		}
	}

	if _, err := r.RunOnce(ctx, targets, latest); err != nil {
		return err
	}

	if r.cfg.StateStore != nil {
		if err := r.cfg.StateStore.Save(ctx, latest); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

func (r *Runner) processBatch(ctx context.Context, chainID, blockNumber, ts uint64, targets []pools.Target, out []outcome) error {
	keys := make([]ekubo.PoolKey, len(targets))
	for i, t := range targets {
		keys[i] = t.Key
	}

	quotes, err := r.quoteDataWithRetry(ctx, keys, blockNumber)
	if err != nil {
		return fmt.Errorf("fetch quote data: %w", err)
	}

	reconstructedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i, target := range targets {
		pool := PoolModel(chainID, target)
		snap, err := r.reconstructPool(ctx, pool, blockNumber, ts, quotes[i])
		if err != nil {
			if !errors.Is(err, window.ErrDataIntegrity) && !errors.Is(err, window.ErrInvalidWindow) {
				return err
			}
			r.metrics.Reconstructions.WithLabelValues(target.Label(), outcomeLabel(err)).Inc()
			r.logger.Warn("reconstruct failed",
				zap.String("pool", target.Label()),
				zap.String("pool_id", pool.PoolID),
				zap.Uint64("block_number", blockNumber),
				zap.Error(err),
			)
			out[i] = outcome{failure: &model.ReconstructError{
				ChainID:     chainID,
				PoolID:      pool.PoolID,
				Name:        pool.Name,
				BlockNumber: blockNumber,
				Error:       err.Error(),
			}}
			continue
		}

		snap.ReconstructedAt = reconstructedAt
		r.metrics.Reconstructions.WithLabelValues(target.Label(), metrics.OutcomeOK).Inc()
		r.metrics.WindowTicks.WithLabelValues(target.Label()).Observe(float64(len(snap.Ticks)))
		out[i] = outcome{snapshot: &snap}
	}
	return nil
}

func (r *Runner) reconstructPool(ctx context.Context, pool model.Pool, blockNumber, ts uint64, q ekubo.QuoteData) (model.Snapshot, error) {
	sqrtRatio, err := decodeSqrtRatio(q.SqrtRatio)
	if err != nil {
		return model.Snapshot{}, err
	}

	res, err := Window(q)
	if err != nil {
		return model.Snapshot{}, err
	}
	r.metrics.BoundaryActions.WithLabelValues("min", string(res.MinAction)).Inc()
	r.metrics.BoundaryActions.WithLabelValues("max", string(res.MaxAction)).Inc()

	snap := BuildSnapshot(pool, blockNumber, ts, q, sqrtRatio, res)
	if price, ok := r.displayPrice(ctx, pool, sqrtRatio); ok {
		snap.Price = price
	}
	return snap, nil
}

func (r *Runner) displayPrice(ctx context.Context, pool model.Pool, sqrtRatio *uint256.Int) (string, bool) {
	if r.tokens == nil {
		return "", false
	}
	meta0, err := r.tokens.Meta(ctx, common.HexToAddress(pool.Token0))
	if err != nil {
		r.logger.Debug("token metadata unavailable", zap.String("token", pool.Token0), zap.Error(err))
		return "", false
	}
	meta1, err := r.tokens.Meta(ctx, common.HexToAddress(pool.Token1))
	if err != nil {
		r.logger.Debug("token metadata unavailable", zap.String("token", pool.Token1), zap.Error(err))
		return "", false
	}
	return ekubo.SqrtRatioToPrice(sqrtRatio, meta0.Decimals, meta1.Decimals).String(), true
}

func (r *Runner) loadChainID(ctx context.Context) (uint64, error) {
	if r.chainID != 0 {
		return r.chainID, nil
	}
	var id *big.Int
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		id, err = r.blocks.GetChainID(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id does not fit in uint64: %s", id)
	}
	r.chainID = id.Uint64()
	return r.chainID, nil
}

func (r *Runner) quoteDataWithRetry(ctx context.Context, keys []ekubo.PoolKey, blockNumber uint64) ([]ekubo.QuoteData, error) {
	timer := prometheus.NewTimer(r.metrics.FetchDuration.WithLabelValues())
	defer timer.ObserveDuration()

	var quotes []ekubo.QuoteData
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		quotes, err = r.quotes.QuoteData(ctx, keys, r.cfg.MinTickSpacings, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			r.logger.Warn("quote data fetch failed", zap.Error(err), zap.Int("pools", len(keys)), zap.Uint64("block_number", blockNumber))
			return err
		}
		if len(quotes) != len(keys) {
			return fmt.Errorf("got %d quote results for %d pools", len(quotes), len(keys))
		}
		return nil
	})
	return quotes, err
}

func (r *Runner) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.blocks.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.blocks.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func outcomeLabel(err error) string {
	if errors.Is(err, window.ErrInvalidWindow) {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeIntegrity
}
