package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickWindow/internal/chain"
	"tickWindow/internal/config"
	"tickWindow/internal/ekubo"
	"tickWindow/internal/metrics"
	"tickWindow/internal/model"
	"tickWindow/internal/pools"
	"tickWindow/internal/reconstruct"
	"tickWindow/internal/storage"
	"tickWindow/internal/storage/postgres"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	store   *postgres.Store
	targets []pools.Target
	runner  *reconstruct.Runner
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func loadTargets(cfg config.Config) ([]pools.Target, error) {
	var fromFile []pools.Target
	if cfg.PoolsFile != "" {
		var err error
		fromFile, err = pools.Load(cfg.PoolsFile)
		if err != nil {
			return nil, fmt.Errorf("load pools file: %w", err)
		}
	}
	fromFlags, err := pools.FromFlags(cfg.Pools)
	if err != nil {
		return nil, err
	}
	targets := pools.Merge(fromFile, fromFlags)
	if len(targets) == 0 {
		return nil, fmt.Errorf("no pools configured")
	}
	return targets, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*app, error) {
	if !common.IsHexAddress(cfg.DataFetcher) {
		return nil, fmt.Errorf("invalid data fetcher address: %s", cfg.DataFetcher)
	}

	targets, err := loadTargets(cfg)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, chain: chainClient, targets: targets}

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
		if err := store.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		sinks = append(sinks, store)
	}

	var state reconstruct.StateStore = &reconstruct.FileStateStore{Path: cfg.Checkpoint}
	if a.store != nil {
		state = &reconstruct.DBStateStore{Store: a.store, Name: cfg.StateName}
	}

	fetcher := ekubo.NewFetcher(chainClient, common.HexToAddress(cfg.DataFetcher))
	tokens := ekubo.NewTokenRegistry(chainClient, logger)

	a.runner = reconstruct.NewRunner(reconstruct.Config{
		MinTickSpacings: cfg.MinTickSpacings,
		BatchSize:       cfg.BatchSize,
		Concurrency:     cfg.Concurrency,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
		Interval:        cfg.Interval,
		StateStore:      state,
	}, fetcher, chainClient, tokens, sinks, metrics.New(reg), logger)

	return a, nil
}

// upsertPools records pool metadata up front so snapshots can join on it.
func (a *app) upsertPools(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	chainID, err := a.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	models := make([]model.Pool, 0, len(a.targets))
	for _, target := range a.targets {
		models = append(models, reconstruct.PoolModel(chainID.Uint64(), target))
	}
	if err := a.store.UpsertPools(ctx, models); err != nil {
		return fmt.Errorf("upsert pools: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
}
