package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runReconstruct(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("reconstruct start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("data_fetcher", cfg.DataFetcher),
		zap.Int("pools", len(a.targets)),
		zap.Uint64("block", cfg.Block),
		zap.Uint32("min_tick_spacings", cfg.MinTickSpacings),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", a.store != nil),
	)

	if err := a.upsertPools(ctx); err != nil {
		return err
	}

	report, err := a.runner.RunOnce(ctx, a.targets, cfg.Block)
	if err != nil {
		return err
	}
	for _, failure := range report.Errors {
		logger.Warn("pool skipped", zap.String("pool_id", failure.PoolID), zap.String("name", failure.Name), zap.String("error", failure.Error))
	}
	return nil
}
