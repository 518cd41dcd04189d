package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ekubo-window",
		Short:        "Ekubo tick window reconstruction",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	reconstructCmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Reconstruct pool tick windows once",
		RunE:  runReconstruct,
	}
	addCommonFlags(reconstructCmd.Flags())
	reconstructCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	root.AddCommand(reconstructCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconstruct pool tick windows on every new block",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("interval", 12*time.Second, "poll interval")
	watchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (ignored when pg-dsn is set)")
	watchCmd.Flags().String("state-name", "ekubo-window", "indexer_state row name when pg-dsn is set")
	watchCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "Ethereum RPC URL")
	flags.String("data-fetcher", "0x91cB8a896cAF5e60b1F7C4818730543f849B408c", "DataFetcher contract address")
	flags.String("pools-file", "", "YAML pools file")
	flags.StringSlice("pool", nil, "pool keys as token0:token1:config (comma-separated)")
	flags.Uint32("min-tick-spacings", 2, "tick spacings fetched on each side of the active tick")
	flags.String("out", "./data/snapshots.jsonl", "output JSONL path, empty to disable")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Int("batch-size", 20, "pools per getQuoteData call")
	flags.Int("concurrency", 4, "concurrent getQuoteData calls")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
