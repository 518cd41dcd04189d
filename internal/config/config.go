package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	DataFetcher     string
	PoolsFile       string
	Pools           []string
	MinTickSpacings uint32
	Block           uint64
	Out             string
	PGDSN           string
	BatchSize       int
	Concurrency     int
	MaxRetries      int
	RetryBackoff    time.Duration
	Interval        time.Duration
	Checkpoint      string
	StateName       string
	MetricsAddr     string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
// A .env file in the working directory is loaded into the environment first
// when present.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EKUBO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data-fetcher", "0x91cB8a896cAF5e60b1F7C4818730543f849B408c")
	v.SetDefault("min-tick-spacings", uint32(2))
	v.SetDefault("out", "./data/snapshots.jsonl")
	v.SetDefault("batch-size", 20)
	v.SetDefault("concurrency", 4)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("interval", 12*time.Second)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("state-name", "ekubo-window")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		DataFetcher:     v.GetString("data-fetcher"),
		PoolsFile:       v.GetString("pools-file"),
		Pools:           getStringSlice(v, "pool"),
		MinTickSpacings: v.GetUint32("min-tick-spacings"),
		Block:           v.GetUint64("block"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		BatchSize:       v.GetInt("batch-size"),
		Concurrency:     v.GetInt("concurrency"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Interval:        v.GetDuration("interval"),
		Checkpoint:      v.GetString("checkpoint"),
		StateName:       v.GetString("state-name"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings shared by every command.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.PoolsFile == "" && len(c.Pools) == 0 {
		return fmt.Errorf("pools-file or pool is required")
	}
	if c.MinTickSpacings == 0 {
		return fmt.Errorf("min-tick-spacings must be > 0")
	}
	if c.Out == "" && c.PGDSN == "" {
		return fmt.Errorf("out or pg-dsn is required")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
