package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BINGO_CONFIG is set
//  3. env (prefix BINGO_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("BINGO_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: BINGO_ADDR, BINGO_QUEUE_SIZE, ...
	// Keys map to the koanf tags on the struct, underscores preserved.
	envProvider := env.Provider("BINGO_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "bingo_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	switch {
	case cfg.Addr == "":
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.DBPath == "":
		return nil, fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case cfg.WorkerCount < 1:
		return nil, fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case cfg.ProgressRetryLimit < 1:
		return nil, fmt.Errorf("%w: progress_retry_limit must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
