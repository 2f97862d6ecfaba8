package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix     = "SCOREKEEP_"
	EnvConfigPath = EnvPrefix + "CONFIG"
	EnvFilePath   = EnvPrefix + "ENV_FILE"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if SCOREKEEP_CONFIG is set
//  3. dotenv file if SCOREKEEP_ENV_FILE is set
//  4. env (prefix SCOREKEEP_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if path := os.Getenv(EnvFilePath); path != "" {
		if err := loadDotenv(k, path); err != nil {
			return nil, err
		}
	}

	// SCOREKEEP_STORAGE_DRIVER -> storage_driver. Underscores are kept so the
	// flat keys match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file paths themselves are not Config fields.
	k.Delete("config")
	k.Delete("env_file")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv layers the SCOREKEEP_ entries of a .env file without touching
// the process environment.
func loadDotenv(k *koanf.Koanf, path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	for name, val := range vars {
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if err := k.Set(envKey(name), val); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}
	return nil
}

func envKey(name string) string {
	return strings.TrimPrefix(strings.ToLower(name), strings.ToLower(EnvPrefix))
}
