package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

// Load reads an optional .env file, then binds Config from the environment
// using the env and env-default tags, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// variables already in the environment win over the file
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg.AllowOrigins = trimList(cfg.AllowOrigins)
	cfg.AllowMethods = trimList(cfg.AllowMethods)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
