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
//  2. file (YAML) if VIGIL_CONFIG is set
//  3. env (prefix VIGIL_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("VIGIL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: VIGIL_ADDR, VIGIL_SAMPLE_INTERVAL_MS, ...
	// Map env keys like VIGIL_SAMPLE_INTERVAL_MS -> sample_interval_ms
	// (flat keys; underscores preserved to match koanf tags).
	envProvider := env.Provider("VIGIL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "vigil_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.InferenceURL == "":
		return fmt.Errorf("%w: inference_url must not be empty", ErrInvalidConfig)
	case c.SampleIntervalMS <= 0:
		return fmt.Errorf("%w: sample_interval_ms must be positive", ErrInvalidConfig)
	case c.NoFaceStreak <= 0 || c.MultipleFaceStreak <= 0 ||
		c.PoseUnavailableStreak <= 0 || c.LookingAwayStreak <= 0:
		return fmt.Errorf("%w: streak thresholds must be positive", ErrInvalidConfig)
	case c.YawThresholdDeg <= 0 || c.PitchThresholdDeg <= 0:
		return fmt.Errorf("%w: pose thresholds must be positive", ErrInvalidConfig)
	case c.EventCooldownMS < 0:
		return fmt.Errorf("%w: event_cooldown_ms must not be negative", ErrInvalidConfig)
	case c.EscalationThreshold <= 0:
		return fmt.Errorf("%w: escalation_threshold must be positive", ErrInvalidConfig)
	case c.UpdateRetryLimit <= 0:
		return fmt.Errorf("%w: update_retry_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
