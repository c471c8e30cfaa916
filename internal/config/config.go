// Package config loads the chemsolve server configuration from an optional
// YAML file and CHEMSOLVE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr         string        `yaml:"addr"`
	Log          LogConfig     `yaml:"log"`
	Solver       SolverConfig  `yaml:"solver"`
	RateLimit    RateLimit     `yaml:"rateLimit"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
	Metrics      MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	Output   string `yaml:"output"`
}

type SolverConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxIterations   int           `yaml:"maxIterations"`
	VerifyTolerance float64       `yaml:"verifyTolerance"`
}

type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() Config {
	return Config{
		Addr: ":8080",
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			Output:   "stdout",
		},
		Solver: SolverConfig{
			Timeout:         2 * time.Second,
			MaxIterations:   200,
			VerifyTolerance: 1e-6,
		},
		RateLimit: RateLimit{
			Enabled: true,
			RPS:     30,
			Burst:   60,
		},
		MaxBodyBytes: 1 << 20,
		Metrics:      MetricsConfig{Enabled: true},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ApplyEnvOverrides(cfg *Config) error {
	var err error
	cfg.Addr = envString("CHEMSOLVE_ADDR", cfg.Addr)
	cfg.Log.Level = envString("CHEMSOLVE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Encoding = envString("CHEMSOLVE_LOG_ENCODING", cfg.Log.Encoding)
	cfg.Log.Output = envString("CHEMSOLVE_LOG_OUTPUT", cfg.Log.Output)
	if cfg.Solver.Timeout, err = envDuration("CHEMSOLVE_SOLVE_TIMEOUT", cfg.Solver.Timeout); err != nil {
		return err
	}
	if cfg.Solver.MaxIterations, err = envInt("CHEMSOLVE_MAX_ITERATIONS", cfg.Solver.MaxIterations); err != nil {
		return err
	}
	if cfg.Solver.VerifyTolerance, err = envFloat("CHEMSOLVE_VERIFY_TOLERANCE", cfg.Solver.VerifyTolerance); err != nil {
		return err
	}
	if cfg.RateLimit.Enabled, err = envBool("CHEMSOLVE_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if cfg.RateLimit.RPS, err = envFloat("CHEMSOLVE_RATE_LIMIT_RPS", cfg.RateLimit.RPS); err != nil {
		return err
	}
	if cfg.RateLimit.Burst, err = envInt("CHEMSOLVE_RATE_LIMIT_BURST", cfg.RateLimit.Burst); err != nil {
		return err
	}
	maxBody, err := envInt("CHEMSOLVE_MAX_BODY_BYTES", int(cfg.MaxBodyBytes))
	if err != nil {
		return err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.Metrics.Enabled, err = envBool("CHEMSOLVE_METRICS_ENABLED", cfg.Metrics.Enabled); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.Solver.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("solver timeout must be positive, got %s", c.Solver.Timeout))
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver maxIterations must be positive, got %d", c.Solver.MaxIterations))
	}
	if !(c.Solver.VerifyTolerance > 0) {
		errs = append(errs, fmt.Errorf("solver verifyTolerance must be positive, got %g", c.Solver.VerifyTolerance))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, fmt.Errorf("rate limit needs positive rps and burst, got %g/%d", c.RateLimit.RPS, c.RateLimit.Burst))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("maxBodyBytes must be positive, got %d", c.MaxBodyBytes))
	}
	return errors.Join(errs...)
}
