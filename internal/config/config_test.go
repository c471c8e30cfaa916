package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" || cfg.Solver.Timeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chemsolve.yaml")
	doc := `
addr: ":9090"
log:
  level: debug
  encoding: json
solver:
  timeout: 5s
  maxIterations: 50
rateLimit:
  rps: 5
  burst: 10
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHEMSOLVE_ADDR", ":7070")
	t.Setenv("CHEMSOLVE_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("env should override file addr, got %q", cfg.Addr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Encoding != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Solver.Timeout != 5*time.Second || cfg.Solver.MaxIterations != 50 {
		t.Errorf("unexpected solver config %+v", cfg.Solver)
	}
	if cfg.Solver.VerifyTolerance != 1e-6 {
		t.Errorf("unset keys keep their defaults, got %g", cfg.Solver.VerifyTolerance)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RPS != 5 || cfg.RateLimit.Burst != 10 {
		t.Errorf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by env")
	}
}

func TestLoad_BadEnv(t *testing.T) {
	for key, val := range map[string]string{
		"CHEMSOLVE_SOLVE_TIMEOUT":      "soon",
		"CHEMSOLVE_MAX_ITERATIONS":     "many",
		"CHEMSOLVE_RATE_LIMIT_ENABLED": "sometimes",
		"CHEMSOLVE_VERIFY_TOLERANCE":   "tight",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("want error naming %s, got %v", key, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("solver: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Addr = ""
	cfg.Solver.Timeout = 0
	cfg.RateLimit.RPS = 0
	cfg.MaxBodyBytes = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, want := range []string{"addr", "timeout", "rate limit", "maxBodyBytes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_DisabledRateLimitIgnoresRPS(t *testing.T) {
	cfg := Default()
	cfg.RateLimit = RateLimit{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
