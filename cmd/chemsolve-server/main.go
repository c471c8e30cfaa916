// Command chemsolve-server serves the chemsolve engine over HTTP.
//
// Usage:
//
//	go run ./cmd/chemsolve-server -config chemsolve.yaml
//
// Tool call endpoint: POST /tool
// REST endpoints:     POST /api/v1/evaluate, /api/v1/solve, /api/v1/equilibrium
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
// Metrics endpoint:   GET  /metrics
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/njchilds90/chemsolve/internal/config"
	"github.com/njchilds90/chemsolve/internal/logger"
	"github.com/njchilds90/chemsolve/internal/metrics"
	"github.com/njchilds90/chemsolve/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		OutputPath: cfg.Log.Output,
		Encoding:   cfg.Log.Encoding,
	})
	defer logger.Sync()

	if cfg.Log.Level != string(logger.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("chemsolve server starting",
		zap.String("addr", cfg.Addr),
		zap.Duration("solve_timeout", cfg.Solver.Timeout),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)
	srv := server.New(cfg, logger.Named("http"), m)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
