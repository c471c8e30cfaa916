// Package server exposes the chemsolve engine over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/njchilds90/chemsolve"
	"github.com/njchilds90/chemsolve/internal/config"
	"github.com/njchilds90/chemsolve/internal/metrics"
	"github.com/njchilds90/chemsolve/internal/ratelimit"
)

type Server struct {
	Engine  *gin.Engine
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter
}

const (
	routeEvaluate    = "/api/v1/evaluate"
	routeSolve       = "/api/v1/solve"
	routeEquilibrium = "/api/v1/equilibrium"
	routeTool        = "/tool"

	// solveCost is the rate-limit charge of a route that runs the solver.
	solveCost = 2
)

// New wires routes and middleware. m may be nil when metrics are disabled.
func New(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		Engine:  gin.New(),
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute,
			ratelimit.WithCost(routeSolve, solveCost),
			ratelimit.WithCost(routeEquilibrium, solveCost),
			ratelimit.WithCost(routeTool, solveCost),
		)
	}

	s.Engine.Use(
		recovery(log),
		requestID(),
		accessLog(log),
	)
	s.Engine.GET("/health", healthHandler())
	if m != nil && cfg.Metrics.Enabled {
		s.Engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := s.Engine.Group("/", rateLimit(s.limiter, m), bodyLimit(cfg.MaxBodyBytes))
	api.POST(routeEvaluate, s.evaluateHandler())
	api.POST(routeSolve, s.solveHandler())
	api.POST(routeEquilibrium, s.equilibriumHandler())
	api.POST(routeTool, s.toolHandler())
	api.GET("/schema", schemaHandler())
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// solveContext bounds one engine call by the configured timeout.
func (s *Server) solveContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.Solver.Timeout)
}

func (s *Server) solveOptions() []chemsolve.Option {
	return []chemsolve.Option{
		chemsolve.WithMaxIterations(s.cfg.Solver.MaxIterations),
		chemsolve.WithVerifyTolerance(s.cfg.Solver.VerifyTolerance),
	}
}

func (s *Server) observe(c *gin.Context, op string, err error, start time.Time) {
	kind := "ok"
	if err != nil {
		kind = string(chemsolve.KindOf(err))
		c.Set(ctxErrorKind, kind)
	}
	s.metrics.ObserveRequest(op, kind, time.Since(start))
}
