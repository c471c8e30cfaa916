package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/njchilds90/chemsolve"
)

type evaluateRequest struct {
	Expression string `json:"expression" binding:"required"`
}

type solveRequest struct {
	LHS     string `json:"lhs" binding:"required"`
	RHS     string `json:"rhs"`
	Unknown string `json:"unknown"`
}

func (s *Server) evaluateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req evaluateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		start := time.Now()
		res, err := chemsolve.EvaluateExpression(req.Expression)
		s.observe(c, "evaluate", err, start)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) solveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req solveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		if req.RHS == "" {
			req.RHS = "0"
		}
		if req.Unknown == "" {
			req.Unknown = "x"
		}
		ctx, cancel := s.solveContext(c)
		defer cancel()

		start := time.Now()
		res, err := chemsolve.SolveEquation(ctx, req.LHS, req.RHS, req.Unknown, s.solveOptions()...)
		s.observe(c, "solve", err, start)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) equilibriumHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var spec chemsolve.ReactionSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			var rerr *chemsolve.ReactionError
			if errors.As(err, &rerr) {
				s.observe(c, "equilibrium", err, time.Now())
				abortWithError(c, err)
				return
			}
			abortBadRequest(c, err)
			return
		}
		ctx, cancel := s.solveContext(c)
		defer cancel()

		start := time.Now()
		res, err := chemsolve.SolveEquilibrium(ctx, spec, s.solveOptions()...)
		s.observe(c, "equilibrium", err, start)
		if err != nil {
			abortWithError(c, err)
			return
		}
		s.recordWarnings(res)
		c.JSON(http.StatusOK, res)
	}
}

// toolHandler always answers 200; failures travel in the error and kind
// fields of the tool response.
func (s *Server) toolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chemsolve.ToolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		ctx, cancel := s.solveContext(c)
		defer cancel()

		start := time.Now()
		resp := chemsolve.HandleToolCall(ctx, req, s.solveOptions()...)
		kind := "ok"
		if resp.Kind != chemsolve.KindNone {
			kind = string(resp.Kind)
			c.Set(ctxErrorKind, kind)
		}
		s.metrics.ObserveRequest("tool", kind, time.Since(start))
		if res, ok := resp.Result.(*chemsolve.EquilibriumResult); ok {
			s.recordWarnings(res)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) recordWarnings(res *chemsolve.EquilibriumResult) {
	for _, w := range res.Warnings {
		s.metrics.Warning(string(w.Kind))
	}
}

func schemaHandler() gin.HandlerFunc {
	spec := []byte(chemsolve.ToolSpec())
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", spec)
	}
}

func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
