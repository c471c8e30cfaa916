package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/njchilds90/chemsolve"
)

const (
	codeBadRequest  = "bad_request"
	codeRateLimited = "rate_limited"
	codeTooLarge    = "body_too_large"
)

// statusFor maps an engine error kind to an HTTP status. Input problems are
// 400, well-formed problems without an answer are 422.
func statusFor(kind chemsolve.ErrorKind) int {
	switch kind {
	case chemsolve.KindSyntax, chemsolve.KindDomain, chemsolve.KindInvalidReaction:
		return http.StatusBadRequest
	case chemsolve.KindUnsolvableIdentity, chemsolve.KindUnsolvableContradiction, chemsolve.KindUnsolvable,
		chemsolve.KindNoSolutionFound, chemsolve.KindNoPhysicalRoot:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	kind := chemsolve.KindOf(err)
	msg := err.Error()
	if kind == chemsolve.KindInternal {
		msg = "internal error"
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"error": msg, "code": kind})
}

// abortBadRequest rejects a body that could not be bound. A body cut off by
// bodyLimit is reported as too large.
func abortBadRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.Set(ctxErrorKind, codeTooLarge)
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "code": codeTooLarge})
		return
	}
	c.Set(ctxErrorKind, codeBadRequest)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "code": codeBadRequest})
}
