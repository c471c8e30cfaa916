package chemsolve

import (
	"errors"
	"fmt"
	"math"
)

// Error kinds. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is instead of matching text.
var (
	ErrSyntax          = errors.New("syntax error")
	ErrDomain          = errors.New("domain error")
	ErrUnsolvable      = errors.New("unsolvable equation")
	ErrIdentity        = fmt.Errorf("%w: identity, every value is a solution", ErrUnsolvable)
	ErrContradiction   = fmt.Errorf("%w: contradiction, no value is a solution", ErrUnsolvable)
	ErrNoSolutionFound = errors.New("no solution found")
	ErrNoPhysicalRoot  = errors.New("no physical root")
	ErrInvalidReaction = errors.New("invalid reaction")
)

// SyntaxError reports malformed expression text.
type SyntaxError struct {
	Pos int // byte offset into the input
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// DomainError reports an operation that is undefined at the evaluated point.
type DomainError struct {
	Op  string
	Arg float64
}

func (e *DomainError) Error() string {
	if math.IsNaN(e.Arg) {
		return "domain error: " + e.Op
	}
	return fmt.Sprintf("domain error: %s undefined at %g", e.Op, e.Arg)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// ReactionError reports an invalid ReactionSpec.
type ReactionError struct {
	Species string
	Msg     string
}

func (e *ReactionError) Error() string {
	if e.Species == "" {
		return "invalid reaction: " + e.Msg
	}
	return fmt.Sprintf("invalid reaction: species %q: %s", e.Species, e.Msg)
}

func (e *ReactionError) Unwrap() error { return ErrInvalidReaction }

// ErrorKind is a stable machine-readable error code.
type ErrorKind string

const (
	KindNone                    ErrorKind = ""
	KindSyntax                  ErrorKind = "syntax_error"
	KindDomain                  ErrorKind = "domain_error"
	KindUnsolvableIdentity      ErrorKind = "unsolvable_identity"
	KindUnsolvableContradiction ErrorKind = "unsolvable_contradiction"
	KindUnsolvable              ErrorKind = "unsolvable_equation"
	KindNoSolutionFound         ErrorKind = "no_solution_found"
	KindNoPhysicalRoot          ErrorKind = "no_physical_root"
	KindInvalidReaction         ErrorKind = "invalid_reaction"
	KindInternal                ErrorKind = "internal"
)

// KindOf classifies err. Nil maps to KindNone; anything not produced by
// this package maps to KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrSyntax):
		return KindSyntax
	case errors.Is(err, ErrDomain):
		return KindDomain
	case errors.Is(err, ErrIdentity):
		return KindUnsolvableIdentity
	case errors.Is(err, ErrContradiction):
		return KindUnsolvableContradiction
	case errors.Is(err, ErrUnsolvable):
		return KindUnsolvable
	case errors.Is(err, ErrNoSolutionFound):
		return KindNoSolutionFound
	case errors.Is(err, ErrNoPhysicalRoot):
		return KindNoPhysicalRoot
	case errors.Is(err, ErrInvalidReaction):
		return KindInvalidReaction
	}
	return KindInternal
}

// WarningKind names a non-fatal condition attached to a returned result.
type WarningKind string

const (
	WarnAmbiguousRoot WarningKind = "ambiguous_root"
	WarnVerification  WarningKind = "verification"
)

// Warning is a non-fatal annotation. The result it is attached to is still
// the answer.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
}

func (w Warning) String() string { return string(w.Kind) + ": " + w.Message }
