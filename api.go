package chemsolve

import (
	"context"
)

// ============================================================
// Text-level API
// ============================================================

// Evaluation is the value of a constant expression. Exact is the folded
// exact form ("1/3", "exp(2)"); Value is its float64 approximation.
type Evaluation struct {
	Value float64 `json:"value"`
	Exact string  `json:"exact,omitempty"`
	LaTeX string  `json:"latex,omitempty"`
}

// EvaluateExpression parses and evaluates a constant expression. Any
// variable is a syntax error.
func EvaluateExpression(text string) (*Evaluation, error) {
	e, err := ParseIn(text, "")
	if err != nil {
		return nil, err
	}
	v, err := e.Eval(nil)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Value: v, Exact: e.String(), LaTeX: e.LaTeX()}, nil
}

// EquationResult is the outcome of SolveEquation. Roots holds the verified
// real roots in ascending order; ExactRoots, when present, is parallel to
// Roots and falls back to the decimal value for roots without a closed form.
type EquationResult struct {
	Equation   string    `json:"equation"`
	Category   Category  `json:"category"`
	Roots      []float64 `json:"roots"`
	ExactRoots []string  `json:"exact_roots,omitempty"`
	Complex    []Root    `json:"complex,omitempty"`
	Undefined  []Root    `json:"undefined,omitempty"`
	Rejected   []Root    `json:"rejected,omitempty"`
}

// SolveEquation parses lhs and rhs over unknown and solves lhs = rhs.
func SolveEquation(ctx context.Context, lhs, rhs, unknown string, opts ...Option) (*EquationResult, error) {
	if unknown == "" {
		return nil, &SyntaxError{Msg: "no unknown given"}
	}
	l, err := ParseIn(lhs, unknown)
	if err != nil {
		return nil, err
	}
	r, err := ParseIn(rhs, unknown)
	if err != nil {
		return nil, err
	}
	eq, err := NewEquation(l, r, unknown)
	if err != nil {
		return nil, err
	}
	sol, err := Solve(ctx, eq, opts...)
	if err != nil {
		return nil, err
	}
	return newEquationResult(sol), nil
}

func newEquationResult(sol *Solution) *EquationResult {
	res := &EquationResult{
		Equation: sol.Equation.String(),
		Category: sol.Category,
		Roots:    []float64{},
	}
	anyExact := false
	var exact []string
	for _, r := range sol.Roots {
		switch {
		case r.Kind == RootComplex:
			res.Complex = append(res.Complex, r)
		case r.Kind == RootUndefined:
			res.Undefined = append(res.Undefined, r)
		case !r.Verified:
			res.Rejected = append(res.Rejected, r)
		default:
			res.Roots = append(res.Roots, r.Value)
			exact = append(exact, r.String())
			anyExact = anyExact || r.Exact != ""
		}
	}
	if anyExact {
		res.ExactRoots = exact
	}
	return res
}
