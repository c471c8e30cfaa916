package chemsolve

// Binding maps variable names to values for evaluation.
type Binding map[string]float64

// Evaluate computes expr numerically. Constant expressions take a nil
// binding. The returned error wraps ErrDomain when an operation is
// undefined at the binding.
func Evaluate(expr Expr, b Binding) (float64, error) {
	return expr.Eval(b)
}

// EvaluateAt binds a single variable and evaluates expr.
func EvaluateAt(expr Expr, varName string, value float64) (float64, error) {
	return expr.Eval(Binding{varName: value})
}

// Residual returns lhs - rhs evaluated at unknown = x.
func (e *Equation) Residual(x float64) (float64, error) {
	b := Binding{e.Unknown: x}
	l, err := e.LHS.Eval(b)
	if err != nil {
		return 0, err
	}
	r, err := e.RHS.Eval(b)
	if err != nil {
		return 0, err
	}
	return l - r, nil
}
