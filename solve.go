package chemsolve

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"
)

// ============================================================
// Equation
// ============================================================

// Equation is lhs = rhs to be solved for Unknown.
type Equation struct {
	LHS, RHS Expr
	Unknown  string
}

// NewEquation validates that no variable other than unknown appears. An
// equation where unknown does not occur at all is accepted; Solve reports
// it as an identity or a contradiction.
func NewEquation(lhs, rhs Expr, unknown string) (*Equation, error) {
	if unknown == "" {
		return nil, &SyntaxError{Msg: "no unknown given"}
	}
	for _, side := range []Expr{lhs, rhs} {
		for name := range FreeSymbols(side) {
			if name != unknown {
				return nil, &SyntaxError{Msg: fmt.Sprintf("equation uses %s but the unknown is %s", name, unknown)}
			}
		}
	}
	return &Equation{LHS: lhs, RHS: rhs, Unknown: unknown}, nil
}

// Eq builds an equation without validation.
func Eq(lhs, rhs Expr, unknown string) *Equation {
	return &Equation{LHS: lhs, RHS: rhs, Unknown: unknown}
}

func (e *Equation) String() string { return e.LHS.String() + " = " + e.RHS.String() }
func (e *Equation) LaTeX() string  { return e.LHS.LaTeX() + " = " + e.RHS.LaTeX() }

// Difference returns lhs - rhs.
func (e *Equation) Difference() Expr { return SubOf(e.LHS, e.RHS) }

// ============================================================
// Roots and solutions
// ============================================================

type RootKind string

const (
	RootReal      RootKind = "real"
	RootComplex   RootKind = "complex"
	RootUndefined RootKind = "undefined"
)

// Root is one candidate solution. Complex roots carry the imaginary part
// in Imag. Verified is set for real roots that satisfy the equation by
// back-substitution.
type Root struct {
	Value    float64  `json:"value"`
	Imag     float64  `json:"imag,omitempty"`
	Kind     RootKind `json:"kind"`
	Exact    string   `json:"exact,omitempty"`
	Residual float64  `json:"residual"`
	Verified bool     `json:"verified"`
}

func (r Root) String() string {
	switch {
	case r.Kind == RootComplex:
		return fmt.Sprintf("%g%+gi", r.Value, r.Imag)
	case r.Exact != "":
		return r.Exact
	}
	return fmt.Sprintf("%g", r.Value)
}

// Category is the structural class of lhs - rhs that selects a strategy.
type Category string

const (
	CategoryLinear         Category = "linear"
	CategoryPolynomial     Category = "polynomial"
	CategoryRational       Category = "rational"
	CategoryTranscendental Category = "transcendental"
	CategoryNumeric        Category = "numeric"
)

type Solution struct {
	Equation *Equation `json:"-"`
	Category Category  `json:"category"`
	Roots    []Root    `json:"roots"`
}

// Real returns the verified real roots in ascending order.
func (s *Solution) Real() []Root {
	var out []Root
	for _, r := range s.Roots {
		if r.Kind == RootReal && r.Verified {
			out = append(out, r)
		}
	}
	return out
}

// ByKind returns roots of the given kind.
func (s *Solution) ByKind(kind RootKind) []Root {
	var out []Root
	for _, r := range s.Roots {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// ============================================================
// Options
// ============================================================

type Options struct {
	// Tolerance is the residual below which the numeric search accepts a root.
	Tolerance float64
	// VerifyTolerance is the relative back-substitution tolerance.
	VerifyTolerance float64
	// SearchMin and SearchMax bound the numeric search.
	SearchMin, SearchMax float64
	// Samples is the number of trial points for the numeric search.
	Samples int
	// MaxIterations bounds each bisection or Newton refinement.
	MaxIterations int
}

func DefaultOptions() Options {
	return Options{
		Tolerance:       1e-12,
		VerifyTolerance: 1e-6,
		SearchMin:       -1e3,
		SearchMax:       1e3,
		Samples:         400,
		MaxIterations:   200,
	}
}

type Option func(*Options)

func WithTolerance(tol float64) Option {
	return func(o *Options) {
		if tol > 0 {
			o.Tolerance = tol
		}
	}
}

func WithVerifyTolerance(tol float64) Option {
	return func(o *Options) {
		if tol > 0 {
			o.VerifyTolerance = tol
		}
	}
}

func WithSearchRange(min, max float64) Option {
	return func(o *Options) {
		if min < max {
			o.SearchMin, o.SearchMax = min, max
		}
	}
}

func WithSamples(n int) Option {
	return func(o *Options) {
		if n >= 2 {
			o.Samples = n
		}
	}
}

func WithMaxIterations(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxIterations = n
		}
	}
}

// ============================================================
// Dispatch
// ============================================================

// kernelVar stands in for the single transcendental kernel. It cannot be
// produced by the parser.
const kernelVar = "#u"

// shape is what classification learned about lhs - rhs.
type shape struct {
	category Category
	rat      rational // linear, polynomial, rational
	kernel   *Unary   // transcendental: f(p*x + q)
	outer    rational // residual as a degree-1 polynomial in the kernel
	inner    rational // kernel argument as a degree-1 polynomial in x
}

type strategy func(ctx context.Context, eq *Equation, sh *shape, o Options) ([]Root, error)

var strategies map[Category]strategy

func init() {
	strategies = map[Category]strategy{
		CategoryLinear:         solvePolynomialShape,
		CategoryPolynomial:     solvePolynomialShape,
		CategoryRational:       solveRationalShape,
		CategoryTranscendental: solveTranscendental,
		CategoryNumeric:        solveNumeric,
	}
}

// Classify reports which strategy Solve would use. Degenerate equations
// return ErrIdentity or ErrContradiction.
func Classify(eq *Equation) (Category, error) {
	sh, err := classify(eq)
	if err != nil {
		return "", err
	}
	return sh.category, nil
}

func classify(eq *Equation) (*shape, error) {
	diff := eq.Difference()
	r, ok, err := toRational(diff, eq.Unknown)
	if err != nil {
		return nil, err
	}
	if ok {
		if r.num.Degree() == 0 {
			return nil, degenerate(eq, r.num.IsZero())
		}
		sh := &shape{rat: r}
		switch {
		case r.den.Degree() > 0:
			sh.category = CategoryRational
		case r.num.Degree() == 1:
			sh.category = CategoryLinear
		default:
			sh.category = CategoryPolynomial
		}
		return sh, nil
	}
	sh, ok, err := transcendentalShape(eq, diff)
	if err != nil {
		return nil, err
	}
	if ok {
		return sh, nil
	}
	return &shape{category: CategoryNumeric}, nil
}

func degenerate(eq *Equation, identity bool) error {
	if identity {
		return fmt.Errorf("%s: %s cancels: %w", eq, eq.Unknown, ErrIdentity)
	}
	return fmt.Errorf("%s: %s cancels: %w", eq, eq.Unknown, ErrContradiction)
}

// Solve finds the roots of eq. The category of lhs - rhs picks the
// strategy; every real root is then checked by back-substitution.
func Solve(ctx context.Context, eq *Equation, opts ...Option) (*Solution, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	sh, err := classify(eq)
	if err != nil {
		return nil, err
	}
	roots, err := strategies[sh.category](ctx, eq, sh, o)
	if err != nil {
		return nil, err
	}
	var deriv Expr
	for i := range roots {
		if roots[i].Kind != RootReal {
			continue
		}
		if sh.category != CategoryNumeric && sh.category != CategoryTranscendental && !isRational(roots[i].Exact) {
			if deriv == nil {
				deriv = Diff(eq.Difference(), eq.Unknown)
			}
			refineRoot(eq, deriv, &roots[i], o.MaxIterations)
		}
		verifyRoot(eq, &roots[i], o.VerifyTolerance)
	}
	sortRoots(roots)
	return &Solution{Equation: eq, Category: sh.category, Roots: roots}, nil
}

// verifyRoot substitutes r back into both sides. A side that cannot be
// evaluated makes the root undefined.
func verifyRoot(eq *Equation, r *Root, tol float64) {
	b := Binding{eq.Unknown: r.Value}
	l, err := eq.LHS.Eval(b)
	if err != nil {
		r.Kind = RootUndefined
		return
	}
	rv, err := eq.RHS.Eval(b)
	if err != nil {
		r.Kind = RootUndefined
		return
	}
	r.Residual = l - rv
	r.Verified = math.Abs(r.Residual) <= tol*(1+math.Abs(l)+math.Abs(rv))
}

// refineRoot takes Newton steps on lhs - rhs itself. Roots of the cleared
// polynomial lose accuracy near a pole, where the expanded coefficients
// cancel; the original expression does not. A step is kept only if it
// shrinks the residual.
func refineRoot(eq *Equation, deriv Expr, r *Root, maxIter int) {
	x := r.Value
	f, err := eq.Residual(x)
	if err != nil {
		return
	}
	for iter := 0; iter < maxIter && f != 0; iter++ {
		d, err := EvaluateAt(deriv, eq.Unknown, x)
		if err != nil || d == 0 {
			break
		}
		next := x - f/d
		fn, err := eq.Residual(next)
		if err != nil || math.IsNaN(fn) || math.Abs(fn) >= math.Abs(f) {
			break
		}
		x, f = next, fn
	}
	r.Value = x
}

func isRational(s string) bool {
	if s == "" {
		return false
	}
	_, ok := new(big.Rat).SetString(s)
	return ok
}

var kindOrder = map[RootKind]int{RootReal: 0, RootComplex: 1, RootUndefined: 2}

func sortRoots(roots []Root) {
	sort.SliceStable(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		if a.Kind != b.Kind {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.Imag < b.Imag
	})
}

// ============================================================
// Polynomial and rational strategies
// ============================================================

func solvePolynomialShape(_ context.Context, _ *Equation, sh *shape, _ Options) ([]Root, error) {
	return polyRootSet(sh.rat.num, sh.rat.exact), nil
}

// solveRationalShape cancels the factors num and den share, solves the
// reduced numerator, and reports the real zeros of the cancelled factor as
// undefined roots: the original equation divides by zero there.
func solveRationalShape(_ context.Context, _ *Equation, sh *shape, _ Options) ([]Root, error) {
	num := sh.rat.num
	common := polyGCD(num, sh.rat.den)
	var holes []Root
	if common.Degree() > 0 {
		num, _ = polyDivMod(num, common)
		for _, h := range polyRootSet(common, sh.rat.exact) {
			if h.Kind == RootReal {
				h.Kind = RootUndefined
				holes = append(holes, h)
			}
		}
	}
	var roots []Root
	if num.Degree() > 0 {
		roots = polyRootSet(num, sh.rat.exact)
	}
	for i, r := range roots {
		if r.Kind != RootReal {
			continue
		}
		for _, h := range holes {
			if sameHole(h, r) {
				roots[i].Kind = RootUndefined
			}
		}
	}
	return dedupeRoots(append(roots, holes...)), nil
}

// sameHole reports whether root r of the reduced numerator is also a zero
// of the cancelled factor, as in (x-1)^2/(x-1).
func sameHole(h, r Root) bool {
	if h.Exact != "" && r.Exact != "" {
		return h.Exact == r.Exact
	}
	return closeTo(h.Value, r.Value)
}

func polyRootSet(p Poly, exact bool) []Root {
	p = p.trim()
	switch p.Degree() {
	case 1:
		return []Root{linearRoot(p, exact)}
	case 2:
		return quadraticRoots(p, exact)
	}
	return generalRoots(p, exact)
}

func linearRoot(p Poly, exact bool) Root {
	x := new(big.Rat).Quo(new(big.Rat).Neg(p[0]), p[1])
	v, _ := x.Float64()
	r := Root{Value: v, Kind: RootReal}
	if exact {
		r.Exact = NRat(x).String()
	}
	return r
}

func quadraticRoots(p Poly, exact bool) []Root {
	a, b, c := p[2], p[1], p[0]
	disc := new(big.Rat).Mul(b, b)
	disc.Sub(disc, new(big.Rat).Mul(big.NewRat(4, 1), new(big.Rat).Mul(a, c)))
	twoA := new(big.Rat).Mul(big.NewRat(2, 1), a)
	negB := new(big.Rat).Neg(b)

	switch disc.Sign() {
	case 0:
		return []Root{linearRoot(Poly{negB, twoA}, exact)}
	case -1:
		re, _ := new(big.Rat).Quo(negB, twoA).Float64()
		d, _ := new(big.Rat).Neg(disc).Float64()
		af, _ := twoA.Float64()
		im := math.Sqrt(d) / math.Abs(af)
		return []Root{
			{Value: re, Imag: -im, Kind: RootComplex},
			{Value: re, Imag: im, Kind: RootComplex},
		}
	}

	if s, ok := ratSqrt(disc); ok {
		return []Root{
			linearRoot(Poly{new(big.Rat).Add(negB, s), twoA}, exact),
			linearRoot(Poly{new(big.Rat).Sub(negB, s), twoA}, exact),
		}
	}

	// q = -(b + sign(b) sqrt(disc))/2 avoids cancellation.
	af, _ := a.Float64()
	bf, _ := b.Float64()
	cf, _ := c.Float64()
	df, _ := disc.Float64()
	q := -0.5 * (bf + math.Copysign(math.Sqrt(df), bf))
	coeffs := p.Floats()
	x1, x2 := polishReal(coeffs, q/af), polishReal(coeffs, cf/q)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	roots := []Root{{Value: x1, Kind: RootReal}, {Value: x2, Kind: RootReal}}
	if exact {
		root := SqrtOf(NRat(disc))
		plus := DivOf(AddOf(NRat(negB), root), NRat(twoA)).String()
		minus := DivOf(SubOf(NRat(negB), root), NRat(twoA)).String()
		// Order the exact forms like the values: the minus branch is
		// smaller when 2a > 0.
		if twoA.Sign() > 0 {
			roots[0].Exact, roots[1].Exact = minus, plus
		} else {
			roots[0].Exact, roots[1].Exact = plus, minus
		}
	}
	return roots
}

func generalRoots(p Poly, exact bool) []Root {
	var roots []Root
	for _, z := range polyRoots(p.Floats()) {
		if imag(z) != 0 {
			roots = append(roots, Root{Value: real(z), Imag: imag(z), Kind: RootComplex})
			continue
		}
		r := Root{Value: real(z), Kind: RootReal}
		if exact {
			if x, ok := exactRational(p, r.Value); ok {
				r.Value, _ = x.Float64()
				r.Exact = NRat(x).String()
			}
		}
		roots = append(roots, r)
	}
	return dedupeRoots(roots)
}

func dedupeRoots(roots []Root) []Root {
	var out []Root
next:
	for _, r := range roots {
		for _, o := range out {
			if o.Kind == r.Kind && closeTo(o.Value, r.Value) && closeTo(o.Imag, r.Imag) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// closeTo compares relatively, so distinct roots of any magnitude stay
// apart. The floor only merges values that are both denormal.
func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= math.Max(1e-9*math.Max(math.Abs(a), math.Abs(b)), 1e-300)
}

// ============================================================
// Transcendental strategy
// ============================================================

// transcendentalShape recognises a residual that is linear in exactly one
// kernel f(p*x + q).
func transcendentalShape(eq *Equation, diff Expr) (*shape, bool, error) {
	var kernels []*Unary
	collectKernels(diff, eq.Unknown, &kernels)
	if len(kernels) != 1 {
		return nil, false, nil
	}
	k := kernels[0]
	replaced := replaceExpr(diff, k, S(kernelVar))
	if Contains(replaced, eq.Unknown) {
		return nil, false, nil
	}
	outer, ok, err := toRational(replaced, kernelVar)
	if err != nil || !ok || outer.den.Degree() > 0 || outer.num.Degree() > 1 {
		return nil, false, err
	}
	if outer.num.Degree() == 0 {
		return nil, false, degenerate(eq, outer.num.IsZero())
	}
	inner, ok, err := toRational(k.arg, eq.Unknown)
	if err != nil || !ok || inner.den.Degree() > 0 || inner.num.Degree() != 1 {
		return nil, false, err
	}
	return &shape{category: CategoryTranscendental, kernel: k, outer: outer, inner: inner}, true, nil
}

// collectKernels gathers the distinct outermost function applications whose
// argument depends on x.
func collectKernels(e Expr, x string, out *[]*Unary) {
	switch v := e.(type) {
	case *Unary:
		if v.op != OpNeg && Contains(v.arg, x) {
			for _, k := range *out {
				if k.Equal(v) {
					return
				}
			}
			*out = append(*out, v)
			return
		}
		collectKernels(v.arg, x, out)
	case *Binary:
		collectKernels(v.left, x, out)
		collectKernels(v.right, x, out)
	}
}

func replaceExpr(e, target, with Expr) Expr {
	if e.Equal(target) {
		return with
	}
	switch v := e.(type) {
	case *Unary:
		return unaryOf(v.op, replaceExpr(v.arg, target, with))
	case *Binary:
		return binaryOf(v.op, replaceExpr(v.left, target, with), replaceExpr(v.right, target, with))
	}
	return e
}

// kernelValue is one solution g of f(g) = u.
type kernelValue struct {
	value float64
	exact Expr
}

func solveTranscendental(_ context.Context, eq *Equation, sh *shape, _ Options) ([]Root, error) {
	u := new(big.Rat).Quo(new(big.Rat).Neg(sh.outer.num[0]), sh.outer.num[1])
	uf, _ := u.Float64()
	noReal := func() error {
		return fmt.Errorf("%s: %s(...) = %s has no real solution: %w", eq, sh.kernel.op, NRat(u), ErrNoSolutionFound)
	}

	var gs []kernelValue
	switch sh.kernel.op {
	case OpLog:
		gs = append(gs, kernelValue{math.Exp(uf), ExpOf(NRat(u))})
	case OpExp:
		if u.Sign() <= 0 {
			return nil, noReal()
		}
		gs = append(gs, kernelValue{math.Log(uf), LogOf(NRat(u))})
	case OpSqrt:
		if u.Sign() < 0 {
			return nil, noReal()
		}
		sq := new(big.Rat).Mul(u, u)
		f, _ := sq.Float64()
		gs = append(gs, kernelValue{f, NRat(sq)})
	case OpSin:
		if math.Abs(uf) > 1 {
			return nil, noReal()
		}
		a := math.Asin(uf)
		principal := inverseTrig("asin", u)
		gs = append(gs, kernelValue{a, principal}, kernelValue{math.Pi - a, SubOf(Pi, principal)})
	case OpCos:
		if math.Abs(uf) > 1 {
			return nil, noReal()
		}
		a := math.Acos(uf)
		principal := inverseTrig("acos", u)
		gs = append(gs, kernelValue{a, principal}, kernelValue{-a, NegOf(principal)})
	case OpTan:
		gs = append(gs, kernelValue{math.Atan(uf), inverseTrig("atan", u)})
	default:
		return nil, fmt.Errorf("%s: unsupported kernel %s: %w", eq, sh.kernel.op, ErrUnsolvable)
	}

	// x = (g - q)/p
	p, q := sh.inner.num[1], sh.inner.num[0]
	pf, _ := p.Float64()
	qf, _ := q.Float64()
	exact := sh.outer.exact && sh.inner.exact
	var roots []Root
	for _, g := range gs {
		r := Root{Value: (g.value - qf) / pf, Kind: RootReal}
		if exact {
			r.Exact = DivOf(shiftBy(g.exact, new(big.Rat).Neg(q)), NRat(p)).String()
		}
		roots = append(roots, r)
	}
	return dedupeRoots(roots), nil
}

// shiftBy returns g + d, written as g - |d| when d is negative.
func shiftBy(g Expr, d *big.Rat) Expr {
	if d.Sign() < 0 {
		return SubOf(g, NRat(new(big.Rat).Neg(d)))
	}
	return AddOf(g, NRat(d))
}

// inverseTrig renders name(u) for display. The result is a display-only
// symbol and cannot be evaluated.
func inverseTrig(name string, u *big.Rat) Expr {
	if u.Sign() == 0 && name != "acos" {
		return N(0)
	}
	return S(name + "(" + NRat(u).String() + ")")
}

// ============================================================
// Numeric strategy
// ============================================================

// solveNumeric scans trial points for sign changes and bisects each one,
// and runs Newton from local minima of |f| to catch touching roots. Every
// refinement is bounded by MaxIterations and ctx.
func solveNumeric(ctx context.Context, eq *Equation, _ *shape, o Options) ([]Root, error) {
	f := func(x float64) (float64, bool) {
		v, err := eq.Residual(x)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	xs := samplePoints(o)
	vals := make([]float64, len(xs))
	ok := make([]bool, len(xs))
	finite, flat := 0, true
	for i, x := range xs {
		vals[i], ok[i] = f(x)
		if ok[i] {
			finite++
			if math.Abs(vals[i]) > o.Tolerance {
				flat = false
			}
		}
	}
	if finite == 0 {
		return nil, fmt.Errorf("%s: undefined on [%g, %g]: %w", eq, o.SearchMin, o.SearchMax, ErrNoSolutionFound)
	}
	if flat {
		return nil, degenerate(eq, true)
	}

	deriv := Diff(eq.Difference(), eq.Unknown)
	var found []float64
	add := func(x float64) {
		for _, r := range found {
			if closeTo(r, x) {
				return
			}
		}
		found = append(found, x)
	}
	for i := range xs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: search interrupted: %w: %w", eq, ErrNoSolutionFound, err)
		}
		if !ok[i] {
			continue
		}
		if vals[i] == 0 {
			add(xs[i])
			continue
		}
		if i > 0 && ok[i-1] && vals[i-1] != 0 && math.Signbit(vals[i-1]) != math.Signbit(vals[i]) {
			if x, good := bisect(ctx, f, xs[i-1], xs[i], vals[i-1], vals[i], o); good {
				add(x)
			}
		}
		if i > 0 && i < len(xs)-1 && ok[i-1] && ok[i+1] &&
			math.Abs(vals[i]) <= math.Abs(vals[i-1]) && math.Abs(vals[i]) <= math.Abs(vals[i+1]) {
			if x, good := newton(ctx, f, deriv, eq.Unknown, xs[i], o); good {
				add(x)
			}
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%s: no sign change or convergence on [%g, %g]: %w", eq, o.SearchMin, o.SearchMax, ErrNoSolutionFound)
	}
	sort.Float64s(found)
	roots := make([]Root, len(found))
	for i, x := range found {
		roots[i] = Root{Value: x, Kind: RootReal}
	}
	return roots, nil
}

// samplePoints mixes a uniform grid with geometric grids toward zero on
// each side, so tiny roots such as dissociation extents are bracketed.
func samplePoints(o Options) []float64 {
	n := o.Samples
	xs := make([]float64, 0, 2*n)
	half := n / 2
	for i := 0; i <= half; i++ {
		xs = append(xs, o.SearchMin+(o.SearchMax-o.SearchMin)*float64(i)/float64(half))
	}
	quarter := n / 4
	geo := func(sign, limit float64) {
		if limit <= 0 || quarter < 2 {
			return
		}
		lo, hi := math.Log10(1e-12), math.Log10(limit)
		if hi <= lo {
			return
		}
		for i := 0; i < quarter; i++ {
			xs = append(xs, sign*math.Pow(10, lo+(hi-lo)*float64(i)/float64(quarter-1)))
		}
	}
	geo(1, o.SearchMax)
	geo(-1, -o.SearchMin)
	if o.SearchMin < 0 && o.SearchMax > 0 {
		xs = append(xs, 0)
	}
	sort.Float64s(xs)
	out := xs[:0]
	for _, x := range xs {
		if x < o.SearchMin || x > o.SearchMax || (len(out) > 0 && x == out[len(out)-1]) {
			continue
		}
		out = append(out, x)
	}
	return out
}

func bisect(ctx context.Context, f func(float64) (float64, bool), a, b, fa, fb float64, o Options) (float64, bool) {
	bound := math.Max(math.Abs(fa), math.Abs(fb))
	for iter := 0; iter < o.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return 0, false
		}
		m := a + (b-a)/2
		if m == a || m == b {
			break
		}
		fm, ok := f(m)
		if !ok {
			return 0, false
		}
		if fm == 0 {
			return m, true
		}
		if math.Signbit(fm) == math.Signbit(fa) {
			a, fa = m, fm
		} else {
			b, fb = m, fm
		}
	}
	x := a
	fx := fa
	if math.Abs(fb) < math.Abs(fa) {
		x, fx = b, fb
	}
	// A sign change across a pole shrinks the bracket without shrinking |f|.
	return x, math.Abs(fx) <= 1e-6*bound+o.Tolerance
}

func newton(ctx context.Context, f func(float64) (float64, bool), deriv Expr, varName string, x float64, o Options) (float64, bool) {
	for iter := 0; iter < o.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return 0, false
		}
		fx, ok := f(x)
		if !ok {
			return 0, false
		}
		if math.Abs(fx) <= o.Tolerance {
			return x, x >= o.SearchMin && x <= o.SearchMax
		}
		d, err := EvaluateAt(deriv, varName, x)
		if err != nil || d == 0 || math.IsNaN(d) {
			return 0, false
		}
		next := x - fx/d
		if math.IsNaN(next) || math.IsInf(next, 0) || math.Abs(next) > 10*math.Max(math.Abs(o.SearchMin), math.Abs(o.SearchMax)) {
			return 0, false
		}
		if next == x {
			break
		}
		x = next
	}
	fx, ok := f(x)
	return x, ok && math.Abs(fx) <= o.Tolerance && x >= o.SearchMin && x <= o.SearchMax
}
