package chemsolve

import (
	"math"
	"math/big"
	"math/cmplx"
	"sort"
	"strconv"
)

// ============================================================
// Poly: dense polynomial with exact coefficients
// ============================================================

// Poly holds coefficients by ascending degree: p[i] multiplies x^i.
type Poly []*big.Rat

const maxPolyDegree = 64

func polyConst(r *big.Rat) Poly { return Poly{new(big.Rat).Set(r)} }
func polyX() Poly               { return Poly{new(big.Rat), big.NewRat(1, 1)} }

func (p Poly) trim() Poly {
	n := len(p)
	for n > 1 && p[n-1].Sign() == 0 {
		n--
	}
	return p[:n]
}

// Degree returns the degree of p; the zero polynomial has degree 0.
func (p Poly) Degree() int { return len(p.trim()) - 1 }

func (p Poly) IsZero() bool {
	for _, c := range p {
		if c.Sign() != 0 {
			return false
		}
	}
	return true
}

func (p Poly) coeff(i int) *big.Rat {
	if i < len(p) {
		return p[i]
	}
	return new(big.Rat)
}

func polyAdd(a, b Poly, sign int) Poly {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Poly, n)
	for i := range out {
		bi := new(big.Rat).Set(b.coeff(i))
		if sign < 0 {
			bi.Neg(bi)
		}
		out[i] = new(big.Rat).Add(a.coeff(i), bi)
	}
	return out.trim()
}

func polyMul(a, b Poly) Poly {
	out := make(Poly, len(a)+len(b)-1)
	for i := range out {
		out[i] = new(big.Rat)
	}
	t := new(big.Rat)
	for i, ai := range a {
		if ai.Sign() == 0 {
			continue
		}
		for j, bj := range b {
			out[i+j].Add(out[i+j], t.Mul(ai, bj))
		}
	}
	return out.trim()
}

func polyScale(a Poly, r *big.Rat) Poly {
	out := make(Poly, len(a))
	for i, c := range a {
		out[i] = new(big.Rat).Mul(c, r)
	}
	return out.trim()
}

func (p Poly) equal(q Poly) bool {
	p, q = p.trim(), q.trim()
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i].Cmp(q[i]) != 0 {
			return false
		}
	}
	return true
}

// polyDivMod divides a by b exactly. b must not be the zero polynomial.
func polyDivMod(a, b Poly) (q, r Poly) {
	b = b.trim()
	r = polyAdd(a, Poly{new(big.Rat)}, 1)
	db := b.Degree()
	if r.Degree() < db {
		return Poly{new(big.Rat)}, r
	}
	q = make(Poly, r.Degree()-db+1)
	for i := range q {
		q[i] = new(big.Rat)
	}
	lead := b[db]
	for !r.IsZero() && r.Degree() >= db {
		shift := r.Degree() - db
		c := new(big.Rat).Quo(r[len(r)-1], lead)
		q[shift].Set(c)
		term := make(Poly, shift+1)
		for i := range term {
			term[i] = new(big.Rat)
		}
		term[shift].Set(c)
		r = polyAdd(r, polyMul(term, b), -1)
	}
	return q.trim(), r
}

// polyGCD returns the monic greatest common divisor of a and b.
func polyGCD(a, b Poly) Poly {
	a, b = a.trim(), b.trim()
	for !b.IsZero() {
		_, r := polyDivMod(a, b)
		a, b = b, r
	}
	if a.IsZero() {
		return polyConst(big.NewRat(1, 1))
	}
	return polyScale(a, new(big.Rat).Inv(a[len(a)-1]))
}

// EvalRat evaluates p exactly at x.
func (p Poly) EvalRat(x *big.Rat) *big.Rat {
	acc := new(big.Rat)
	for i := len(p) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		acc.Add(acc, p[i])
	}
	return acc
}

// Floats returns float64 coefficients by ascending degree.
func (p Poly) Floats() []float64 {
	p = p.trim()
	out := make([]float64, len(p))
	for i, c := range p {
		out[i], _ = c.Float64()
	}
	return out
}

func hornerReal(c []float64, x float64) (v, dv float64) {
	for i := len(c) - 1; i >= 0; i-- {
		dv = dv*x + v
		v = v*x + c[i]
	}
	return v, dv
}

func hornerComplex(c []complex128, z complex128) complex128 {
	var acc complex128
	for i := len(c) - 1; i >= 0; i-- {
		acc = acc*z + c[i]
	}
	return acc
}

// Expr renders p as an expression in varName.
func (p Poly) Expr(varName string) Expr {
	p = p.trim()
	var terms []Expr
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Sign() == 0 {
			continue
		}
		var mono Expr
		switch i {
		case 0:
			mono = N(1)
		case 1:
			mono = S(varName)
		default:
			mono = PowOf(S(varName), N(int64(i)))
		}
		terms = append(terms, MulOf(NRat(p[i]), mono))
	}
	if len(terms) == 0 {
		return N(0)
	}
	return AddOf(terms...)
}

// ============================================================
// Rational functions
// ============================================================

// rational is num/den over exact coefficients. exact is false once a
// constant sub-expression had to be approximated numerically (pi, log(2)).
type rational struct {
	num, den Poly
	exact    bool
}

func ratConst(r *big.Rat, exact bool) rational {
	return rational{num: polyConst(r), den: polyConst(big.NewRat(1, 1)), exact: exact}
}

// toRational rewrites e as a ratio of polynomials in varName. ok is false
// when e is not a rational function of varName (functions or non-integer
// powers of the variable, or degree beyond maxPolyDegree).
func toRational(e Expr, varName string) (r rational, ok bool, err error) {
	if !Contains(e, varName) {
		s := e.Simplify()
		if n, isNum := s.(*Num); isNum {
			return ratConst(n.val, true), true, nil
		}
		v, err := s.Eval(nil)
		if err != nil {
			return rational{}, false, err
		}
		return ratConst(NFloat(v).val, false), true, nil
	}
	switch v := e.(type) {
	case *Sym:
		return rational{num: polyX(), den: polyConst(big.NewRat(1, 1)), exact: true}, true, nil
	case *Unary:
		if v.op != OpNeg {
			return rational{}, false, nil
		}
		a, ok, err := toRational(v.arg, varName)
		if !ok || err != nil {
			return rational{}, ok, err
		}
		a.num = polyScale(a.num, big.NewRat(-1, 1))
		return a, true, nil
	case *Binary:
		if v.op == OpPow {
			return powRational(v, varName)
		}
		a, ok, err := toRational(v.left, varName)
		if !ok || err != nil {
			return rational{}, ok, err
		}
		b, ok, err := toRational(v.right, varName)
		if !ok || err != nil {
			return rational{}, ok, err
		}
		exact := a.exact && b.exact
		var out rational
		switch v.op {
		case OpAdd, OpSub:
			sign := 1
			if v.op == OpSub {
				sign = -1
			}
			if a.den.equal(b.den) {
				out = rational{num: polyAdd(a.num, b.num, sign), den: a.den}
			} else {
				out = rational{
					num: polyAdd(polyMul(a.num, b.den), polyMul(b.num, a.den), sign),
					den: polyMul(a.den, b.den),
				}
			}
		case OpMul:
			out = rational{num: polyMul(a.num, b.num), den: polyMul(a.den, b.den)}
		case OpDiv:
			if b.num.IsZero() {
				return rational{}, false, &DomainError{Op: "division by zero", Arg: math.NaN()}
			}
			out = rational{num: polyMul(a.num, b.den), den: polyMul(a.den, b.num)}
		}
		out.exact = exact
		if len(out.num) > maxPolyDegree+1 || len(out.den) > maxPolyDegree+1 {
			return rational{}, false, nil
		}
		return out.normalize(), true, nil
	}
	return rational{}, false, nil
}

func powRational(v *Binary, varName string) (rational, bool, error) {
	if Contains(v.right, varName) {
		return rational{}, false, nil
	}
	en, isNum := v.right.Simplify().(*Num)
	if !isNum || !en.IsInteger() || !en.val.Num().IsInt64() {
		return rational{}, false, nil
	}
	k := en.val.Num().Int64()
	if k > maxPolyDegree || k < -maxPolyDegree {
		return rational{}, false, nil
	}
	base, ok, err := toRational(v.left, varName)
	if !ok || err != nil {
		return rational{}, ok, err
	}
	if k < 0 {
		if base.num.IsZero() {
			return rational{}, false, &DomainError{Op: "zero to a negative power", Arg: float64(k)}
		}
		base.num, base.den = base.den, base.num
		k = -k
	}
	out := rational{num: polyConst(big.NewRat(1, 1)), den: polyConst(big.NewRat(1, 1)), exact: base.exact}
	for i := int64(0); i < k; i++ {
		out.num = polyMul(out.num, base.num)
		out.den = polyMul(out.den, base.den)
		if len(out.num) > maxPolyDegree+1 || len(out.den) > maxPolyDegree+1 {
			return rational{}, false, nil
		}
	}
	return out.normalize(), true, nil
}

// normalize makes a constant denominator equal to one.
func (r rational) normalize() rational {
	if r.den.Degree() == 0 && r.den[0].Sign() != 0 && r.den[0].Cmp(big.NewRat(1, 1)) != 0 {
		inv := new(big.Rat).Inv(r.den[0])
		return rational{num: polyScale(r.num, inv), den: polyConst(big.NewRat(1, 1)), exact: r.exact}
	}
	return r
}

// ============================================================
// Root finding
// ============================================================

const (
	dkMaxIter   = 2000
	dkTolerance = 1e-14
	imagEpsilon = 1e-9
)

// polyRoots returns all complex roots of the float polynomial c (ascending
// degree) using Durand–Kerner iteration followed by Newton polishing.
func polyRoots(c []float64) []complex128 {
	n := len(c) - 1
	for n > 0 && c[n] == 0 {
		n--
	}
	if n < 1 {
		return nil
	}
	lead := c[n]
	monic := make([]complex128, n+1)
	radius := 0.0
	for i := 0; i <= n; i++ {
		monic[i] = complex(c[i]/lead, 0)
		if i < n {
			radius = math.Max(radius, math.Abs(c[i]/lead))
		}
	}
	radius = 1 + radius

	// Start on a circle enclosing every root, off the real axis.
	z := make([]complex128, n)
	for k := range z {
		z[k] = cmplx.Rect(radius, 2*math.Pi*float64(k)/float64(n)+0.4)
	}
	for iter := 0; iter < dkMaxIter; iter++ {
		maxDelta := 0.0
		for k := range z {
			denom := complex(1, 0)
			for j := range z {
				if j != k {
					denom *= z[k] - z[j]
				}
			}
			if denom == 0 {
				denom = complex(dkTolerance, dkTolerance)
			}
			delta := hornerComplex(monic, z[k]) / denom
			z[k] -= delta
			maxDelta = math.Max(maxDelta, cmplx.Abs(delta)/(1+cmplx.Abs(z[k])))
		}
		if maxDelta < dkTolerance {
			break
		}
	}

	deriv := make([]complex128, n)
	for i := 1; i <= n; i++ {
		deriv[i-1] = monic[i] * complex(float64(i), 0)
	}
	for k := range z {
		for iter := 0; iter < 8; iter++ {
			d := hornerComplex(deriv, z[k])
			if d == 0 {
				break
			}
			step := hornerComplex(monic, z[k]) / d
			z[k] -= step
			if cmplx.Abs(step) <= dkTolerance*(1+cmplx.Abs(z[k])) {
				break
			}
		}
		switch scale := 1 + cmplx.Abs(z[k]); {
		case math.Abs(imag(z[k])) <= imagEpsilon*scale:
			z[k] = complex(polishReal(c[:n+1], real(z[k])), 0)
		case math.Abs(imag(z[k])) <= 1e-6*scale:
			// Repeated real roots converge slowly and keep a small
			// imaginary part; accept the real part if it is a root.
			if xr := polishReal(c[:n+1], real(z[k])); realRootResidualOK(c[:n+1], xr) {
				z[k] = complex(xr, 0)
			}
		}
	}
	sort.Slice(z, func(i, j int) bool {
		if real(z[i]) != real(z[j]) {
			return real(z[i]) < real(z[j])
		}
		return imag(z[i]) < imag(z[j])
	})
	return z
}

func realRootResidualOK(c []float64, x float64) bool {
	v, _ := hornerReal(c, x)
	scale, pow := 0.0, 1.0
	for _, ci := range c {
		scale += math.Abs(ci) * pow
		pow *= math.Abs(x)
	}
	return math.Abs(v) <= 1e-10*scale
}

func polishReal(c []float64, x float64) float64 {
	for iter := 0; iter < 20; iter++ {
		v, dv := hornerReal(c, x)
		if dv == 0 || v == 0 {
			return x
		}
		next := x - v/dv
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return x
		}
		if math.Abs(next-x) <= 1e-16*(1+math.Abs(x)) {
			return next
		}
		// Keep the step only if it improves the residual.
		nv, _ := hornerReal(c, next)
		if math.Abs(nv) > math.Abs(v) {
			return x
		}
		x = next
	}
	return x
}

// exactRational reports a short rational equal to x that is an exact root
// of p, if one exists.
func exactRational(p Poly, x float64) (*big.Rat, bool) {
	for _, digits := range []int{6, 9, 12, 15} {
		r, ok := new(big.Rat).SetString(formatSig(x, digits))
		if !ok {
			continue
		}
		if p.EvalRat(r).Sign() == 0 {
			return r, true
		}
	}
	return nil, false
}

func formatSig(x float64, digits int) string {
	return strconv.FormatFloat(x, 'g', digits, 64)
}
