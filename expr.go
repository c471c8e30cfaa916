// Package chemsolve is a small deterministic equation kernel for chemistry
// calculators.
//
// It parses single-unknown algebraic expressions, evaluates them, solves
// lhs = rhs for the unknown (linear, polynomial, rational, one-kernel
// transcendental, or numeric fallback), and builds and solves chemical
// equilibrium equations (Kc, Kp, Ka, Kb) from reaction stoichiometry,
// selecting and verifying the physically meaningful extent of reaction.
//
// All operations are pure functions of their inputs. Expressions are
// immutable once built and safe to share between goroutines.
package chemsolve

import (
	"fmt"
	"math"
	"math/big"
)

// ============================================================
// Core Interface
// ============================================================

// Expr is an immutable expression tree over exact literals, one free
// variable, and a fixed set of operators and functions.
type Expr interface {
	Simplify() Expr
	String() string
	LaTeX() string
	Sub(varName string, value Expr) Expr
	Diff(varName string) Expr
	Eval(b Binding) (float64, error)
	Equal(other Expr) bool
	exprType() string
	toJSON() map[string]interface{}
}

// ============================================================
// Num: exact rational literal
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		panic("chemsolve: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NFloat converts f to the shortest decimal that round-trips, so 0.1 becomes
// 1/10 rather than its binary expansion.
func NFloat(f float64) *Num {
	r, ok := new(big.Rat).SetString(fmt.Sprintf("%g", f))
	if !ok {
		r = new(big.Rat).SetFloat64(f)
	}
	return &Num{val: r}
}

// NRat copies r.
func NRat(r *big.Rat) *Num { return &Num{val: new(big.Rat).Set(r)} }

func (n *Num) Simplify() Expr                { return n }
func (n *Num) Sub(string, Expr) Expr         { return n }
func (n *Num) Diff(string) Expr              { return N(0) }
func (n *Num) Eval(Binding) (float64, error) { return finite("literal", n.Float64(), n.Float64()) }
func (n *Num) Equal(other Expr) bool         { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) exprType() string              { return "num" }
func (n *Num) Float64() float64              { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool                  { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool                   { return n.val.Cmp(big.NewRat(1, 1)) == 0 }
func (n *Num) IsInteger() bool               { return n.val.IsInt() }
func (n *Num) Rat() *big.Rat                 { return new(big.Rat).Set(n.val) }
func (n *Num) IsNegative() bool              { return n.val.Sign() < 0 }

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func (n *Num) LaTeX() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	sign := ""
	v := new(big.Rat).Set(n.val)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	return fmt.Sprintf("%s\\frac{%s}{%s}", sign, v.Num().String(), v.Denom().String())
}

func (n *Num) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "num", "value": n.String()}
}

// ============================================================
// Sym: the free variable
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym             { return &Sym{name: name} }
func (s *Sym) Simplify() Expr        { return s }
func (s *Sym) String() string        { return s.name }
func (s *Sym) LaTeX() string         { return s.name }
func (s *Sym) Name() string          { return s.name }
func (s *Sym) Equal(other Expr) bool { o, ok := other.(*Sym); return ok && s.name == o.name }
func (s *Sym) exprType() string      { return "sym" }
func (s *Sym) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "sym", "name": s.name}
}

func (s *Sym) Eval(b Binding) (float64, error) {
	v, ok := b[s.name]
	if !ok {
		return 0, &DomainError{Op: "unbound variable " + s.name, Arg: math.NaN()}
	}
	return v, nil
}

func (s *Sym) Sub(varName string, value Expr) Expr {
	if s.name == varName {
		return value
	}
	return s
}

func (s *Sym) Diff(varName string) Expr {
	if s.name == varName {
		return N(1)
	}
	return N(0)
}

// ============================================================
// Unary: negation and named functions
// ============================================================

// UnaryOp names a one-argument operation.
type UnaryOp string

const (
	OpNeg  UnaryOp = "neg"
	OpSqrt UnaryOp = "sqrt"
	OpLog  UnaryOp = "log"
	OpExp  UnaryOp = "exp"
	OpSin  UnaryOp = "sin"
	OpCos  UnaryOp = "cos"
	OpTan  UnaryOp = "tan"
)

var functionOps = map[string]UnaryOp{
	"sqrt": OpSqrt,
	"log":  OpLog,
	"ln":   OpLog,
	"exp":  OpExp,
	"sin":  OpSin,
	"cos":  OpCos,
	"tan":  OpTan,
}

type Unary struct {
	op  UnaryOp
	arg Expr
}

// unaryOf builds op(arg). arg must already be simplified, which holds for
// every tree built through the constructors.
func unaryOf(op UnaryOp, arg Expr) Expr { return reduceUnary(op, arg) }

func NegOf(arg Expr) Expr  { return unaryOf(OpNeg, arg) }
func SqrtOf(arg Expr) Expr { return unaryOf(OpSqrt, arg) }
func LogOf(arg Expr) Expr  { return unaryOf(OpLog, arg) }
func ExpOf(arg Expr) Expr  { return unaryOf(OpExp, arg) }
func SinOf(arg Expr) Expr  { return unaryOf(OpSin, arg) }
func CosOf(arg Expr) Expr  { return unaryOf(OpCos, arg) }
func TanOf(arg Expr) Expr  { return unaryOf(OpTan, arg) }

func (u *Unary) Op() UnaryOp { return u.op }
func (u *Unary) Arg() Expr   { return u.arg }

// Simplify folds negation and square roots of perfect rational squares.
// Transcendental functions of literals are kept symbolic so exact forms
// such as exp(2) survive.
func (u *Unary) Simplify() Expr { return reduceUnary(u.op, u.arg.Simplify()) }

func reduceUnary(op UnaryOp, arg Expr) Expr {
	switch op {
	case OpNeg:
		if n, ok := arg.(*Num); ok {
			return &Num{val: new(big.Rat).Neg(n.val)}
		}
		if inner, ok := arg.(*Unary); ok && inner.op == OpNeg {
			return inner.arg
		}
	case OpSqrt:
		if n, ok := arg.(*Num); ok {
			if r, exact := ratSqrt(n.val); exact {
				return &Num{val: r}
			}
		}
	case OpLog:
		if n, ok := arg.(*Num); ok && n.IsOne() {
			return N(0)
		}
		if inner, ok := arg.(*Unary); ok && inner.op == OpExp {
			return inner.arg
		}
	case OpExp:
		// exp(log(u)) is not folded: it is undefined for u <= 0.
		if n, ok := arg.(*Num); ok && n.IsZero() {
			return N(1)
		}
	case OpSin, OpTan:
		if n, ok := arg.(*Num); ok && n.IsZero() {
			return N(0)
		}
	case OpCos:
		if n, ok := arg.(*Num); ok && n.IsZero() {
			return N(1)
		}
	}
	return &Unary{op: op, arg: arg}
}

func (u *Unary) String() string {
	if u.op == OpNeg {
		s := u.arg.String()
		if needsParens(u.arg, precUnary) {
			s = "(" + s + ")"
		}
		return "-" + s
	}
	return string(u.op) + "(" + u.arg.String() + ")"
}

func (u *Unary) LaTeX() string {
	switch u.op {
	case OpNeg:
		s := u.arg.LaTeX()
		if needsParens(u.arg, precUnary) {
			s = "\\left(" + s + "\\right)"
		}
		return "-" + s
	case OpSqrt:
		return "\\sqrt{" + u.arg.LaTeX() + "}"
	case OpLog:
		return "\\ln\\left(" + u.arg.LaTeX() + "\\right)"
	}
	return "\\" + string(u.op) + "\\left(" + u.arg.LaTeX() + "\\right)"
}

func (u *Unary) Sub(varName string, value Expr) Expr {
	return unaryOf(u.op, u.arg.Sub(varName, value))
}

func (u *Unary) Diff(varName string) Expr {
	du := u.arg.Diff(varName)
	var outer Expr
	switch u.op {
	case OpNeg:
		return NegOf(du)
	case OpSqrt:
		outer = DivOf(F(1, 2), SqrtOf(u.arg))
	case OpLog:
		outer = DivOf(N(1), u.arg)
	case OpExp:
		outer = ExpOf(u.arg)
	case OpSin:
		outer = CosOf(u.arg)
	case OpCos:
		outer = NegOf(SinOf(u.arg))
	case OpTan:
		outer = AddOf(N(1), PowOf(TanOf(u.arg), N(2)))
	}
	return MulOf(outer, du)
}

func (u *Unary) Eval(b Binding) (float64, error) {
	v, err := u.arg.Eval(b)
	if err != nil {
		return 0, err
	}
	var out float64
	switch u.op {
	case OpNeg:
		return -v, nil
	case OpSqrt:
		if v < 0 {
			return 0, &DomainError{Op: "sqrt", Arg: v}
		}
		out = math.Sqrt(v)
	case OpLog:
		if v <= 0 {
			return 0, &DomainError{Op: "log", Arg: v}
		}
		out = math.Log(v)
	case OpExp:
		out = math.Exp(v)
	case OpSin:
		out = math.Sin(v)
	case OpCos:
		out = math.Cos(v)
	case OpTan:
		if math.Abs(math.Cos(v)) < 1e-15 {
			return 0, &DomainError{Op: "tan", Arg: v}
		}
		out = math.Tan(v)
	default:
		return 0, fmt.Errorf("chemsolve: unknown unary op %q", u.op)
	}
	return finite(string(u.op), v, out)
}

func (u *Unary) Equal(other Expr) bool {
	o, ok := other.(*Unary)
	return ok && u.op == o.op && u.arg.Equal(o.arg)
}

func (u *Unary) exprType() string { return "unary" }
func (u *Unary) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "unary", "op": string(u.op), "arg": u.arg.toJSON()}
}

// ============================================================
// Binary: + - * / ^
// ============================================================

// BinaryOp names a two-argument operator.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpPow BinaryOp = "^"
)

type Binary struct {
	op          BinaryOp
	left, right Expr
}

// binaryOf builds l op r from simplified operands. Only the new node is
// reduced, so chains built term by term stay linear.
func binaryOf(op BinaryOp, l, r Expr) Expr { return reduceBinary(op, l, r) }

func AddOf(terms ...Expr) Expr   { return fold(OpAdd, N(0), terms) }
func MulOf(factors ...Expr) Expr { return fold(OpMul, N(1), factors) }
func SubOf(l, r Expr) Expr       { return binaryOf(OpSub, l, r) }
func DivOf(l, r Expr) Expr       { return binaryOf(OpDiv, l, r) }
func PowOf(base, exp Expr) Expr  { return binaryOf(OpPow, base, exp) }

func fold(op BinaryOp, unit Expr, xs []Expr) Expr {
	if len(xs) == 0 {
		return unit
	}
	acc := xs[0]
	for _, x := range xs[1:] {
		acc = binaryOf(op, acc, x)
	}
	return acc
}

func (b *Binary) Op() BinaryOp { return b.op }
func (b *Binary) Left() Expr   { return b.left }
func (b *Binary) Right() Expr  { return b.right }

// Simplify folds literal operands exactly and removes neutral elements.
// Division by a literal zero and non-real literal powers are left unfolded
// so that evaluation reports them as domain errors.
func (b *Binary) Simplify() Expr {
	return reduceBinary(b.op, b.left.Simplify(), b.right.Simplify())
}

func reduceBinary(op BinaryOp, l, r Expr) Expr {
	ln, lok := l.(*Num)
	rn, rok := r.(*Num)
	if lok && rok {
		if v, ok := foldRat(op, ln.val, rn.val); ok {
			return &Num{val: v}
		}
		return &Binary{op: op, left: l, right: r}
	}
	switch op {
	case OpAdd:
		if lok && ln.IsZero() {
			return r
		}
		if rok && rn.IsZero() {
			return l
		}
	case OpSub:
		if rok && rn.IsZero() {
			return l
		}
		if lok && ln.IsZero() {
			return NegOf(r)
		}
	case OpMul:
		if (lok && ln.IsZero()) || (rok && rn.IsZero()) {
			return N(0)
		}
		if lok && ln.IsOne() {
			return r
		}
		if rok && rn.IsOne() {
			return l
		}
	case OpDiv:
		if rok && rn.IsOne() {
			return l
		}
	case OpPow:
		if rok && rn.IsZero() {
			return N(1)
		}
		if rok && rn.IsOne() {
			return l
		}
	}
	return &Binary{op: op, left: l, right: r}
}

func foldRat(op BinaryOp, a, b *big.Rat) (*big.Rat, bool) {
	switch op {
	case OpAdd:
		return new(big.Rat).Add(a, b), true
	case OpSub:
		return new(big.Rat).Sub(a, b), true
	case OpMul:
		return new(big.Rat).Mul(a, b), true
	case OpDiv:
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Rat).Quo(a, b), true
	case OpPow:
		if !b.IsInt() || !b.Num().IsInt64() {
			return nil, false
		}
		e := b.Num().Int64()
		if e > 64 || e < -64 {
			return nil, false
		}
		if a.Sign() == 0 && e < 0 {
			return nil, false
		}
		return ratPow(a, int(e)), true
	}
	return nil, false
}

const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

func precedence(e Expr) int {
	switch v := e.(type) {
	case *Binary:
		switch v.op {
		case OpAdd, OpSub:
			return precAdd
		case OpMul, OpDiv:
			return precMul
		case OpPow:
			return precPow
		}
	case *Unary:
		if v.op == OpNeg {
			return precUnary
		}
	case *Num:
		if !v.IsInteger() {
			return precMul
		}
		if v.IsNegative() {
			return precUnary
		}
	}
	return precAtom
}

func needsParens(e Expr, parent int) bool { return precedence(e) < parent }

func (b *Binary) String() string {
	p := precedence(b)
	ls, rs := b.left.String(), b.right.String()
	switch b.op {
	case OpPow:
		if precedence(b.left) <= p {
			ls = "(" + ls + ")"
		}
		if precedence(b.right) < p {
			rs = "(" + rs + ")"
		}
		return ls + "^" + rs
	default:
		if needsParens(b.left, p) {
			ls = "(" + ls + ")"
		}
		// Right operand of - and / needs parens at equal precedence.
		if needsParens(b.right, p) || ((b.op == OpSub || b.op == OpDiv) && precedence(b.right) == p) {
			rs = "(" + rs + ")"
		}
		if b.op == OpMul || b.op == OpDiv {
			return ls + string(b.op) + rs
		}
		return ls + " " + string(b.op) + " " + rs
	}
}

func (b *Binary) LaTeX() string {
	p := precedence(b)
	wrap := func(s string) string { return "\\left(" + s + "\\right)" }
	ls, rs := b.left.LaTeX(), b.right.LaTeX()
	switch b.op {
	case OpDiv:
		return "\\frac{" + ls + "}{" + rs + "}"
	case OpPow:
		if precedence(b.left) <= p {
			ls = wrap(ls)
		}
		return ls + "^{" + rs + "}"
	case OpMul:
		if needsParens(b.left, p) {
			ls = wrap(ls)
		}
		if needsParens(b.right, p) {
			rs = wrap(rs)
		}
		return ls + " \\cdot " + rs
	default:
		if b.op == OpSub && precedence(b.right) <= p {
			rs = wrap(rs)
		}
		return ls + " " + string(b.op) + " " + rs
	}
}

func (b *Binary) Sub(varName string, value Expr) Expr {
	return binaryOf(b.op, b.left.Sub(varName, value), b.right.Sub(varName, value))
}

func (b *Binary) Diff(varName string) Expr {
	du := b.left.Diff(varName)
	dv := b.right.Diff(varName)
	switch b.op {
	case OpAdd:
		return AddOf(du, dv)
	case OpSub:
		return SubOf(du, dv)
	case OpMul:
		return AddOf(MulOf(du, b.right), MulOf(b.left, dv))
	case OpDiv:
		return DivOf(SubOf(MulOf(du, b.right), MulOf(b.left, dv)), PowOf(b.right, N(2)))
	case OpPow:
		if !Contains(b.right, varName) {
			return MulOf(b.right, PowOf(b.left, SubOf(b.right, N(1))), du)
		}
		// d(u^v) = u^v * (v' ln u + v u'/u)
		return MulOf(b, AddOf(MulOf(dv, LogOf(b.left)), DivOf(MulOf(b.right, du), b.left)))
	}
	return N(0)
}

func (b *Binary) Eval(bind Binding) (float64, error) {
	l, err := b.left.Eval(bind)
	if err != nil {
		return 0, err
	}
	r, err := b.right.Eval(bind)
	if err != nil {
		return 0, err
	}
	var out float64
	switch b.op {
	case OpAdd:
		out = l + r
	case OpSub:
		out = l - r
	case OpMul:
		out = l * r
	case OpDiv:
		if r == 0 {
			return 0, &DomainError{Op: "division by zero", Arg: l}
		}
		out = l / r
	case OpPow:
		if l == 0 && r < 0 {
			return 0, &DomainError{Op: "zero to a negative power", Arg: r}
		}
		if l < 0 && r != math.Trunc(r) {
			return 0, &DomainError{Op: "non-real power", Arg: l}
		}
		out = math.Pow(l, r)
	default:
		return 0, fmt.Errorf("chemsolve: unknown binary op %q", b.op)
	}
	return finite(string(b.op), l, out)
}

func (b *Binary) Equal(other Expr) bool {
	o, ok := other.(*Binary)
	return ok && b.op == o.op && b.left.Equal(o.left) && b.right.Equal(o.right)
}

func (b *Binary) exprType() string { return "binary" }
func (b *Binary) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"type":  "binary",
		"op":    string(b.op),
		"left":  b.left.toJSON(),
		"right": b.right.toJSON(),
	}
}

// ============================================================
// Named constants
// ============================================================

// Constant is a named irrational constant (pi, e). It evaluates to its
// float64 value but prints by name.
type Constant struct {
	name  string
	value float64
}

var (
	Pi = &Constant{name: "pi", value: math.Pi}
	E  = &Constant{name: "e", value: math.E}
)

var namedConstants = map[string]*Constant{"pi": Pi, "e": E}

func (c *Constant) Simplify() Expr                { return c }
func (c *Constant) String() string                { return c.name }
func (c *Constant) Sub(string, Expr) Expr         { return c }
func (c *Constant) Diff(string) Expr              { return N(0) }
func (c *Constant) Eval(Binding) (float64, error) { return c.value, nil }
func (c *Constant) Equal(other Expr) bool         { o, ok := other.(*Constant); return ok && o.name == c.name }
func (c *Constant) exprType() string              { return "const" }
func (c *Constant) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "const", "name": c.name}
}

func (c *Constant) LaTeX() string {
	if c.name == "pi" {
		return "\\pi"
	}
	return c.name
}

// ============================================================
// Tree utilities
// ============================================================

// Simplify, String and LaTeX mirror the methods for callers holding an Expr.
func Simplify(e Expr) Expr { return e.Simplify() }
func String(e Expr) string { return e.String() }
func LaTeX(e Expr) string  { return e.LaTeX() }

// Diff returns d(expr)/d(varName).
func Diff(expr Expr, varName string) Expr { return expr.Diff(varName).Simplify() }

// Substitute replaces every occurrence of varName with value.
func Substitute(expr Expr, varName string, value Expr) Expr {
	return expr.Sub(varName, value).Simplify()
}

// FreeSymbols returns the set of variable names in e.
func FreeSymbols(e Expr) map[string]struct{} {
	out := map[string]struct{}{}
	walk(e, func(n Expr) {
		if s, ok := n.(*Sym); ok {
			out[s.name] = struct{}{}
		}
	})
	return out
}

// Contains reports whether the variable name occurs anywhere in e.
func Contains(e Expr, name string) bool {
	_, ok := FreeSymbols(e)[name]
	return ok
}

func walk(e Expr, visit func(Expr)) {
	visit(e)
	switch v := e.(type) {
	case *Unary:
		walk(v.arg, visit)
	case *Binary:
		walk(v.left, visit)
		walk(v.right, visit)
	}
}

// ============================================================
// Rational helpers
// ============================================================

func ratPow(a *big.Rat, e int) *big.Rat {
	neg := e < 0
	if neg {
		e = -e
	}
	num := new(big.Int).Exp(a.Num(), big.NewInt(int64(e)), nil)
	den := new(big.Int).Exp(a.Denom(), big.NewInt(int64(e)), nil)
	if neg {
		num, den = den, num
	}
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}
	return new(big.Rat).SetFrac(num, den)
}

// ratSqrt returns the exact square root of a when a is a perfect rational square.
func ratSqrt(a *big.Rat) (*big.Rat, bool) {
	if a.Sign() < 0 {
		return nil, false
	}
	n, d := a.Num(), a.Denom()
	sn, sd := new(big.Int).Sqrt(n), new(big.Int).Sqrt(d)
	if new(big.Int).Mul(sn, sn).Cmp(n) != 0 || new(big.Int).Mul(sd, sd).Cmp(d) != 0 {
		return nil, false
	}
	return new(big.Rat).SetFrac(sn, sd), true
}

func finite(op string, arg, out float64) (float64, error) {
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, &DomainError{Op: op + " overflow", Arg: arg}
	}
	return out, nil
}
