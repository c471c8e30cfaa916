package chemsolve

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(c):
			i += size
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && src[j] >= '0' && src[j] <= '9' {
					for j < len(src) && src[j] >= '0' && src[j] <= '9' {
						j++
					}
					i = j
				}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentStart(src[i]):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || src[i] >= '0' && src[i] <= '9') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '*' && i+1 < len(src) && src[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "^", pos: i})
			i += 2
		case strings.ContainsRune("+-*/^", c):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

type parser struct {
	toks []token
	pos  int

	// restrict limits identifiers to unknown; otherwise the first
	// identifier seen becomes the only allowed variable.
	restrict bool
	unknown  string
	depth    int
}

const maxParseDepth = 256

// Parse parses text into an expression containing at most one distinct
// variable name.
func Parse(text string) (Expr, error) {
	return parse(text, false, "")
}

// ParseIn parses text allowing only unknown as a variable. An empty
// unknown accepts constant expressions only.
func ParseIn(text, unknown string) (Expr, error) {
	return parse(text, true, unknown)
}

// MustParse is Parse for tests and examples; it panics on error.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

func parse(text string, restrict bool, unknown string) (Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SyntaxError{Pos: 0, Msg: "empty input"}
	}
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, restrict: restrict, unknown: unknown}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); t.kind {
	case tokEOF:
	case tokRParen:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unbalanced parentheses: unexpected )"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected " + t.text}
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

// expr = term {("+"|"-") term}
func (p *parser) expr() (Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxParseDepth {
		return nil, &SyntaxError{Pos: p.peek().pos, Msg: "expression nested too deeply"}
	}
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryOf(BinaryOp(op), left, right)
	}
}

// term = unary {("*"|"/") unary}
func (p *parser) term() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryOf(BinaryOp(op), left, right)
	}
}

// unary = ("-"|"+") unary | power
func (p *parser) unary() (Expr, error) {
	if op, ok := p.acceptOp("-", "+"); ok {
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxParseDepth {
			return nil, &SyntaxError{Pos: p.peek().pos, Msg: "expression nested too deeply"}
		}
		arg, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op == "-" {
			return NegOf(arg), nil
		}
		return arg, nil
	}
	return p.power()
}

// power = primary [("^"|"**") unary]
func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.acceptOp("^"); !ok {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return PowOf(base, exp), nil
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		r, ok := new(big.Rat).SetString(t.text)
		if !ok {
			return nil, &SyntaxError{Pos: t.pos, Msg: "malformed number " + t.text}
		}
		return &Num{val: r}, nil
	case tokLParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &SyntaxError{Pos: p.peek().pos, Msg: "unbalanced parentheses: missing )"}
		}
		p.next()
		return e, nil
	case tokIdent:
		return p.ident(t)
	case tokEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of input"}
	case tokRParen:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unbalanced parentheses: unexpected )"}
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected " + t.text}
}

func (p *parser) ident(t token) (Expr, error) {
	name := t.text
	if op, isFunc := functionOps[name]; isFunc && name != p.unknown {
		if p.peek().kind != tokLParen {
			return nil, &SyntaxError{Pos: t.pos, Msg: "function " + name + " requires (argument)"}
		}
		p.next()
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &SyntaxError{Pos: p.peek().pos, Msg: "unbalanced parentheses: missing ) after " + name + " argument"}
		}
		p.next()
		return unaryOf(op, arg), nil
	}
	if p.peek().kind == tokLParen && name != p.unknown {
		return nil, &SyntaxError{Pos: t.pos, Msg: "unsupported function " + name}
	}
	if name == p.unknown && name != "" {
		return S(name), nil
	}
	if c, ok := namedConstants[name]; ok {
		return c, nil
	}
	if p.restrict {
		return nil, &SyntaxError{Pos: t.pos, Msg: "unknown identifier " + name}
	}
	if p.unknown == "" {
		p.unknown = name
		return S(name), nil
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: "unknown identifier " + name + " (expression already uses " + p.unknown + ")"}
}
