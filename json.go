package chemsolve

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ============================================================
// JSON Serialization
// ============================================================

// ToJSON encodes e as a tree of {"type": ...} objects: num, sym, const,
// unary and binary.
func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(e.toJSON())
	return string(b), err
}

// ToMap is ToJSON without the final encoding step.
func ToMap(e Expr) map[string]interface{} { return e.toJSON() }

// FromJSON decodes a tree produced by ToJSON. Constructors run on the way
// in, so literal sub-trees fold exactly as if parsed.
func FromJSON(data map[string]interface{}) (Expr, error) {
	if data == nil {
		return nil, &SyntaxError{Msg: "expression must be an object"}
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, &SyntaxError{Msg: "missing 'type' field"}
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, &SyntaxError{Msg: "field 'type' must be a non-empty string"}
	}

	subObj := func(field string) (Expr, error) {
		v, ok := data[field]
		if !ok {
			return nil, &SyntaxError{Msg: fmt.Sprintf("%s: missing %q", typ, field)}
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, &SyntaxError{Msg: fmt.Sprintf("%s: %q must be an object", typ, field)}
		}
		e, err := FromJSON(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", typ, field, err)
		}
		return e, nil
	}

	subString := func(field string) (string, error) {
		v, ok := data[field]
		if !ok {
			return "", &SyntaxError{Msg: fmt.Sprintf("%s: missing %q", typ, field)}
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", &SyntaxError{Msg: fmt.Sprintf("%s: %q must be a non-empty string", typ, field)}
		}
		return s, nil
	}

	switch typ {
	case "num":
		var r *big.Rat
		switch v := data["value"].(type) {
		case string:
			var ok bool
			if r, ok = new(big.Rat).SetString(v); !ok {
				return nil, &SyntaxError{Msg: "invalid num value: " + v}
			}
		case float64:
			return NFloat(v), nil
		default:
			return nil, &SyntaxError{Msg: "num: 'value' must be a string or a number"}
		}
		return &Num{val: r}, nil

	case "sym":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		if !validIdent(name) {
			return nil, &SyntaxError{Msg: fmt.Sprintf("sym: invalid name %q", name)}
		}
		return S(name), nil

	case "const":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		c, ok := namedConstants[name]
		if !ok {
			return nil, &SyntaxError{Msg: "unknown constant " + name}
		}
		return c, nil

	case "unary":
		opName, err := subString("op")
		if err != nil {
			return nil, err
		}
		op := UnaryOp(opName)
		if alias, ok := functionOps[opName]; ok {
			op = alias
		} else if op != OpNeg {
			return nil, &SyntaxError{Msg: "unsupported function " + opName}
		}
		arg, err := subObj("arg")
		if err != nil {
			return nil, err
		}
		return unaryOf(op, arg), nil

	case "binary":
		opName, err := subString("op")
		if err != nil {
			return nil, err
		}
		op := BinaryOp(opName)
		switch op {
		case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		default:
			return nil, &SyntaxError{Msg: "unsupported operator " + opName}
		}
		left, err := subObj("left")
		if err != nil {
			return nil, err
		}
		right, err := subObj("right")
		if err != nil {
			return nil, err
		}
		return binaryOf(op, left, right), nil
	}
	return nil, &SyntaxError{Msg: "unknown expression type: " + typ}
}
