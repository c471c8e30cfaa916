package chemsolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================
// Tool Interface
// ============================================================

type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolResponse struct {
	Result interface{} `json:"result,omitempty"`
	LaTeX  string      `json:"latex,omitempty"`
	String string      `json:"string,omitempty"`
	Error  string      `json:"error,omitempty"`
	Kind   ErrorKind   `json:"kind,omitempty"`
}

func toolError(err error) ToolResponse {
	return ToolResponse{Error: err.Error(), Kind: KindOf(err)}
}

// paramError reports a malformed tool parameter. It is a syntax error from
// the caller's point of view.
func paramError(format string, args ...interface{}) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

// HandleToolCall runs one named tool. Expressions are accepted either as
// text or as JSON trees produced by ToJSON. opts apply to the solve and
// equilibrium tools.
func HandleToolCall(ctx context.Context, req ToolRequest, opts ...Option) ToolResponse {
	getString := func(key string) (string, error) {
		v, ok := req.Params[key]
		if !ok {
			return "", paramError("missing param: %s", key)
		}
		s, ok := v.(string)
		if !ok {
			return "", paramError("param %s must be a string", key)
		}
		return s, nil
	}
	optString := func(key, def string) (string, error) {
		if _, ok := req.Params[key]; !ok {
			return def, nil
		}
		return getString(key)
	}
	getNumber := func(key string) (float64, error) {
		v, ok := req.Params[key]
		if !ok {
			return 0, paramError("missing param: %s", key)
		}
		switch n := v.(type) {
		case float64:
			return n, nil
		case string:
			ev, err := EvaluateExpression(n)
			if err != nil {
				return 0, fmt.Errorf("param %s: %w", key, err)
			}
			return ev.Value, nil
		}
		return 0, paramError("param %s must be a number", key)
	}
	getExpr := func(key string) (Expr, error) {
		v, ok := req.Params[key]
		if !ok {
			return nil, paramError("missing param: %s", key)
		}
		switch val := v.(type) {
		case string:
			return Parse(val)
		case map[string]interface{}:
			return FromJSON(val)
		}
		return nil, paramError("invalid type for param %s", key)
	}
	getSpec := func(key string) (ReactionSpec, error) {
		var spec ReactionSpec
		v, ok := req.Params[key]
		if !ok {
			return spec, paramError("missing param: %s", key)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return spec, paramError("param %s: %v", key, err)
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return spec, &ReactionError{Msg: err.Error()}
		}
		return spec, nil
	}
	respond := func(e Expr) ToolResponse {
		return ToolResponse{Result: e.toJSON(), LaTeX: LaTeX(e), String: String(e)}
	}
	respondEquilibrium := func(spec ReactionSpec) ToolResponse {
		res, err := SolveEquilibrium(ctx, spec, opts...)
		if err != nil {
			return toolError(err)
		}
		return ToolResponse{Result: res, LaTeX: res.LaTeX, String: formatEquilibrium(res)}
	}

	switch req.Tool {
	case "evaluate":
		text, err := getString("expr")
		if err != nil {
			return toolError(err)
		}
		ev, err := EvaluateExpression(text)
		if err != nil {
			return toolError(err)
		}
		return ToolResponse{Result: ev, LaTeX: ev.LaTeX, String: fmt.Sprintf("%s ≈ %g", ev.Exact, ev.Value)}

	case "solve":
		lhs, err := getString("lhs")
		if err != nil {
			return toolError(err)
		}
		rhs, err := optString("rhs", "0")
		if err != nil {
			return toolError(err)
		}
		unknown, err := optString("unknown", "x")
		if err != nil {
			return toolError(err)
		}
		res, err := SolveEquation(ctx, lhs, rhs, unknown, opts...)
		if err != nil {
			return toolError(err)
		}
		strs := make([]string, len(res.Roots))
		for i, r := range res.Roots {
			strs[i] = fmt.Sprintf("%s = %g", unknown, r)
			if res.ExactRoots != nil {
				strs[i] = fmt.Sprintf("%s = %s", unknown, res.ExactRoots[i])
			}
		}
		return ToolResponse{Result: res, String: strings.Join(strs, ", ")}

	case "equilibrium":
		spec, err := getSpec("reaction")
		if err != nil {
			return toolError(err)
		}
		return respondEquilibrium(spec)

	case "weak_acid", "weak_base":
		name, err := getString("species")
		if err != nil {
			return toolError(err)
		}
		c0, err := getNumber("c0")
		if err != nil {
			return toolError(err)
		}
		k, err := getNumber("k")
		if err != nil {
			return toolError(err)
		}
		if req.Tool == "weak_acid" {
			return respondEquilibrium(WeakAcid(name, c0, k))
		}
		return respondEquilibrium(WeakBase(name, c0, k))

	case "parse":
		e, err := getExpr("expr")
		if err != nil {
			return toolError(err)
		}
		return respond(e)

	case "to_latex":
		e, err := getExpr("expr")
		if err != nil {
			return toolError(err)
		}
		return ToolResponse{Result: LaTeX(e), LaTeX: LaTeX(e), String: String(e)}

	case "substitute":
		e, err := getExpr("expr")
		if err != nil {
			return toolError(err)
		}
		v, err := getString("var")
		if err != nil {
			return toolError(err)
		}
		val, err := getExpr("value")
		if err != nil {
			return toolError(err)
		}
		return respond(Substitute(e, v, val))

	case "diff":
		e, err := getExpr("expr")
		if err != nil {
			return toolError(err)
		}
		v, err := optString("var", "x")
		if err != nil {
			return toolError(err)
		}
		return respond(Diff(e, v))

	case "convert_k":
		k, err := getNumber("k")
		if err != nil {
			return toolError(err)
		}
		t, err := getNumber("temperature")
		if err != nil {
			return toolError(err)
		}
		dn, err := getNumber("delta_n")
		if err != nil {
			return toolError(err)
		}
		from, err := optString("from", "Kc")
		if err != nil {
			return toolError(err)
		}
		var typ EquilibriumType
		if err := typ.UnmarshalText([]byte(from)); err != nil || (typ != Kc && typ != Kp) {
			return toolError(&ReactionError{Msg: fmt.Sprintf("convert_k: from must be Kc or Kp, got %q", from)})
		}
		var out float64
		if typ == Kc {
			out, err = KpFromKc(k, t, dn)
		} else {
			out, err = KcFromKp(k, t, dn)
		}
		if err != nil {
			return toolError(err)
		}
		return ToolResponse{Result: out, String: fmt.Sprintf("%g", out)}

	case "tool_spec":
		return ToolResponse{Result: ToolSpec(), String: "tool specification"}
	}

	return toolError(paramError("unknown tool: %s", req.Tool))
}

func formatEquilibrium(res *EquilibriumResult) string {
	parts := make([]string, 0, len(res.Order)+1)
	parts = append(parts, fmt.Sprintf("x = %.6g", res.Extent))
	for _, name := range res.Order {
		parts = append(parts, fmt.Sprintf("[%s] = %.6g", name, res.Values[name]))
	}
	if res.PH != nil {
		parts = append(parts, fmt.Sprintf("pH = %.4g", *res.PH))
	}
	return strings.Join(parts, ", ")
}

// ToolSpec returns the JSON schema of every tool for agent registration.
func ToolSpec() string {
	tools := []map[string]interface{}{
		ts("evaluate", "Evaluate a constant expression, exact and approximate", []string{"expr"}, map[string]string{"expr": "string"}),
		ts("solve", "Solve lhs = rhs for one unknown (rhs defaults to 0, unknown to x)", []string{"lhs"}, map[string]string{"lhs": "string", "rhs": "string", "unknown": "string"}),
		ts("equilibrium", "Solve a Kc/Kp/Ka/Kb equilibrium. reaction={species:[{name,coefficient,role}],k,type,initial:{name:value}}", []string{"reaction"}, map[string]string{"reaction": "object"}),
		ts("weak_acid", "HA ⇌ H+ + A- from initial concentration c0 and Ka; reports pH", []string{"species", "c0", "k"}, map[string]string{"species": "string", "c0": "number", "k": "number"}),
		ts("weak_base", "B ⇌ BH+ + OH- from initial concentration c0 and Kb; reports pH and pOH", []string{"species", "c0", "k"}, map[string]string{"species": "string", "c0": "number", "k": "number"}),
		ts("parse", "Parse text into an expression tree", []string{"expr"}, map[string]string{"expr": "string"}),
		ts("to_latex", "Convert to LaTeX", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("substitute", "Substitute var with value", []string{"expr", "var", "value"}, map[string]string{"expr": "object", "var": "string", "value": "object"}),
		ts("diff", "First derivative d/dvar", []string{"expr"}, map[string]string{"expr": "object", "var": "string"}),
		ts("convert_k", "Convert Kc to Kp (or back with from=Kp) at temperature in kelvin", []string{"k", "temperature", "delta_n"}, map[string]string{"k": "number", "temperature": "number", "delta_n": "number", "from": "string"}),
		ts("tool_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]interface{}{"tools": tools}
	b, _ := json.MarshalIndent(spec, "", "  ")
	return string(b)
}

func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	properties := map[string]interface{}{}
	for k, typ := range props {
		properties[k] = map[string]interface{}{"type": typ}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
