package chemsolve_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/njchilds90/chemsolve"
)

// ============================================================
// Parser tests
// ============================================================

func TestParse_FoldsConstantArithmetic(t *testing.T) {
	e, err := chemsolve.Parse("2*3 + 5^2 - sqrt(16)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.String() != "27" {
		t.Errorf("want 27, got %s", e.String())
	}
}

func TestParse_Precedence(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"-2^2", -4},
		{"2^3^2", 512},
		{"2**3", 8},
		{"(1+2)*3", 9},
		{"1+2*3", 7},
		{"8/4/2", 1},
		{"10-4-3", 3},
		{"-(-3)", 3},
		{"+5", 5},
		{"2*-3", -6},
	}
	for _, c := range cases {
		e, err := chemsolve.Parse(c.in)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		got, err := chemsolve.Evaluate(e, nil)
		if err != nil {
			t.Errorf("%s: eval: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: want %g, got %g", c.in, c.want, got)
		}
	}
}

func TestParse_ScientificLiteralIsExact(t *testing.T) {
	e := chemsolve.MustParse("1.8e-5")
	if e.String() != "9/500000" {
		t.Errorf("want 9/500000, got %s", e.String())
	}
	e = chemsolve.MustParse("6.02E23")
	if e.String() != "602000000000000000000000" {
		t.Errorf("want 602000000000000000000000, got %s", e.String())
	}
}

func TestParse_ConstantsAndAliases(t *testing.T) {
	v, err := chemsolve.Evaluate(chemsolve.MustParse("ln(e)"), nil)
	if err != nil || math.Abs(v-1) > 1e-15 {
		t.Errorf("ln(e): want 1, got %g (%v)", v, err)
	}
	v, err = chemsolve.Evaluate(chemsolve.MustParse("cos(pi)"), nil)
	if err != nil || math.Abs(v+1) > 1e-15 {
		t.Errorf("cos(pi): want -1, got %g (%v)", v, err)
	}
}

func TestParse_SingleVariable(t *testing.T) {
	e, err := chemsolve.Parse("3*t^2 + t")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !chemsolve.Contains(e, "t") {
		t.Errorf("expected t in %s", e)
	}
	if _, err := chemsolve.Parse("x + y"); !errors.Is(err, chemsolve.ErrSyntax) {
		t.Errorf("x + y: want syntax error, got %v", err)
	}
}

func TestParseIn_RejectsOtherIdentifiers(t *testing.T) {
	if _, err := chemsolve.ParseIn("x + 1", "t"); !errors.Is(err, chemsolve.ErrSyntax) {
		t.Errorf("want syntax error, got %v", err)
	}
	if _, err := chemsolve.ParseIn("x", ""); !errors.Is(err, chemsolve.ErrSyntax) {
		t.Errorf("constant-only parse should reject x, got %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"(1+2",
		"1+2)",
		"foo(2)",
		"sqrt",
		"sqrt 4",
		"2 $ 3",
		"1 +",
		"2 3",
		"1..2",
		"()",
		"1 +\x85 2",
		"\xa0x",
	}
	for _, in := range cases {
		_, err := chemsolve.Parse(in)
		if err == nil {
			t.Errorf("%q: expected an error", in)
			continue
		}
		var se *chemsolve.SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%q: want *SyntaxError, got %T", in, err)
		}
		if chemsolve.KindOf(err) != chemsolve.KindSyntax {
			t.Errorf("%q: want kind %s, got %s", in, chemsolve.KindSyntax, chemsolve.KindOf(err))
		}
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := chemsolve.Parse("1 + foo(2)")
	var se *chemsolve.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("want *SyntaxError, got %v", err)
	}
	if se.Pos != 4 {
		t.Errorf("want position 4, got %d", se.Pos)
	}
}

func TestParse_DeepNestingIsRejected(t *testing.T) {
	in := ""
	for i := 0; i < 1000; i++ {
		in += "("
	}
	in += "1"
	for i := 0; i < 1000; i++ {
		in += ")"
	}
	if _, err := chemsolve.Parse(in); !errors.Is(err, chemsolve.ErrSyntax) {
		t.Errorf("want syntax error for deep nesting, got %v", err)
	}
}

func TestParse_UnicodeWhitespace(t *testing.T) {
	e, err := chemsolve.Parse("1\u00a0+\u20032")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.String() != "3" {
		t.Errorf("want 3, got %s", e)
	}
}

func TestParse_LongChain(t *testing.T) {
	// Each term reduces only the new node, so this stays linear.
	const n = 50000
	e, err := chemsolve.Parse(strings.Repeat("x + ", n) + "x")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, err := chemsolve.EvaluateAt(e, "x", 1)
	if err != nil || v != n+1 {
		t.Errorf("want %d, got %g (%v)", n+1, v, err)
	}
}

// ============================================================
// Printing tests
// ============================================================

func TestString_RoundTripsThroughParser(t *testing.T) {
	for _, in := range []string{
		"2*x + 5",
		"x^2 - 4*x + 3",
		"(2*x)^2/((1 - x)*(3 - 3*x)^3)",
		"x/(1/2)",
		"-(x + 1)",
		"log(x) - exp(-x)",
		"x - (x - 1)",
	} {
		e := chemsolve.MustParse(in)
		again, err := chemsolve.Parse(e.String())
		if err != nil {
			t.Errorf("%s: reparse of %q: %v", in, e.String(), err)
			continue
		}
		if !again.Equal(e) {
			t.Errorf("%s: printed as %q which reparses differently", in, e.String())
		}
	}
}

func TestLaTeX(t *testing.T) {
	cases := map[string]string{
		"1/2":     `\frac{1}{2}`,
		"sqrt(x)": `\sqrt{x}`,
		"log(x)":  `\ln\left(x\right)`,
		"x^2":     `x^{2}`,
		"pi":      `\pi`,
	}
	for in, want := range cases {
		if got := chemsolve.LaTeX(chemsolve.MustParse(in)); got != want {
			t.Errorf("%s: want %s, got %s", in, want, got)
		}
	}
}
