package chemsolve_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/njchilds90/chemsolve"
)

func haber() chemsolve.ReactionSpec {
	return chemsolve.ReactionSpec{
		Species: []chemsolve.Species{
			{Name: "N2", Coefficient: chemsolve.Coef(1, 1), Role: chemsolve.Reactant},
			{Name: "H2", Coefficient: chemsolve.Coef(3, 1), Role: chemsolve.Reactant},
			{Name: "NH3", Coefficient: chemsolve.Coef(2, 1), Role: chemsolve.Product},
		},
		K:       0.5,
		Type:    chemsolve.Kc,
		Initial: map[string]float64{"N2": 1.0, "H2": 3.0, "NH3": 0},
	}
}

func simple(a0, b0, k float64) chemsolve.ReactionSpec {
	return chemsolve.ReactionSpec{
		Species: []chemsolve.Species{
			{Name: "A", Role: chemsolve.Reactant},
			{Name: "B", Role: chemsolve.Product},
		},
		K:       k,
		Type:    chemsolve.Kc,
		Initial: map[string]float64{"A": a0, "B": b0},
	}
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// ============================================================
// Scenarios
// ============================================================

func TestSolveEquilibrium_Haber(t *testing.T) {
	res, err := chemsolve.SolveEquilibrium(context.Background(), haber())
	if err != nil {
		t.Fatal(err)
	}
	x := res.Extent
	if !(x > 0 && x < 1) {
		t.Fatalf("extent %g outside (0, 1)", x)
	}
	if !near(x, 0.4857, 1e-3) {
		t.Errorf("want extent ≈ 0.4857, got %g", x)
	}
	if !near(res.Values["N2"], 1-x, 1e-12) || !near(res.Values["H2"], 3-3*x, 1e-12) || !near(res.Values["NH3"], 2*x, 1e-12) {
		t.Errorf("unexpected values %v for x = %g", res.Values, x)
	}
	if res.Delta > 1e-6*res.K {
		t.Errorf("recomputed K %g too far from %g", res.RecomputedK, res.K)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
	if !reflect.DeepEqual(res.Order, []string{"N2", "H2", "NH3"}) {
		t.Errorf("want species order preserved, got %v", res.Order)
	}
	if res.PH != nil || res.Approx != nil {
		t.Error("Kc result should not carry pH")
	}
}

func TestSolveEquilibrium_WeakAcid(t *testing.T) {
	res, err := chemsolve.SolveEquilibrium(context.Background(), chemsolve.WeakAcid("HA", 0.1, 1.8e-5))
	if err != nil {
		t.Fatal(err)
	}
	x := res.Extent
	if !near(x*x/(0.1-x), 1.8e-5, 1e-10) {
		t.Errorf("x = %g does not satisfy x²/(0.1-x) = 1.8e-5", x)
	}
	if res.PH == nil || !near(*res.PH, -math.Log10(x), 1e-12) || !near(*res.PH, 2.875, 0.005) {
		t.Errorf("want pH ≈ 2.87, got %v", res.PH)
	}
	if res.POH == nil || !near(*res.PH+*res.POH, 14, 1e-12) {
		t.Errorf("pH + pOH should be 14, got %v", res.POH)
	}
	if res.Approx == nil || !near(*res.Approx, math.Sqrt(1.8e-6), 1e-15) {
		t.Errorf("want approximation sqrt(Ka*C0), got %v", res.Approx)
	}
	if _, ok := res.Values["A-"]; !ok {
		t.Errorf("want conjugate base A-, got %v", res.Values)
	}
}

func TestSolveEquilibrium_WeakBase(t *testing.T) {
	res, err := chemsolve.SolveEquilibrium(context.Background(), chemsolve.WeakBase("NH3", 0.15, 1.8e-5))
	if err != nil {
		t.Fatal(err)
	}
	if res.PH == nil || *res.PH < 11.1 || *res.PH > 11.3 {
		t.Errorf("want pH near 11.2, got %v", res.PH)
	}
	if res.POH == nil || !near(*res.POH, -math.Log10(res.Values["OH-"]), 1e-12) {
		t.Errorf("pOH should follow [OH-], got %v", res.POH)
	}
	if _, ok := res.Values["NH4+"]; !ok {
		t.Errorf("want conjugate acid NH4+, got %v", res.Values)
	}
}

func TestConjugateNames(t *testing.T) {
	acids := map[string]string{"HA": "A-", "CH3COOH": "CH3COO-", "NH4+": "NH3", "HF": "F-"}
	for acid, want := range acids {
		spec := chemsolve.WeakAcid(acid, 0.1, 1e-5)
		if got := spec.Species[2].Name; got != want {
			t.Errorf("conjugate base of %s: want %s, got %s", acid, want, got)
		}
	}
	bases := map[string]string{"NH3": "NH4+", "B": "BH+", "CH3NH2": "CH3NH3+"}
	for base, want := range bases {
		spec := chemsolve.WeakBase(base, 0.1, 1e-5)
		if got := spec.Species[1].Name; got != want {
			t.Errorf("conjugate acid of %s: want %s, got %s", base, want, got)
		}
	}
}

func TestSolveEquilibrium_FractionalCoefficient(t *testing.T) {
	// SO2 + 1/2 O2 ⇌ SO3 has a square root in the quotient.
	spec := chemsolve.ReactionSpec{
		Species: []chemsolve.Species{
			{Name: "SO2", Role: chemsolve.Reactant},
			{Name: "O2", Coefficient: chemsolve.Coef(1, 2), Role: chemsolve.Reactant},
			{Name: "SO3", Role: chemsolve.Product},
		},
		K:       2,
		Type:    chemsolve.Kc,
		Initial: map[string]float64{"SO2": 1, "O2": 0.5, "SO3": 0},
	}
	res, err := chemsolve.SolveEquilibrium(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if !(res.Extent > 0 && res.Extent < 1) {
		t.Errorf("extent %g outside (0, 1)", res.Extent)
	}
	if res.Delta > 1e-6*res.K {
		t.Errorf("recomputed K %g too far from 2", res.RecomputedK)
	}
}

// ============================================================
// Properties
// ============================================================

func TestSolveEquilibrium_NonNegative(t *testing.T) {
	specs := []chemsolve.ReactionSpec{
		haber(),
		simple(1, 0, 4),
		simple(0, 1, 0.25),
		simple(0.5, 0.5, 1e-6),
		chemsolve.WeakAcid("HF", 0.01, 6.8e-4),
		chemsolve.WeakBase("CH3NH2", 0.2, 4.4e-4),
	}
	for _, spec := range specs {
		res, err := chemsolve.SolveEquilibrium(context.Background(), spec)
		if err != nil {
			t.Errorf("%v: %v", spec.Initial, err)
			continue
		}
		for name, v := range res.Values {
			if v < 0 {
				t.Errorf("%v: [%s] = %g is negative", spec.Initial, name, v)
			}
		}
		if res.Delta > 1e-6*res.K {
			t.Errorf("%v: recomputed K %g, want %g", spec.Initial, res.RecomputedK, res.K)
		}
	}
}

func TestSolveEquilibrium_ReverseDirection(t *testing.T) {
	// Starting from pure product the extent is negative.
	res, err := chemsolve.SolveEquilibrium(context.Background(), simple(0, 1, 0.25))
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.Extent, -0.8, 1e-12) {
		t.Errorf("want extent -0.8, got %g", res.Extent)
	}
}

func TestSolveEquilibrium_Idempotent(t *testing.T) {
	a, err := chemsolve.SolveEquilibrium(context.Background(), haber())
	if err != nil {
		t.Fatal(err)
	}
	b, err := chemsolve.SolveEquilibrium(context.Background(), haber())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated solve differs:\n%+v\n%+v", a, b)
	}
}

func TestSolveEquilibrium_ExtremeK(t *testing.T) {
	cases := []struct {
		k      float64
		extent float64
	}{
		{1e-20, 2.598e-10},
		{1e-15, 8.216e-8},
		{1e8, 0.99381},
		{1e10, 0.99804},
	}
	for _, c := range cases {
		spec := haber()
		spec.K = c.k
		res, err := chemsolve.SolveEquilibrium(context.Background(), spec)
		if err != nil {
			t.Errorf("Kc=%g: %v", c.k, err)
			continue
		}
		if math.Abs(res.Extent-c.extent) > 1e-3*c.extent {
			t.Errorf("Kc=%g: want extent ≈ %g, got %g", c.k, c.extent, res.Extent)
		}
		for name, v := range res.Values {
			if v < 0 {
				t.Errorf("Kc=%g: [%s] = %g is negative", c.k, name, v)
			}
		}
		if res.Delta > 1e-6*res.K {
			t.Errorf("Kc=%g: recomputed K %g", c.k, res.RecomputedK)
		}
	}
}

func TestSolveEquilibrium_AcidFarStrongerThanConcentration(t *testing.T) {
	// Ka >> C0: nearly all HA dissociates and [HA] is a few float ulps of
	// C0, so the recomputed K carries a visible rounding error.
	res, err := chemsolve.SolveEquilibrium(context.Background(), chemsolve.WeakAcid("HA", 0.1, 1e12))
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.Extent, 0.1, 1e-12) {
		t.Errorf("want extent ≈ 0.1, got %g", res.Extent)
	}
	if v := res.Values["HA"]; v < 0 || v > 1e-12 {
		t.Errorf("want [HA] tiny and non-negative, got %g", v)
	}
	if res.PH == nil || !near(*res.PH, 1, 1e-9) {
		t.Errorf("want pH 1, got %v", res.PH)
	}
	found := false
	for _, w := range res.Warnings {
		found = found || w.Kind == chemsolve.WarnVerification
	}
	if !found {
		t.Errorf("want a verification warning, got %v", res.Warnings)
	}
}

func TestSolveEquilibrium_VerifyTolerance(t *testing.T) {
	spec := chemsolve.WeakAcid("HA", 0.1, 1e12)
	res, err := chemsolve.SolveEquilibrium(context.Background(), spec, chemsolve.WithVerifyTolerance(0.5))
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range res.Warnings {
		if w.Kind == chemsolve.WarnVerification {
			t.Errorf("a loose tolerance should accept %g against %g", res.RecomputedK, res.K)
		}
	}
}

// ============================================================
// Errors
// ============================================================

func TestValidate_Errors(t *testing.T) {
	mutate := func(f func(*chemsolve.ReactionSpec)) chemsolve.ReactionSpec {
		s := haber()
		f(&s)
		return s
	}
	cases := map[string]chemsolve.ReactionSpec{
		"no species":     mutate(func(s *chemsolve.ReactionSpec) { s.Species = nil }),
		"bad type":       mutate(func(s *chemsolve.ReactionSpec) { s.Type = "Kx" }),
		"zero K":         mutate(func(s *chemsolve.ReactionSpec) { s.K = 0 }),
		"negative K":     mutate(func(s *chemsolve.ReactionSpec) { s.K = -1 }),
		"infinite K":     mutate(func(s *chemsolve.ReactionSpec) { s.K = math.Inf(1) }),
		"NaN K":          mutate(func(s *chemsolve.ReactionSpec) { s.K = math.NaN() }),
		"bad unknown":    mutate(func(s *chemsolve.ReactionSpec) { s.Unknown = "sin" }),
		"duplicate":      mutate(func(s *chemsolve.ReactionSpec) { s.Species[1].Name = "N2" }),
		"zero coeff":     mutate(func(s *chemsolve.ReactionSpec) { s.Species[0].Coefficient = chemsolve.Coef(0, 1) }),
		"bad role":       mutate(func(s *chemsolve.ReactionSpec) { s.Species[0].Role = "catalyst" }),
		"no initial":     mutate(func(s *chemsolve.ReactionSpec) { delete(s.Initial, "H2") }),
		"negative c0":    mutate(func(s *chemsolve.ReactionSpec) { s.Initial["N2"] = -1 }),
		"no product":     mutate(func(s *chemsolve.ReactionSpec) { s.Species[2].Role = chemsolve.Reactant }),
		"two Ka sources": mutate(func(s *chemsolve.ReactionSpec) { s.Type = chemsolve.Ka }),
	}
	for name, spec := range cases {
		_, err := chemsolve.SolveEquilibrium(context.Background(), spec)
		if !errors.Is(err, chemsolve.ErrInvalidReaction) {
			t.Errorf("%s: want invalid reaction, got %v", name, err)
		}
		if chemsolve.KindOf(err) != chemsolve.KindInvalidReaction {
			t.Errorf("%s: want kind %s, got %s", name, chemsolve.KindInvalidReaction, chemsolve.KindOf(err))
		}
	}
}

func TestSolveEquilibrium_NoPhysicalRoot(t *testing.T) {
	// Nothing to react in either direction: the only root is x = 0 where
	// the quotient is 0/0.
	_, err := chemsolve.SolveEquilibrium(context.Background(), simple(0, 0, 1))
	if !errors.Is(err, chemsolve.ErrNoPhysicalRoot) {
		t.Errorf("want no physical root, got %v", err)
	}
}

func TestSelectExtent_RejectsNegativeConcentrations(t *testing.T) {
	_, err := chemsolve.SelectExtent(haber(), []float64{5, -1, 2.0586})
	if !errors.Is(err, chemsolve.ErrNoPhysicalRoot) {
		t.Errorf("want no physical root, got %v", err)
	}
	if chemsolve.KindOf(err) != chemsolve.KindNoPhysicalRoot {
		t.Errorf("want kind %s, got %s", chemsolve.KindNoPhysicalRoot, chemsolve.KindOf(err))
	}
}

func TestSelectExtent_SmallestMagnitude(t *testing.T) {
	sel, err := chemsolve.SelectExtent(simple(1, 1, 1), []float64{0.9, -0.3, 0.2, math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Extent != 0.2 {
		t.Errorf("want 0.2, got %g", sel.Extent)
	}
	if !reflect.DeepEqual(sel.Alternatives, []float64{-0.3, 0.9}) {
		t.Errorf("want alternatives by magnitude, got %v", sel.Alternatives)
	}
	if len(sel.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", sel.Warnings)
	}
}

func TestSelectExtent_AmbiguousTie(t *testing.T) {
	sel, err := chemsolve.SelectExtent(simple(1, 1, 1), []float64{-0.1, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Extent != 0.1 {
		t.Errorf("want the non-negative root 0.1, got %g", sel.Extent)
	}
	if len(sel.Warnings) != 1 || sel.Warnings[0].Kind != chemsolve.WarnAmbiguousRoot {
		t.Errorf("want one ambiguity warning, got %v", sel.Warnings)
	}
	if !reflect.DeepEqual(sel.Alternatives, []float64{-0.1}) {
		t.Errorf("want alternative -0.1, got %v", sel.Alternatives)
	}
	if !near(sel.Values["A"], 0.9, 1e-15) || !near(sel.Values["B"], 1.1, 1e-15) {
		t.Errorf("unexpected values %v", sel.Values)
	}
}

func TestSelectExtent_ClampsRoundoff(t *testing.T) {
	sel, err := chemsolve.SelectExtent(simple(1, 0, 1), []float64{1 + 1e-15})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Values["A"] != 0 {
		t.Errorf("want [A] clamped to 0, got %g", sel.Values["A"])
	}
}

// ============================================================
// Kp and Kc
// ============================================================

func TestDeltaN(t *testing.T) {
	if dn := chemsolve.DeltaN(haber()); dn != -2 {
		t.Errorf("want -2, got %g", dn)
	}
}

func TestKpKcConversion(t *testing.T) {
	kp, err := chemsolve.KpFromKc(0.5, 700, -2)
	if err != nil {
		t.Fatal(err)
	}
	rt := chemsolve.GasConstant * 700
	if !near(kp, 0.5/(rt*rt), 1e-18) {
		t.Errorf("want %g, got %g", 0.5/(rt*rt), kp)
	}
	kc, err := chemsolve.KcFromKp(kp, 700, -2)
	if err != nil {
		t.Fatal(err)
	}
	if !near(kc, 0.5, 1e-12) {
		t.Errorf("round trip: want 0.5, got %g", kc)
	}
	if kp, _ := chemsolve.KpFromKc(3, 500, 0); kp != 3 {
		t.Errorf("Δn = 0 must leave K unchanged, got %g", kp)
	}
}

func TestKpKcConversion_Errors(t *testing.T) {
	for _, c := range [][2]float64{{1, 0}, {1, -10}, {0, 300}, {-1, 300}} {
		if _, err := chemsolve.KpFromKc(c[0], c[1], 1); !errors.Is(err, chemsolve.ErrInvalidReaction) {
			t.Errorf("K=%g T=%g: want invalid reaction, got %v", c[0], c[1], err)
		}
	}
}

// ============================================================
// Decoding
// ============================================================

func TestCoefficient_JSON(t *testing.T) {
	var sp []chemsolve.Species
	data := `[{"name":"O2","coefficient":"1/2","role":"reactant"},
		{"name":"H2","coefficient":0.5,"role":"Reactants"},
		{"name":"H2O","coefficient":2,"role":"product"},
		{"name":"X","role":"product"}]`
	if err := json.Unmarshal([]byte(data), &sp); err != nil {
		t.Fatal(err)
	}
	want := []string{"1/2", "1/2", "2", "1"}
	for i, s := range sp {
		if s.Coefficient.String() != want[i] {
			t.Errorf("%s: want %s, got %s", s.Name, want[i], s.Coefficient)
		}
	}
	if sp[1].Role != chemsolve.Reactant {
		t.Errorf("want role reactant, got %q", sp[1].Role)
	}
	out, err := json.Marshal(sp[0].Coefficient)
	if err != nil || string(out) != `"1/2"` {
		t.Errorf(`want "1/2", got %s (%v)`, out, err)
	}
	out, _ = json.Marshal(sp[2].Coefficient)
	if string(out) != "2" {
		t.Errorf("want 2, got %s", out)
	}
}

func TestCoefficient_JSONErrors(t *testing.T) {
	var sp chemsolve.Species
	if err := json.Unmarshal([]byte(`{"name":"A","coefficient":"two"}`), &sp); err == nil {
		t.Error("want error for malformed coefficient")
	}
	if err := json.Unmarshal([]byte(`{"name":"A","role":"catalyst"}`), &sp); err == nil {
		t.Error("want error for unknown role")
	}
}

func TestReactionSpec_YAML(t *testing.T) {
	doc := `
type: kc
k: 0.5
species:
  - {name: N2, coefficient: 1, role: reactant}
  - {name: H2, coefficient: 3, role: reactant}
  - {name: NH3, coefficient: 2, role: product}
initial:
  N2: 1.0
  H2: 3.0
  NH3: 0
`
	var spec chemsolve.ReactionSpec
	if err := yaml.Unmarshal([]byte(doc), &spec); err != nil {
		t.Fatal(err)
	}
	if spec.Type != chemsolve.Kc || spec.Species[1].Coefficient.String() != "3" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	res, err := chemsolve.SolveEquilibrium(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.Extent, 0.4857, 1e-3) {
		t.Errorf("want extent ≈ 0.4857, got %g", res.Extent)
	}
}
