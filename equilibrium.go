package chemsolve

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GasConstant is R in L·atm/(mol·K), used for Kp and Kc conversion.
const GasConstant = 0.082057366

// pKw of water at 25 °C.
const pKw = 14.0

// ============================================================
// Reaction description
// ============================================================

type Role string

const (
	Reactant Role = "reactant"
	Product  Role = "product"
)

func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "reactant", "reactants":
		*r = Reactant
	case "product", "products":
		*r = Product
	default:
		return &ReactionError{Msg: fmt.Sprintf("unknown role %q", text)}
	}
	return nil
}

type EquilibriumType string

const (
	Kc EquilibriumType = "Kc"
	Kp EquilibriumType = "Kp"
	Ka EquilibriumType = "Ka"
	Kb EquilibriumType = "Kb"
)

func (t *EquilibriumType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "kc":
		*t = Kc
	case "kp":
		*t = Kp
	case "ka":
		*t = Ka
	case "kb":
		*t = Kb
	default:
		return &ReactionError{Msg: fmt.Sprintf("unknown equilibrium type %q", text)}
	}
	return nil
}

func (t EquilibriumType) valid() bool {
	switch t {
	case Kc, Kp, Ka, Kb:
		return true
	}
	return false
}

// Coefficient is a stoichiometric coefficient held exactly. The zero value
// means 1. It decodes from a number (2, 0.5) or a "p/q" string.
type Coefficient struct{ r *big.Rat }

func Coef(p, q int64) Coefficient {
	return Coefficient{r: big.NewRat(p, q)}
}

// ParseCoefficient accepts "2", "0.5" or "1/2".
func ParseCoefficient(s string) (Coefficient, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return Coefficient{}, &ReactionError{Msg: fmt.Sprintf("malformed coefficient %q", s)}
	}
	return Coefficient{r: r}, nil
}

func (c Coefficient) Rat() *big.Rat {
	if c.r == nil {
		return big.NewRat(1, 1)
	}
	return new(big.Rat).Set(c.r)
}

func (c Coefficient) Float64() float64 {
	f, _ := c.Rat().Float64()
	return f
}

func (c Coefficient) String() string {
	r := c.Rat()
	if r.IsInt() {
		return r.Num().String()
	}
	return r.RatString()
}

func (c Coefficient) MarshalJSON() ([]byte, error) {
	if c.Rat().IsInt() {
		return []byte(c.String()), nil
	}
	return json.Marshal(c.String())
}

func (c *Coefficient) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseCoefficient(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Coefficient) MarshalYAML() (interface{}, error) {
	r := c.Rat()
	if r.IsInt() && r.Num().IsInt64() {
		return r.Num().Int64(), nil
	}
	return c.String(), nil
}

func (c *Coefficient) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return &ReactionError{Msg: fmt.Sprintf("coefficient must be a scalar (line %d)", value.Line)}
	}
	parsed, err := ParseCoefficient(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Species struct {
	Name        string      `json:"name" yaml:"name"`
	Coefficient Coefficient `json:"coefficient" yaml:"coefficient"`
	Role        Role        `json:"role" yaml:"role"`
}

// ReactionSpec describes one equilibrium. Initial holds concentrations
// (or partial pressures for Kp) keyed by species name.
type ReactionSpec struct {
	Species []Species          `json:"species" yaml:"species"`
	K       float64            `json:"k" yaml:"k"`
	Type    EquilibriumType    `json:"type" yaml:"type"`
	Initial map[string]float64 `json:"initial" yaml:"initial"`
	// Unknown names the extent variable; "x" when empty.
	Unknown string `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	// Ion selects the species used for pH/pOH of Ka and Kb reactions.
	Ion string `json:"ion,omitempty" yaml:"ion,omitempty"`
}

func (s *ReactionSpec) unknown() string {
	if s.Unknown == "" {
		return "x"
	}
	return s.Unknown
}

// Validate checks the structural invariants of s.
func (s *ReactionSpec) Validate() error {
	if len(s.Species) == 0 {
		return &ReactionError{Msg: "no species"}
	}
	if !s.Type.valid() {
		return &ReactionError{Msg: fmt.Sprintf("unknown equilibrium type %q", s.Type)}
	}
	if !(s.K > 0) || math.IsInf(s.K, 0) {
		return &ReactionError{Msg: fmt.Sprintf("K must be positive and finite, got %g", s.K)}
	}
	if name := s.unknown(); !validIdent(name) {
		return &ReactionError{Msg: fmt.Sprintf("unknown %q is not a valid variable name", name)}
	}
	seen := make(map[string]bool, len(s.Species))
	reactants, products := 0, 0
	for _, sp := range s.Species {
		if sp.Name == "" {
			return &ReactionError{Msg: "species without a name"}
		}
		if seen[sp.Name] {
			return &ReactionError{Species: sp.Name, Msg: "listed twice"}
		}
		seen[sp.Name] = true
		if sp.Coefficient.Rat().Sign() <= 0 {
			return &ReactionError{Species: sp.Name, Msg: "coefficient must be positive"}
		}
		switch sp.Role {
		case Reactant:
			reactants++
		case Product:
			products++
		default:
			return &ReactionError{Species: sp.Name, Msg: fmt.Sprintf("unknown role %q", sp.Role)}
		}
		c0, ok := s.Initial[sp.Name]
		if !ok {
			return &ReactionError{Species: sp.Name, Msg: "no initial value"}
		}
		if c0 < 0 || math.IsNaN(c0) || math.IsInf(c0, 0) {
			return &ReactionError{Species: sp.Name, Msg: fmt.Sprintf("initial value must be finite and non-negative, got %g", c0)}
		}
	}
	if reactants == 0 || products == 0 {
		return &ReactionError{Msg: "need at least one reactant and one product"}
	}
	if (s.Type == Ka || s.Type == Kb) && reactants != 1 {
		return &ReactionError{Msg: fmt.Sprintf("%s reactions take exactly one reactant, got %d", s.Type, reactants)}
	}
	return nil
}

func validIdent(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentStart(name[i]) && !(name[i] >= '0' && name[i] <= '9') {
			return false
		}
	}
	_, isFunc := functionOps[name]
	_, isConst := namedConstants[name]
	return !isFunc && !isConst
}

// ============================================================
// Builder
// ============================================================

// speciesExpr is initial ± ν·x for one species.
func speciesExpr(sp Species, initial float64, x Expr) Expr {
	shift := MulOf(NRat(sp.Coefficient.Rat()), x)
	if sp.Role == Reactant {
		return SubOf(NFloat(initial), shift)
	}
	return AddOf(NFloat(initial), shift)
}

// BuildEquation turns spec into Π products^ν / Π reactants^ν = K over the
// extent of reaction. Kp uses the same form over partial pressures.
func BuildEquation(spec ReactionSpec) (*Equation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	x := S(spec.unknown())
	var num, den []Expr
	for _, sp := range spec.Species {
		term := PowOf(speciesExpr(sp, spec.Initial[sp.Name], x), NRat(sp.Coefficient.Rat()))
		if sp.Role == Product {
			num = append(num, term)
		} else {
			den = append(den, term)
		}
	}
	return Eq(DivOf(MulOf(num...), MulOf(den...)), NFloat(spec.K), spec.unknown()), nil
}

// extentBounds is the interval of extents that keeps every species
// non-negative.
func extentBounds(spec ReactionSpec) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	for _, sp := range spec.Species {
		limit := spec.Initial[sp.Name] / sp.Coefficient.Float64()
		if sp.Role == Reactant {
			hi = math.Min(hi, limit)
		} else {
			lo = math.Max(lo, -limit)
		}
	}
	return lo, hi
}

// WeakAcid builds HA ⇌ H+ + A- with [HA]0 = c0. The conjugate base name
// drops one hydrogen from the acid: HA → A-, CH3COOH → CH3COO-, NH4+ → NH3.
func WeakAcid(acid string, c0, ka float64) ReactionSpec {
	base := conjugateBase(acid)
	return ReactionSpec{
		Species: []Species{
			{Name: acid, Coefficient: Coef(1, 1), Role: Reactant},
			{Name: "H+", Coefficient: Coef(1, 1), Role: Product},
			{Name: base, Coefficient: Coef(1, 1), Role: Product},
		},
		K:       ka,
		Type:    Ka,
		Initial: map[string]float64{acid: c0, "H+": 0, base: 0},
		Ion:     "H+",
	}
}

// WeakBase builds B ⇌ BH+ + OH- with [B]0 = c0. Water is the solvent and
// does not appear.
func WeakBase(base string, c0, kb float64) ReactionSpec {
	acid := conjugateAcid(base)
	return ReactionSpec{
		Species: []Species{
			{Name: base, Coefficient: Coef(1, 1), Role: Reactant},
			{Name: acid, Coefficient: Coef(1, 1), Role: Product},
			{Name: "OH-", Coefficient: Coef(1, 1), Role: Product},
		},
		K:       kb,
		Type:    Kb,
		Initial: map[string]float64{base: c0, acid: 0, "OH-": 0},
		Ion:     "OH-",
	}
}

func conjugateBase(acid string) string {
	if core, ok := strings.CutSuffix(acid, "+"); ok {
		return adjustHydrogens(core, -1)
	}
	switch {
	case len(acid) > 1 && strings.HasSuffix(acid, "H"):
		return acid[:len(acid)-1] + "-"
	case len(acid) > 1 && strings.HasPrefix(acid, "H"):
		return adjustHydrogens(acid, -1) + "-"
	}
	return "A-"
}

func conjugateAcid(base string) string {
	if core, ok := strings.CutSuffix(base, "-"); ok {
		return adjustHydrogens(core, 1)
	}
	return adjustHydrogens(base, 1) + "+"
}

// adjustHydrogens changes the count of the trailing (or leading) hydrogen
// group by delta: NH3 → NH4, CH3NH2 → CH3NH3, HA → A.
func adjustHydrogens(s string, delta int) string {
	n := len(s)
	if n >= 2 && s[n-2] == 'H' && s[n-1] >= '2' && s[n-1] <= '9' {
		count := int(s[n-1]-'0') + delta
		switch {
		case count <= 0:
			return s[:n-2]
		case count == 1:
			return s[:n-1]
		case count <= 9:
			return s[:n-1] + string(rune('0'+count))
		}
	}
	if n >= 1 && s[n-1] == 'H' {
		if delta > 0 {
			return s + "2"
		}
		return s[:n-1]
	}
	if delta > 0 {
		return s + "H"
	}
	if strings.HasPrefix(s, "H") && n > 1 {
		return s[1:]
	}
	return s
}

// DeltaN is moles of gaseous products minus reactants.
func DeltaN(spec ReactionSpec) float64 {
	dn := new(big.Rat)
	for _, sp := range spec.Species {
		if sp.Role == Product {
			dn.Add(dn, sp.Coefficient.Rat())
		} else {
			dn.Sub(dn, sp.Coefficient.Rat())
		}
	}
	f, _ := dn.Float64()
	return f
}

// KpFromKc returns Kc·(RT)^Δn.
func KpFromKc(kc, temperature, deltaN float64) (float64, error) {
	if err := checkConversion(kc, temperature); err != nil {
		return 0, err
	}
	return kc * math.Pow(GasConstant*temperature, deltaN), nil
}

// KcFromKp returns Kp/(RT)^Δn.
func KcFromKp(kp, temperature, deltaN float64) (float64, error) {
	if err := checkConversion(kp, temperature); err != nil {
		return 0, err
	}
	return kp / math.Pow(GasConstant*temperature, deltaN), nil
}

func checkConversion(k, temperature float64) error {
	if !(k > 0) || math.IsInf(k, 0) {
		return &ReactionError{Msg: fmt.Sprintf("K must be positive and finite, got %g", k)}
	}
	if !(temperature > 0) || math.IsInf(temperature, 0) {
		return &ReactionError{Msg: fmt.Sprintf("temperature must be positive kelvin, got %g", temperature)}
	}
	return nil
}

// ============================================================
// Selection and verification
// ============================================================

type EquilibriumResult struct {
	Type         EquilibriumType    `json:"type" yaml:"type"`
	Equation     string             `json:"equation" yaml:"equation"`
	LaTeX        string             `json:"latex" yaml:"latex"`
	Extent       float64            `json:"extent" yaml:"extent"`
	Values       map[string]float64 `json:"values" yaml:"values"`
	Order        []string           `json:"order" yaml:"order"`
	K            float64            `json:"k" yaml:"k"`
	RecomputedK  float64            `json:"recomputed_k" yaml:"recomputed_k"`
	Delta        float64            `json:"delta" yaml:"delta"`
	Alternatives []float64          `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	Warnings     []Warning          `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Ka and Kb only.
	Approx *float64 `json:"approx,omitempty" yaml:"approx,omitempty"`
	PH     *float64 `json:"ph,omitempty" yaml:"ph,omitempty"`
	POH    *float64 `json:"poh,omitempty" yaml:"poh,omitempty"`
}

// SolveEquilibrium builds and solves spec, then picks the physically
// realised extent: the real root closest to zero that keeps every species
// non-negative. The selected values are checked by recomputing K; a
// mismatch beyond the verify tolerance is a warning, not an error.
func SolveEquilibrium(ctx context.Context, spec ReactionSpec, opts ...Option) (*EquilibriumResult, error) {
	eq, err := BuildEquation(spec)
	if err != nil {
		return nil, err
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	// The numeric fallback only needs to search the physical interval.
	solveOpts := []Option{WithSearchRange(extentBounds(spec))}
	solveOpts = append(solveOpts, opts...)
	sol, err := Solve(ctx, eq, solveOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s equilibrium: %w", spec.Type, err)
	}

	// Back-substitution can fail in float near a vanishing species even
	// for the physical root, so every real root is a candidate and the
	// recomputed K below decides whether to warn.
	var xs []float64
	for _, r := range sol.ByKind(RootReal) {
		xs = append(xs, r.Value)
	}
	sel, err := SelectExtent(spec, xs)
	if err != nil {
		return nil, fmt.Errorf("%s equilibrium: %w", spec.Type, err)
	}

	res := &EquilibriumResult{
		Type:         spec.Type,
		Equation:     eq.String(),
		LaTeX:        eq.LaTeX(),
		Extent:       sel.Extent,
		Values:       sel.Values,
		K:            spec.K,
		Alternatives: sel.Alternatives,
		Warnings:     sel.Warnings,
	}
	for _, sp := range spec.Species {
		res.Order = append(res.Order, sp.Name)
	}

	res.RecomputedK = recomputeK(spec, sel.Values)
	res.Delta = math.Abs(res.RecomputedK - spec.K)
	if !(res.Delta <= o.VerifyTolerance*spec.K) {
		res.Warnings = append(res.Warnings, Warning{
			Kind:    WarnVerification,
			Message: fmt.Sprintf("recomputed K %g differs from %g by %g", res.RecomputedK, spec.K, res.Delta),
		})
	}

	if spec.Type == Ka || spec.Type == Kb {
		acidBaseExtras(spec, res)
	}
	return res, nil
}

// Selection is the extent picked among candidate roots.
type Selection struct {
	Extent       float64
	Values       map[string]float64
	Alternatives []float64
	Warnings     []Warning
}

// SelectExtent keeps the candidates that leave every species non-negative
// and picks the one closest to zero. Two valid candidates of equal
// magnitude produce a WarnAmbiguousRoot warning and the non-negative one
// is kept. No valid candidate is ErrNoPhysicalRoot.
func SelectExtent(spec ReactionSpec, candidates []float64) (*Selection, error) {
	type candidate struct {
		x      float64
		values map[string]float64
	}
	var valid []candidate
	for _, x := range candidates {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if values, ok := speciesValues(spec, x); ok {
			valid = append(valid, candidate{x, values})
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("none of %d real roots keeps every species non-negative: %w", len(candidates), ErrNoPhysicalRoot)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		ai, aj := math.Abs(valid[i].x), math.Abs(valid[j].x)
		if ai != aj {
			return ai < aj
		}
		return valid[i].x > valid[j].x
	})

	sel := &Selection{}
	if len(valid) > 1 && closeTo(math.Abs(valid[0].x), math.Abs(valid[1].x)) {
		if valid[0].x < 0 && valid[1].x >= 0 {
			valid[0], valid[1] = valid[1], valid[0]
		}
		sel.Warnings = append(sel.Warnings, Warning{
			Kind:    WarnAmbiguousRoot,
			Message: fmt.Sprintf("extents %g and %g are equally close to zero; kept %g", valid[0].x, valid[1].x, valid[0].x),
		})
	}
	sel.Extent = valid[0].x
	sel.Values = valid[0].values
	for _, c := range valid[1:] {
		sel.Alternatives = append(sel.Alternatives, c.x)
	}
	return sel, nil
}

// speciesValues evaluates initial ± ν·x for every species. Values a few
// ulps below zero are clamped; anything more negative rejects x.
func speciesValues(spec ReactionSpec, x float64) (map[string]float64, bool) {
	values := make(map[string]float64, len(spec.Species))
	for _, sp := range spec.Species {
		c0 := spec.Initial[sp.Name]
		shift := sp.Coefficient.Float64() * x
		v := c0 + shift
		if sp.Role == Reactant {
			v = c0 - shift
		}
		if v < 0 {
			if v < -1e-12*math.Max(1, math.Max(c0, math.Abs(shift))) {
				return nil, false
			}
			v = 0
		}
		values[sp.Name] = v
	}
	return values, true
}

func recomputeK(spec ReactionSpec, values map[string]float64) float64 {
	num, den := 1.0, 1.0
	for _, sp := range spec.Species {
		term := math.Pow(values[sp.Name], sp.Coefficient.Float64())
		if sp.Role == Product {
			num *= term
		} else {
			den *= term
		}
	}
	return num / den
}

func acidBaseExtras(spec ReactionSpec, res *EquilibriumResult) {
	var c0 float64
	for _, sp := range spec.Species {
		if sp.Role == Reactant {
			c0 = spec.Initial[sp.Name]
		}
	}
	approx := math.Sqrt(spec.K * c0)
	res.Approx = &approx

	ion := ionSpecies(spec)
	conc, ok := res.Values[ion]
	if !ok || conc <= 0 {
		return
	}
	p := -math.Log10(conc)
	other := pKw - p
	if spec.Type == Ka {
		res.PH, res.POH = &p, &other
	} else {
		res.POH, res.PH = &p, &other
	}
}

// ionSpecies picks the explicit Ion, else H+ (or H3O+) for Ka and OH- for
// Kb, else the first product.
func ionSpecies(spec ReactionSpec) string {
	if spec.Ion != "" {
		return spec.Ion
	}
	want := []string{"H+", "H3O+"}
	if spec.Type == Kb {
		want = []string{"OH-"}
	}
	for _, w := range want {
		for _, sp := range spec.Species {
			if sp.Role == Product && sp.Name == w {
				return w
			}
		}
	}
	for _, sp := range spec.Species {
		if sp.Role == Product {
			return sp.Name
		}
	}
	return ""
}
