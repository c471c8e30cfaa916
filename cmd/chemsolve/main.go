// Command chemsolve is the command line front end for the chemsolve engine.
//
// Usage:
//
//	chemsolve eval "2*3 + 5^2 - sqrt(16)"
//	chemsolve solve "2*x + 5 = 15"
//	chemsolve solve -unknown t "log(t)" "2"
//	chemsolve equilibrium -f reaction.yaml -format yaml
//	chemsolve weak-acid -species HA -c0 0.1 -k 1.8e-5
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/njchilds90/chemsolve"
	"github.com/njchilds90/chemsolve/internal/logger"
)

const usage = `usage: chemsolve <command> [flags] [args]

commands:
  eval <expr>                       evaluate a constant expression
  solve [-unknown x] <lhs> [rhs]    solve lhs = rhs (or a single "lhs = rhs")
  equilibrium -f reaction.yaml      solve an equilibrium described in YAML
  weak-acid -species HA -c0 C -k K  weak acid dissociation and pH
  weak-base -species B -c0 C -k K   weak base dissociation and pH
`

var errUsage = errors.New("usage")

func main() {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(envOr("CHEMSOLVE_LOG_LEVEL", "warn")),
		OutputPath: "stderr",
		Encoding:   "console",
	})
	defer logger.Sync()

	err := run(context.Background(), os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	default:
		logger.Named("cli").Debug("command failed", zap.Error(err), zap.String("kind", string(chemsolve.KindOf(err))))
		fmt.Fprintf(os.Stderr, "chemsolve: %s: %v\n", chemsolve.KindOf(err), err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "eval":
		return runEval(args, out)
	case "solve":
		return runSolve(ctx, args, out)
	case "equilibrium":
		return runEquilibrium(ctx, args, out)
	case "weak-acid", "weak-base":
		return runWeak(ctx, cmd, args, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func runEval(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	format := fs.String("format", "text", "output format: text, json or yaml")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	ev, err := chemsolve.EvaluateExpression(strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	if *format == "text" {
		fmt.Fprintf(out, "exact:  %s\nvalue:  %.15g\n", ev.Exact, ev.Value)
		return nil
	}
	return write(out, *format, ev)
}

func runSolve(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	unknown := fs.String("unknown", "x", "variable to solve for")
	timeout := fs.Duration("timeout", 2*time.Second, "solve time budget")
	format := fs.String("format", "text", "output format: text, json or yaml")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	var lhs, rhs string
	switch fs.NArg() {
	case 1:
		var found bool
		lhs, rhs, found = strings.Cut(fs.Arg(0), "=")
		if !found {
			rhs = "0"
		}
	case 2:
		lhs, rhs = fs.Arg(0), fs.Arg(1)
	default:
		return errUsage
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	res, err := chemsolve.SolveEquation(ctx, lhs, rhs, *unknown)
	if err != nil {
		return err
	}
	if *format != "text" {
		return write(out, *format, res)
	}
	fmt.Fprintf(out, "%s   [%s]\n", res.Equation, res.Category)
	for i, r := range res.Roots {
		if res.ExactRoots != nil && res.ExactRoots[i] != fmt.Sprintf("%g", r) {
			fmt.Fprintf(out, "  %s = %s ≈ %.10g\n", *unknown, res.ExactRoots[i], r)
			continue
		}
		fmt.Fprintf(out, "  %s = %.10g\n", *unknown, r)
	}
	for _, r := range res.Complex {
		fmt.Fprintf(out, "  %s = %s (complex)\n", *unknown, r)
	}
	for _, r := range res.Undefined {
		fmt.Fprintf(out, "  %s = %g rejected: equation undefined there\n", *unknown, r.Value)
	}
	if len(res.Roots) == 0 {
		fmt.Fprintln(out, "  no real roots")
	}
	return nil
}

func runEquilibrium(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("equilibrium", flag.ContinueOnError)
	file := fs.String("f", "", "reaction YAML file (- for stdin)")
	format := fs.String("format", "text", "output format: text, json or yaml")
	if err := fs.Parse(args); err != nil || *file == "" {
		return errUsage
	}
	var data []byte
	var err error
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read reaction: %w", err)
	}
	spec, err := decodeReaction(data)
	if err != nil {
		return err
	}
	return solveAndPrint(ctx, spec, *format, out)
}

func decodeReaction(data []byte) (chemsolve.ReactionSpec, error) {
	var spec chemsolve.ReactionSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		var rerr *chemsolve.ReactionError
		if errors.As(err, &rerr) {
			return spec, err
		}
		return spec, &chemsolve.ReactionError{Msg: err.Error()}
	}
	return spec, nil
}

func runWeak(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	species := fs.String("species", "", "acid or base formula")
	c0 := fs.Float64("c0", 0, "initial concentration (mol/L)")
	k := fs.Float64("k", 0, "Ka or Kb")
	format := fs.String("format", "text", "output format: text, json or yaml")
	if err := fs.Parse(args); err != nil || *species == "" {
		return errUsage
	}
	spec := chemsolve.WeakAcid(*species, *c0, *k)
	if cmd == "weak-base" {
		spec = chemsolve.WeakBase(*species, *c0, *k)
	}
	return solveAndPrint(ctx, spec, *format, out)
}

func solveAndPrint(ctx context.Context, spec chemsolve.ReactionSpec, format string, out io.Writer) error {
	res, err := chemsolve.SolveEquilibrium(ctx, spec)
	if err != nil {
		return err
	}
	if format != "text" {
		return write(out, format, res)
	}
	fmt.Fprintf(out, "%s: %s\n", res.Type, res.Equation)
	fmt.Fprintf(out, "  extent x = %.6g\n", res.Extent)
	for _, name := range res.Order {
		fmt.Fprintf(out, "  [%s] = %.6g\n", name, res.Values[name])
	}
	fmt.Fprintf(out, "  K recomputed = %.6g (delta %.3g)\n", res.RecomputedK, res.Delta)
	if res.Approx != nil {
		fmt.Fprintf(out, "  small-x approximation = %.6g\n", *res.Approx)
	}
	if res.PH != nil {
		fmt.Fprintf(out, "  pH = %.4f  pOH = %.4f\n", *res.PH, *res.POH)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}

func write(out io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q: %w", format, errUsage)
}
