// Command mmcc is the MimiC ahead-of-time compiler driver:
// mmcc [-O<0..3>] [-S | -emit-ir] [--dump-ast] [--dump-passes] [-o <out>] <input>
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"

	"mimic/internal/ast"
	"mimic/internal/codegen"
	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/langserver"
	"mimic/internal/parser"
	_ "mimic/internal/passes" // self-registers into passmgr.DefaultRegistry
	"mimic/internal/passmgr"
	"mimic/internal/regalloc"
	"mimic/internal/selector"
	"mimic/internal/semantic"
)

const version = "0.1.0"

var optFlagPattern = regexp.MustCompile(`^-O([0-3])$`)

// rewriteOptLevel splits a gcc/clang-style "-O2" argument into the
// "-O=2" form the standard flag package understands natively — flag has
// no notion of a concatenated short option plus value.
func rewriteOptLevel(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if m := optFlagPattern.FindStringSubmatch(a); m != nil {
			out = append(out, "-O="+m[1])
			continue
		}
		out = append(out, a)
	}
	return out
}

func main() {
	os.Exit(run(os.Args[1:]))
}

type options struct {
	optLevel   int
	emitIR     bool
	asm        bool
	dumpAST    bool
	dumpPasses bool
	outPath    string
	lsp        bool
}

func parseArgs(rawArgs []string) (*options, []string, error) {
	fs := flag.NewFlagSet("mmcc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &options{}
	fs.IntVar(&opts.optLevel, "O", 0, "optimization level 0-3")
	fs.BoolVar(&opts.asm, "S", false, "emit assembly (default output mode)")
	fs.BoolVar(&opts.emitIR, "emit-ir", false, "emit optimized SSA IR instead of assembly")
	fs.BoolVar(&opts.dumpAST, "dump-ast", false, "print a listing of top-level declarations")
	fs.BoolVar(&opts.dumpPasses, "dump-passes", false, "trace pass execution and registry contents to stderr")
	fs.StringVar(&opts.outPath, "o", "", "output path (default: stdout)")
	fs.BoolVar(&opts.lsp, "lsp", false, "run as a language server over stdio instead of compiling")

	if err := fs.Parse(rewriteOptLevel(rawArgs)); err != nil {
		return nil, nil, err
	}
	if opts.optLevel < 0 || opts.optLevel > 3 {
		return nil, nil, fmt.Errorf("optimization level must be 0-3, got %d", opts.optLevel)
	}
	return opts, fs.Args(), nil
}

func run(rawArgs []string) int {
	opts, args, err := parseArgs(rawArgs)
	if err != nil {
		color.Red("mmcc: %s", err)
		return 1
	}
	if opts.lsp {
		if err := langserver.Serve(version); err != nil {
			color.Red("mmcc: %s", err)
			return 1
		}
		return 0
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mmcc [-O<0..3>] [-S | -emit-ir] [-dump-ast] [-dump-passes] [-o <out>] <input>")
		return 1
	}
	return compile(args[0], opts)
}

func compile(path string, opts *options) int {
	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("mmcc: %s", err)
		return 1
	}

	prog, scanErrs, parseErrs := parser.ParseSource(path, string(source))
	if len(scanErrs) > 0 || len(parseErrs) > 0 {
		for _, e := range scanErrs {
			fmt.Fprintf(os.Stderr, "%s:%d:%d: error: %s\n", e.Position.Filename, e.Position.Line, e.Position.Column, e.Message)
		}
		for _, e := range parseErrs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return clamp(len(scanErrs) + len(parseErrs))
	}

	if opts.dumpAST {
		fmt.Print(dumpAST(prog))
	}

	diags := diag.NewCollector()
	info := semantic.Analyze(prog, diags)
	if diags.HasErrors() {
		printDiags(diags)
		return clamp(diags.ErrorCount())
	}

	mod := ir.BuildProgram(prog, info)

	mgr := passmgr.NewManager(passmgr.DefaultRegistry)
	if opts.dumpPasses {
		mgr.Trace = func(format string, args ...interface{}) { fmt.Fprintf(os.Stderr, format+"\n", args...) }
		for _, d := range passmgr.DefaultRegistry.ShowInfo() {
			fmt.Fprintf(os.Stderr, "pass %s kind=%d stages=%s threshold=%d deps=%v\n", d.Name, d.Kind, d.Stages, d.Threshold, d.Deps)
		}
	}

	for _, stage := range []passmgr.Stage{passmgr.PreOpt, passmgr.Opt, passmgr.PostOpt} {
		if err := mgr.Run(mod, stage, opts.optLevel, diags); err != nil {
			color.Red("mmcc: %s", err)
			return 1
		}
		if diags.HasErrors() {
			printDiags(diags)
			return clamp(diags.ErrorCount())
		}
	}

	var output string
	if opts.emitIR {
		output = ir.Print(mod)
	} else {
		mirProg := selector.Select(mod)
		text, err := codegen.Emit(mirProg, codegen.Options{Pool: regalloc.DefaultPool})
		if err != nil {
			color.Red("mmcc: %s", err)
			return 1
		}
		output = text
	}

	printDiags(diags)
	if err := writeOutput(opts.outPath, output); err != nil {
		color.Red("mmcc: %s", err)
		return 1
	}
	return clamp(diags.ErrorCount())
}

func writeOutput(outPath, text string) error {
	if outPath == "" || outPath == "-" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(outPath, []byte(text), 0o644)
}

func printDiags(d *diag.Collector) {
	for _, diagnostic := range d.All() {
		fmt.Fprintln(os.Stderr, diag.Plain(diagnostic))
	}
}

// clamp implements the exit-code rule: the diagnostic error count,
// clamped to 255.
func clamp(n int) int {
	if n > 255 {
		return 255
	}
	return n
}

// dumpAST renders a compact, deterministic listing of top-level items —
// not a full pretty-printer, just enough for -dump-ast to be useful
// during development (ast.Program.String() returns only "program").
func dumpAST(prog *ast.Program) string {
	var b strings.Builder
	for _, s := range prog.Structs {
		fmt.Fprintf(&b, "struct %s {\n", s.Name)
		for _, f := range s.Fields {
			fmt.Fprintf(&b, "  %s %s\n", f.Type, f.Name)
		}
		b.WriteString("}\n")
	}
	for _, g := range prog.Globals {
		fmt.Fprintf(&b, "global %s %s\n", g.Type, g.Name)
	}
	for _, fn := range prog.Functions {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = fmt.Sprintf("%s %s", p.Type, p.Name)
		}
		fmt.Fprintf(&b, "fn %s(%s) -> %s\n", fn.Name, strings.Join(params, ", "), fn.Ret)
	}
	return b.String()
}
