package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/parser"
	"mimic/internal/semantic"
)

// build parses and lowers src through the full front end, returning the
// resulting module alongside the diagnostics collector the passes under
// test should report into.
func build(t *testing.T, src string) (*ir.Module, *diag.Collector) {
	t.Helper()
	prog, scanErrs, parseErrs := parser.ParseSource("t.mc", src)
	require.Empty(t, scanErrs)
	require.Empty(t, parseErrs)
	d := diag.NewCollector()
	info := semantic.Analyze(prog, d)
	require.False(t, d.HasErrors())
	return ir.BuildProgram(prog, info), d
}

func findFunction(t *testing.T, m *ir.Module, name string) *ir.Function {
	t.Helper()
	fn := m.FindFunction(name)
	require.NotNil(t, fn, "function %q not found", name)
	return fn
}

func TestAlgebraicSimpIdentityMulOneAddZero(t *testing.T) {
	m, _ := build(t, `i32 f(i32 x) { return x * 1 + 0; }`)
	fn := findFunction(t, m, "f")

	pass := &AlgebraicSimp{}
	for _, b := range fn.Blocks {
		pass.RunOnBlock(b)
	}

	out := ir.Print(m)
	require.NotContains(t, out, "mul")
	require.NotContains(t, out, "add")
}

func TestAlgebraicSimpPowerOfTwoDivisionBecomesShift(t *testing.T) {
	m, _ := build(t, `i32 f(i32 x) { return x / 8; }`)
	fn := findFunction(t, m, "f")

	pass := &AlgebraicSimp{}
	for _, b := range fn.Blocks {
		pass.RunOnBlock(b)
	}

	out := ir.Print(m)
	require.NotContains(t, out, "sdiv")
	require.Contains(t, out, "ashr")
}

func TestAlgebraicSimpLeavesConstantDivisionByZeroUnfolded(t *testing.T) {
	m, _ := build(t, `i32 f(i32 x) { return x / 0; }`)
	fn := findFunction(t, m, "f")

	pass := &AlgebraicSimp{}
	for _, b := range fn.Blocks {
		pass.RunOnBlock(b)
	}

	out := ir.Print(m)
	require.Contains(t, out, "sdiv")
}

func TestConstantFoldWarnsAndLeavesDivisionByZero(t *testing.T) {
	m, d := build(t, `i32 f() { return 1 / 0; }`)
	fn := findFunction(t, m, "f")

	pass := &ConstantFold{Diags: d}
	pass.RunOnFunction(fn)

	out := ir.Print(m)
	require.Contains(t, out, "sdiv")
	found := false
	for _, diagnostic := range d.All() {
		if diagnostic.Code == "W0902" {
			found = true
		}
	}
	require.True(t, found, "expected a W0902 division-by-constant-zero warning")
}

func TestConstantFoldFoldsArithmetic(t *testing.T) {
	m, d := build(t, `i32 f() { return 2 + 3; }`)
	fn := findFunction(t, m, "f")

	pass := &ConstantFold{Diags: d}
	pass.RunOnFunction(fn)

	out := ir.Print(m)
	require.NotContains(t, out, "add")
	require.Contains(t, out, "ret 5")
}

func TestDGERemovesUnreferencedInternalGlobal(t *testing.T) {
	m, d := build(t, `
		static i32 unused = 7;
		i32 f() { return 1; }
	`)

	pass := &DGE{Diags: d}
	pass.RunOnModule(m)

	require.Nil(t, m.FindGlobal("unused"))
	found := false
	for _, diagnostic := range d.All() {
		if diagnostic.Code == "W0901" {
			found = true
		}
	}
	require.True(t, found, "expected a W0901 removed-unused warning")
}

func TestDGEKeepsReferencedInternalGlobal(t *testing.T) {
	m, d := build(t, `
		static i32 counter = 0;
		i32 f() { return counter; }
	`)

	pass := &DGE{Diags: d}
	pass.RunOnModule(m)

	require.NotNil(t, m.FindGlobal("counter"))
}

func TestDGERemovesUnreferencedInlineDeclaration(t *testing.T) {
	m, d := build(t, `
		inline i32 unused(i32 x) { return x; }
		i32 f() { return 1; }
	`)

	pass := &DGE{Diags: d}
	pass.RunOnModule(m)

	require.Nil(t, m.FindFunction("unused"))
}

func TestDCEDropsUnusedPureResultButKeepsCallSideEffect(t *testing.T) {
	m, _ := build(t, `
		i32 g(i32 x);
		i32 f(i32 x) {
			i32 a = x + 1;
			g(x);
			return x;
		}
	`)
	fn := findFunction(t, m, "f")

	pass := &DCE{}
	for changed := true; changed; {
		changed = pass.RunOnFunction(fn)
	}

	out := ir.Print(m)
	require.NotContains(t, out, "add")
	require.Contains(t, out, "call")
}

func TestGVNDeduplicatesRedundantExpression(t *testing.T) {
	m, _ := build(t, `
		i32 f(i32 a, i32 b) {
			i32 x = a + b;
			i32 y = a + b;
			return x + y;
		}
	`)
	fn := findFunction(t, m, "f")

	pass := &GVN{}
	for _, b := range fn.Blocks {
		pass.RunOnBlock(b)
	}

	addCount := 0
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions() {
			if inst.Op == ir.OpAdd {
				addCount++
			}
		}
	}
	require.Equal(t, 2, addCount) // one surviving a+b, plus x+y
}

func TestInlinerCopiesSmallInlineCallee(t *testing.T) {
	m, _ := build(t, `
		inline i32 square(i32 x) { return x * x; }
		i32 f(i32 a) { return square(a); }
	`)
	fn := findFunction(t, m, "f")

	pass := &Inliner{}
	pass.RunOnModule(m)

	out := ir.Print(m)
	require.NotContains(t, out, "call")
	_ = fn
}
