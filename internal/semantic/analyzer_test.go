package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mimic/internal/diag"
	"mimic/internal/parser"
)

func analyze(t *testing.T, src string) (*Info, *diag.Collector) {
	t.Helper()
	prog, scanErrs, parseErrs := parser.ParseSource("t.mc", src)
	require.Empty(t, scanErrs)
	require.Empty(t, parseErrs)
	d := diag.NewCollector()
	info := Analyze(prog, d)
	return info, d
}

func TestAnalyzeSimpleFunctionNoErrors(t *testing.T) {
	_, d := analyze(t, `i32 add(i32 a, i32 b) { return a + b; }`)
	require.False(t, d.HasErrors())
}

func TestAnalyzeUndeclaredIdentifier(t *testing.T) {
	_, d := analyze(t, `i32 f() { return y; }`)
	require.True(t, d.HasErrors())
}

func TestAnalyzeCallArgCountMismatch(t *testing.T) {
	_, d := analyze(t, `
		i32 add(i32 a, i32 b) { return a + b; }
		i32 main() { return add(1); }
	`)
	require.True(t, d.HasErrors())
}

func TestAnalyzeStructRecursionRejected(t *testing.T) {
	_, d := analyze(t, `
		struct A { B b; }
		struct B { A a; }
	`)
	require.True(t, d.HasErrors())
}

func TestAnalyzeStructRecursionThroughPointerAllowed(t *testing.T) {
	_, d := analyze(t, `
		struct Node { Node* next; i32 val; }
	`)
	require.False(t, d.HasErrors())
}

func TestAnalyzeConstAssignmentRejected(t *testing.T) {
	_, d := analyze(t, `
		i32 f() {
			const let x = 1;
			x = 2;
			return x;
		}
	`)
	require.True(t, d.HasErrors())
}

func TestAnalyzeFieldAccessThroughPointer(t *testing.T) {
	_, d := analyze(t, `
		struct Point { i32 x; i32 y; }
		i32 getX(Point* p) { return p.x; }
	`)
	require.False(t, d.HasErrors())
}

func TestAnalyzeVoidReturnMismatch(t *testing.T) {
	_, d := analyze(t, `void f() { return 1; }`)
	require.True(t, d.HasErrors())
}
