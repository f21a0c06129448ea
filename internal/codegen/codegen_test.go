package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/parser"
	"mimic/internal/regalloc"
	"mimic/internal/selector"
	"mimic/internal/semantic"
)

func build(t *testing.T, src string) *ir.Module {
	t.Helper()
	prog, scanErrs, parseErrs := parser.ParseSource("t.mc", src)
	require.Empty(t, scanErrs)
	require.Empty(t, parseErrs)
	d := diag.NewCollector()
	info := semantic.Analyze(prog, d)
	require.False(t, d.HasErrors())
	return ir.BuildProgram(prog, info)
}

func TestEmitProducesAssemblyWithPrologueAndReturn(t *testing.T) {
	m := build(t, `i32 f(i32 a, i32 b) { return a + b; }`)
	text, err := Emit(selector.Select(m), DefaultOptions)
	require.NoError(t, err)
	require.Contains(t, text, ".global f")
	require.Contains(t, text, "bx lr")
	require.Contains(t, text, "add")
}

func TestEmitElidesNoOpCopyAfterRegisterSubstitution(t *testing.T) {
	// A function whose single live value round-trips into the same
	// register it started in: the MOV that would copy it to itself
	// must not appear in the final text.
	m := build(t, `i32 f(i32 x) { return x; }`)
	prog := selector.Select(m)
	pool := regalloc.Pool{Registers: []string{"r4"}}
	text, err := Emit(prog, Options{Pool: pool})
	require.NoError(t, err)

	// Every remaining "mov rN, rN" pattern would indicate an un-elided
	// self-copy; scan for that shape directly.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "mov ") {
			continue
		}
		fields := strings.SplitN(strings.TrimPrefix(line, "mov "), ", ", 2)
		if len(fields) == 2 && fields[0] == fields[1] {
			t.Fatalf("un-elided self-copy survived: %q", line)
		}
	}
}

func TestEmitCollapsesTrivialBranchBeforeItsTarget(t *testing.T) {
	m := build(t, `
		i32 f(i32 x) {
			if (x) {
				return 1;
			}
			return 2;
		}
	`)
	text, err := Emit(selector.Select(m), DefaultOptions)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "b ") {
			continue
		}
		target := strings.TrimSpace(strings.TrimPrefix(line, "b "))
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			require.NotEqual(t, target+":", next, "a B immediately before its own target label must be collapsed")
		}
	}
}

func TestEmitSpillsToStackWithSingleRegisterPool(t *testing.T) {
	m := build(t, `i32 f(i32 a, i32 b, i32 c) { return a + b + c; }`)
	prog := selector.Select(m)
	pool := regalloc.Pool{Registers: []string{"r4"}}
	text, err := Emit(prog, Options{Pool: pool})
	require.NoError(t, err)
	require.Contains(t, text, "[fp")
}

func TestEmitRejectsEmptyRegisterPool(t *testing.T) {
	m := build(t, `i32 f(i32 x) { return x; }`)
	_, err := Emit(selector.Select(m), Options{Pool: regalloc.Pool{}})
	require.Error(t, err)
}
