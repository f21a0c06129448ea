package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleFunction(t *testing.T) {
	src := `i32 f(i32 x) { return x * 1 + 0; }`
	prog, scanErrs, parseErrs := ParseSource("test.mc", src)
	require.Empty(t, scanErrs)
	require.Empty(t, parseErrs)
	require.Len(t, prog.Functions, 1)

	fn := prog.Functions[0]
	require.Equal(t, "f", fn.Name)
	require.Len(t, fn.Params, 1)
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Stmts, 1)
}

func TestParseStructAndGlobal(t *testing.T) {
	src := `
struct Point { i32 x; i32 y; }
static i32 counter = 0;
`
	prog, scanErrs, parseErrs := ParseSource("test.mc", src)
	require.Empty(t, scanErrs)
	require.Empty(t, parseErrs)
	require.Len(t, prog.Structs, 1)
	require.Equal(t, "Point", prog.Structs[0].Name)
	require.Len(t, prog.Structs[0].Fields, 2)
	require.Len(t, prog.Globals, 1)
	require.Equal(t, "counter", prog.Globals[0].Name)
}

func TestParseWhileLoop(t *testing.T) {
	src := `i32 f(i32 n) { i32 s = 0; while (n) { s = s + n; n = n - 1; } return s; }`
	prog, scanErrs, parseErrs := ParseSource("test.mc", src)
	require.Empty(t, scanErrs)
	require.Empty(t, parseErrs)
	require.Len(t, prog.Functions, 1)
}

func TestParserRecoversFromSyntaxError(t *testing.T) {
	src := `i32 f(i32 x) { return x + ; } i32 g(i32 y) { return y; }`
	prog, _, parseErrs := ParseSource("test.mc", src)
	require.NotEmpty(t, parseErrs)
	require.Len(t, prog.Functions, 2)
}
