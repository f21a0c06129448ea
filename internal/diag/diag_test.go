package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
	"mimic/internal/ast"
)

func TestExitCodeIsErrorCountClamped(t *testing.T) {
	c := NewCollector()
	require.Equal(t, 0, c.ExitCode())

	for i := 0; i < 300; i++ {
		c.Errorf(ast.Position{Line: i}, SourceErrorKind, "E0100", "bad thing")
	}
	require.Equal(t, 255, c.ExitCode())
}

func TestWarningsDoNotCountTowardExitCode(t *testing.T) {
	c := NewCollector()
	c.Warnf(ast.Position{Line: 1}, SourceErrorKind, "E0800", "suspicious")
	require.Equal(t, 0, c.ExitCode())
	require.False(t, c.HasErrors())
	require.Len(t, c.All(), 1)
}

func TestPlainFormat(t *testing.T) {
	d := Diagnostic{Level: Error, Message: "unexpected token", Position: ast.Position{Filename: "a.mc", Line: 3, Column: 5}}
	require.Equal(t, "a.mc:3:5: error: unexpected token", Plain(d))
}
