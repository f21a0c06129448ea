package langserver_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"mimic/internal/langserver"
)

const sampleSource = `
struct Point {
	i32 x;
	i32 y;
}

i32 add(i32 a, i32 b) {
	let sum = a + b;
	return sum;
}
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.mc")
	require.NoError(t, os.WriteFile(path, []byte(sampleSource), 0o644))
	return path
}

func TestTextDocumentSemanticTokensFull(t *testing.T) {
	handler := langserver.NewHandler()

	absPath := writeSample(t)
	uri := "file://" + filepath.ToSlash(absPath)

	ctx := &glsp.Context{}
	params := &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}

	tokens, err := handler.TextDocumentSemanticTokensFull(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.NotEmpty(t, tokens.Data)

	decoded, err := decodeSemanticTokens(tokens.Data)
	require.NoError(t, err)

	types := make(map[string]int)
	for _, tok := range decoded {
		types[tok.Type]++
	}
	require.Greater(t, types["type"], 0, "should have a type token for the struct")
	require.Greater(t, types["property"], 0, "should have property tokens for struct fields")
	require.Greater(t, types["function"], 0, "should have a function token")
	require.Greater(t, types["parameter"], 0, "should have parameter tokens")
	require.Greater(t, types["variable"], 0, "should have a variable token for the let binding")
}

func TestTextDocumentDidOpenSucceedsForValidSource(t *testing.T) {
	handler := langserver.NewHandler()
	absPath := writeSample(t)

	err := handler.TextDocumentDidOpen(&glsp.Context{}, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file://" + filepath.ToSlash(absPath)},
	})
	require.NoError(t, err)
}

type decodedToken struct {
	Line   uint32
	Char   uint32
	Length uint32
	Type   string
}

func decodeSemanticTokens(raw []uint32) ([]decodedToken, error) {
	if len(raw)%5 != 0 {
		return nil, fmt.Errorf("raw token data length %d is not a multiple of 5", len(raw))
	}
	var decoded []decodedToken
	var line, char uint32
	for i := 0; i < len(raw); i += 5 {
		deltaLine, deltaStart, length, typeIdx := raw[i], raw[i+1], raw[i+2], raw[i+3]
		if deltaLine == 0 {
			char += deltaStart
		} else {
			line += deltaLine
			char = deltaStart
		}
		decoded = append(decoded, decodedToken{Line: line, Char: char, Length: length, Type: langserver.SemanticTokenTypes[typeIdx]})
	}
	return decoded, nil
}
