// Package langserver exposes MimiC's front end over the Language Server
// Protocol. Diagnostics come from the same parser/semantic stages
// cmd/mmcc drives; there is no separate LSP-specific analysis.
package langserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"mimic/internal/ast"
	"mimic/internal/diag"
	"mimic/internal/parser"
	"mimic/internal/semantic"
)

// SemanticTokenTypes is the set of token kinds this server reports,
// indexed by collectSemanticTokens.
var SemanticTokenTypes = []string{
	"namespace",
	"type",
	"typeParameter",
	"function",
	"variable",
	"parameter",
	"property",
	"keyword",
	"number",
	"operator",
	"modifier",
}

// SemanticTokenModifiers is the bitmask vocabulary paired with
// SemanticTokenTypes.
var SemanticTokenModifiers = []string{
	"declaration",
	"definition",
	"readonly",
	"static",
	"deprecated",
	"abstract",
}

// Handler implements the LSP method set for MimiC sources.
type Handler struct {
	mu      sync.RWMutex
	content map[string]string
	asts    map[string]*ast.Program
}

// NewHandler creates a Handler with empty per-document state.
func NewHandler() *Handler {
	return &Handler{
		content: make(map[string]string),
		asts:    make(map[string]*ast.Program),
	}
}

// Initialize advertises the server's capabilities.
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Println("mmcc-lsp: Initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Println("mmcc-lsp: Initialized")
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	log.Println("mmcc-lsp: Shutdown")
	return nil
}

func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// TextDocumentDidOpen parses the opened file and reports diagnostics.
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Printf("mmcc-lsp: opened %s\n", params.TextDocument.URI)
	diagnostics, err := h.updateAST(params.TextDocument.URI)
	if err != nil {
		return fmt.Errorf("failed to update AST: %w", err)
	}
	sendDiagnosticNotification(ctx, params.TextDocument.URI, diagnostics)
	return nil
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Printf("mmcc-lsp: closed %s\n", params.TextDocument.URI)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return fmt.Errorf("failed to convert URI %s: %w", params.TextDocument.URI, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.content, path)
	delete(h.asts, path)
	return nil
}

// TextDocumentDidChange re-parses the file on every full-document change
// notification (TextDocumentSyncKindFull, advertised above).
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	log.Printf("mmcc-lsp: changed %s\n", params.TextDocument.URI)
	diagnostics, err := h.updateAST(params.TextDocument.URI)
	if err != nil {
		return fmt.Errorf("failed to update AST: %w", err)
	}
	sendDiagnosticNotification(ctx, params.TextDocument.URI, diagnostics)
	return nil
}

// TextDocumentCompletion has no MimiC-specific suggestions yet.
func (h *Handler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (interface{}, error) {
	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        []protocol.CompletionItem{},
	}, nil
}

// TextDocumentSemanticTokensFull walks the cached AST for the document
// and encodes tokens in LSP delta-line/delta-start wire format.
func (h *Handler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", params.TextDocument.URI, err)
	}

	prog, err := h.getOrUpdateAST(ctx, path, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return &protocol.SemanticTokens{}, nil
	}

	tokens := collectSemanticTokens(prog)

	var data []uint32
	var prevLine, prevStart uint32
	for _, tok := range tokens {
		deltaLine := tok.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = tok.StartChar - prevStart
		} else {
			deltaStart = tok.StartChar
		}
		data = append(data, deltaLine, deltaStart, tok.Length, uint32(tok.TokenType), uint32(tok.TokenModifiers))
		prevLine, prevStart = tok.Line, tok.StartChar
	}

	return &protocol.SemanticTokens{Data: data}, nil
}

func (h *Handler) getOrUpdateAST(ctx *glsp.Context, path string, rawURI protocol.DocumentUri) (*ast.Program, error) {
	h.mu.RLock()
	prog, ok := h.asts[path]
	h.mu.RUnlock()
	if ok {
		return prog, nil
	}

	diagnostics, err := h.updateAST(rawURI)
	if err != nil {
		return nil, err
	}
	sendDiagnosticNotification(ctx, rawURI, diagnostics)

	h.mu.RLock()
	prog = h.asts[path]
	h.mu.RUnlock()
	return prog, nil
}

// updateAST reads, parses, and semantically analyzes the document at
// rawURI, caching the resulting AST on success and returning the full
// set of diagnostics either way.
func (h *Handler) updateAST(rawURI protocol.DocumentUri) ([]protocol.Diagnostic, error) {
	path, err := uriToPath(rawURI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", rawURI, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	prog, scanErrs, parseErrs := parser.ParseSource(path, string(content))
	if len(scanErrs) > 0 || len(parseErrs) > 0 {
		var diagnostics []protocol.Diagnostic
		diagnostics = append(diagnostics, ConvertScanErrors(scanErrs)...)
		diagnostics = append(diagnostics, ConvertParseErrors(parseErrs)...)
		return diagnostics, nil
	}

	collector := diag.NewCollector()
	semantic.Analyze(prog, collector)

	h.mu.Lock()
	h.content[path] = string(content)
	h.asts[path] = prog
	h.mu.Unlock()

	return ConvertDiagnostics(collector.All()), nil
}

func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.URI, diagnostics []protocol.Diagnostic) {
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	body, err := json.MarshalIndent(diagnostics, "", "  ")
	if err != nil {
		log.Println("mmcc-lsp: failed to marshal diagnostics:", err)
		return
	}
	log.Println("mmcc-lsp: sending diagnostics:", string(body))

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool { return &b }

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
