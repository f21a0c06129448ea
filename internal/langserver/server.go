package langserver

import (
	"log"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const name = "mmcc"

// Serve starts an LSP server communicating over stdio, blocking until
// the client disconnects or the transport fails.
func Serve(version string) error {
	commonlog.Configure(1, nil)

	h := NewHandler()
	handler := protocol.Handler{
		Initialize:                     h.Initialize,
		Initialized:                    h.Initialized,
		Shutdown:                       h.Shutdown,
		SetTrace:                       h.SetTrace,
		TextDocumentDidOpen:            h.TextDocumentDidOpen,
		TextDocumentDidClose:           h.TextDocumentDidClose,
		TextDocumentDidChange:          h.TextDocumentDidChange,
		TextDocumentCompletion:         h.TextDocumentCompletion,
		TextDocumentSemanticTokensFull: h.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, name, false)
	log.Println("mmcc-lsp: starting MimiC language server")
	return s.RunStdio()
}
