package langserver

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"mimic/internal/diag"
	"mimic/internal/parser"
)

// ConvertScanErrors transforms scanner errors into LSP diagnostics.
func ConvertScanErrors(scanErrors []parser.ScanError) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	for _, e := range scanErrors {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(zeroFloor(e.Position.Line - 1)), Character: uint32(zeroFloor(e.Position.Column - 1))},
				End:   protocol.Position{Line: uint32(zeroFloor(e.Position.Line - 1)), Character: uint32(e.Position.Column + 3)},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("mmcc-scanner"),
			Message:  e.Message,
		})
	}
	return diagnostics
}

// ConvertParseErrors transforms parser errors into LSP diagnostics.
func ConvertParseErrors(parseErrors []parser.ParseError) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	for _, e := range parseErrors {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(zeroFloor(e.Position.Line - 1)), Character: uint32(zeroFloor(e.Position.Column - 1))},
				End:   protocol.Position{Line: uint32(zeroFloor(e.Position.Line - 1)), Character: uint32(e.Position.Column + 5)},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("mmcc-parser"),
			Message:  e.Message,
		})
	}
	return diagnostics
}

// ConvertDiagnostics transforms semantic-stage diagnostics (the
// Collector's accumulated output) into LSP diagnostics.
func ConvertDiagnostics(ds []diag.Diagnostic) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	for _, d := range ds {
		sev := protocol.DiagnosticSeverityError
		if d.Level == diag.Warning {
			sev = protocol.DiagnosticSeverityWarning
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(zeroFloor(d.Position.Line - 1)), Character: uint32(zeroFloor(d.Position.Column - 1))},
				End:   protocol.Position{Line: uint32(zeroFloor(d.Position.Line - 1)), Character: uint32(d.Position.Column + 5)},
			},
			Severity: ptrSeverity(sev),
			Source:   ptrString("mmcc-" + string(d.Kind)),
			Message:  d.Message,
		})
	}
	return diagnostics
}

func zeroFloor(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity { return &s }

func ptrString(s string) *string { return &s }
