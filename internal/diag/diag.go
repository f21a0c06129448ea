// Package diag implements the diagnostic taxonomy and collector: error
// codes plus a Rust-style caret reporter built on github.com/fatih/color.
package diag

import (
	"fmt"

	"mimic/internal/ast"
)

// Kind classifies the failure mode a Diagnostic reports; it is not a
// Go error type.
type Kind string

const (
	SourceErrorKind         Kind = "source"
	IRInvariantViolationKind Kind = "ir_invariant"
	PassFailureKind         Kind = "pass_failure"
	ResourceExhaustionKind  Kind = "resource_exhaustion"
	MisconfigurationKind    Kind = "misconfiguration"
)

// Level is the severity of a Diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
)

// Diagnostic is one reported problem, emitted at the most specific node
// available.
type Diagnostic struct {
	Level    Level
	Kind     Kind
	Code     string
	Message  string
	Position ast.Position
}

// Collector accumulates diagnostics across a compilation, plus a
// running error counter interrogated at pass boundaries to decide
// whether to abort. A Collector is not global state — it is threaded
// explicitly through the compiler's stages.
type Collector struct {
	diags []Diagnostic
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Report(d Diagnostic) { c.diags = append(c.diags, d) }

func (c *Collector) Errorf(pos ast.Position, kind Kind, code, format string, args ...interface{}) {
	c.Report(Diagnostic{Level: Error, Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Position: pos})
}

func (c *Collector) Warnf(pos ast.Position, kind Kind, code, format string, args ...interface{}) {
	c.Report(Diagnostic{Level: Warning, Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Position: pos})
}

// All returns every diagnostic reported so far, in report order — for
// deterministic output this is never reordered by severity or any other
// key.
func (c *Collector) All() []Diagnostic { return c.diags }

// ErrorCount is the running counter pass boundaries interrogate to
// decide whether to abort.
func (c *Collector) ErrorCount() int {
	n := 0
	for _, d := range c.diags {
		if d.Level == Error {
			n++
		}
	}
	return n
}

func (c *Collector) HasErrors() bool { return c.ErrorCount() > 0 }

// ExitCode is the diagnostic error count, clamped to 255.
func (c *Collector) ExitCode() int {
	n := c.ErrorCount()
	if n > 255 {
		return 255
	}
	return n
}
