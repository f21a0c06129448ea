package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats Diagnostics against the source they came from, in a
// Rust-like caret style: bold level tag, dimmed gutter, underline
// marker under the offending column.
type Reporter struct {
	source string
	lines  []string
}

func NewReporter(source string) *Reporter {
	return &Reporter{source: source, lines: strings.Split(source, "\n")}
}

// Plain renders the single-line form used for stderr output:
// "<file>:<line>:<col>: error|warning: <message>".
func Plain(d Diagnostic) string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Position.Filename, d.Position.Line, d.Position.Column, d.Level, d.Message)
}

// Format renders the fuller caret-annotated form used for interactive
// terminal output.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := r.levelColor(d.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message))
	} else {
		out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))
	}

	width := lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)
	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), d.Position.Filename, d.Position.Line, d.Position.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Position.Line >= 1 && d.Position.Line <= len(r.lines) {
		line := r.lines[d.Position.Line-1]
		out.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("│"), line))
		marker := strings.Repeat(" ", max0(d.Position.Column-1)) + levelColor("^")
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))
	}
	return out.String()
}

func (r *Reporter) levelColor(l Level) func(...interface{}) string {
	if l == Warning {
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return color.New(color.FgRed, color.Bold).SprintFunc()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		return 3
	}
	return w
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
