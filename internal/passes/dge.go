// Package passes implements the mid-level IR transformations: dead
// global elimination, dead code elimination, constant folding, algebraic
// simplification, global value numbering, and inlining. Each pass works against the use-def
// IR model's ReplaceAllUsesWith/Erase contract instead of rebuilding
// instruction slices by hand, targeting MimiC's register-machine
// backend.
package passes

import (
	"mimic/internal/ast"
	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/passmgr"
)

func init() {
	passmgr.DefaultRegistry.Register(
		passmgr.Descriptor{Name: "dge", Kind: passmgr.ModuleKind, Stages: passmgr.PreOpt | passmgr.Opt | passmgr.PostOpt},
		func(diags *diag.Collector) interface{} { return &DGE{Diags: diags} },
	)
}

// DGE removes top-level values with empty use sets that are either a
// body-less function or carry Internal/Inline linkage.
type DGE struct {
	Diags *diag.Collector
}

func (p *DGE) Name() string { return "dge" }

func (p *DGE) RunOnModule(m *ir.Module) bool {
	changed := false

	var keptFuncs []*ir.Function
	for _, fn := range m.Functions {
		if fn.HasUses() {
			keptFuncs = append(keptFuncs, fn)
			continue
		}
		eliminable := !fn.HasBody() || fn.Linkage == ir.Internal || fn.Linkage == ir.Inline
		if !eliminable {
			keptFuncs = append(keptFuncs, fn)
			continue
		}
		if fn.HasBody() {
			p.warnRemoved(fn.Name, "function")
		}
		changed = true
	}
	m.Functions = keptFuncs

	var keptGlobals []*ir.Global
	for _, g := range m.Globals {
		eliminable := !g.HasUses() && (g.Linkage == ir.Internal || g.Linkage == ir.Inline)
		if !eliminable {
			keptGlobals = append(keptGlobals, g)
			continue
		}
		p.warnRemoved(g.Name, "global")
		changed = true
	}
	m.Globals = keptGlobals

	return changed
}

func (p *DGE) warnRemoved(name, kind string) {
	if p.Diags == nil {
		return
	}
	p.Diags.Warnf(ast.Position{}, diag.SourceErrorKind, "W0901", "removed unused %s %q", kind, name)
}
