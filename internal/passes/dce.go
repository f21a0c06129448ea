package passes

import (
	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/passmgr"
)

func init() {
	passmgr.DefaultRegistry.Register(
		passmgr.Descriptor{Name: "dce", Kind: passmgr.FunctionKind, Stages: passmgr.Opt | passmgr.PostOpt, Deps: []string{"algebraic-simp", "constant-fold"}},
		func(diags *diag.Collector) interface{} { return &DCE{} },
	)
}

// DCE removes instructions with no observable side effects and no uses,
// repeatedly until fixpoint within the function, expressed directly
// against Erase/HasUses rather than rebuilding each block's instruction
// slice from a used-value set.
type DCE struct{}

func (p *DCE) Name() string { return "dce" }

func (p *DCE) RunOnFunction(fn *ir.Function) bool {
	changed := false
	for {
		roundChanged := false
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions() {
				if inst.HasEffects() {
					continue
				}
				if inst.Result() != nil && inst.Result().HasUses() {
					continue
				}
				ir.Erase(inst)
				roundChanged = true
			}
		}
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}
