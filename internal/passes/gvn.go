package passes

import (
	"fmt"
	"strings"

	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/passmgr"
)

func init() {
	passmgr.DefaultRegistry.Register(
		passmgr.Descriptor{Name: "gvn", Kind: passmgr.BlockKind, Stages: passmgr.Opt, Threshold: 1, Deps: []string{"algebraic-simp", "constant-fold"}},
		func(diags *diag.Collector) interface{} { return &GVN{} },
	)
}

// GVN is a within-block value-numbering pass: instructions with equal
// opcode and operand identity yield the same value number, and later
// instances are replaced by the first. Cross-block CSE is not
// attempted — the numbering is keyed on any pure instruction's
// (opcode, operand-identity) pair within a single block.
type GVN struct{}

func (p *GVN) Name() string { return "gvn" }

func (p *GVN) RunOnBlock(b *ir.BasicBlock) bool {
	changed := false
	seen := make(map[string]*ir.Value)
	for _, inst := range b.Instructions() {
		if inst.HasEffects() || inst.Op == ir.OpPhi || inst.Op == ir.OpAlloca {
			continue
		}
		if inst.Result() == nil {
			continue
		}
		key := valueNumberKey(inst)
		if key == "" {
			continue
		}
		if existing, ok := seen[key]; ok {
			ir.ReplaceAllUsesWith(&inst.Value, existing)
			ir.Erase(inst)
			changed = true
			continue
		}
		seen[key] = &inst.Value
	}
	return changed
}

// valueNumberKey produces a string congruence key from an instruction's
// opcode and its operands' identities (pointer identity, stringified),
// or "" if the instruction isn't eligible for numbering (e.g. a load,
// whose value may be invalidated by an intervening store this
// within-block pass does not track).
func valueNumberKey(inst *ir.Instruction) string {
	switch inst.Op {
	case ir.OpLoad, ir.OpCall, ir.OpGEP:
		return ""
	}
	parts := make([]string, 0, len(inst.Operands)+1)
	parts = append(parts, inst.Op.String())
	for _, operand := range inst.Operands {
		if operand == nil || operand.Value == nil {
			parts = append(parts, "<nil>")
			continue
		}
		parts = append(parts, fmt.Sprintf("%p", operand.Value))
	}
	if inst.Op == ir.OpCast {
		parts = append(parts, inst.CastTo.String())
	}
	return strings.Join(parts, ",")
}
