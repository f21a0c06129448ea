package passes

import (
	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/passmgr"
)

func init() {
	passmgr.DefaultRegistry.Register(
		passmgr.Descriptor{Name: "algebraic-simp", Kind: passmgr.BlockKind, Stages: passmgr.Opt | passmgr.PostOpt},
		func(diags *diag.Collector) interface{} { return &AlgebraicSimp{} },
	)
}

// AlgebraicSimp rewrites integer binaries matching a fixed algebraic
// identity table, via ReplaceAllUsesWith/Erase: identities like `x*0 =>
// 0`, `x+0 => x`, and the power-of-two-division rewrite to an arithmetic
// right shift.
//
// After rewriting a block, the scan restarts from the top until no
// further rewrite applies, guaranteeing a local fixpoint within the
// block.
type AlgebraicSimp struct{}

func (p *AlgebraicSimp) Name() string { return "algebraic-simp" }

func (p *AlgebraicSimp) RunOnBlock(b *ir.BasicBlock) bool {
	changed := false
	for {
		roundChanged := false
		for _, inst := range b.Instructions() {
			if !inst.Op.IsBinary() {
				continue
			}
			if repl, ok := p.simplify(inst); ok {
				ir.ReplaceAllUsesWith(&inst.Value, repl)
				ir.Erase(inst)
				roundChanged = true
				break // operand identities shifted; restart the scan
			}
		}
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}

func (p *AlgebraicSimp) simplify(inst *ir.Instruction) (*ir.Value, bool) {
	lhs, rhs := inst.Operand(0), inst.Operand(1)
	lc, lIsConst := asConstInt(lhs)
	rc, rIsConst := asConstInt(rhs)
	fn := inst.Block.Func

	switch inst.Op {
	case ir.OpAdd:
		if rIsConst && rc == 0 {
			return lhs, true
		}
		if lIsConst && lc == 0 {
			return rhs, true
		}
	case ir.OpSub:
		if rIsConst && rc == 0 {
			return lhs, true
		}
		if lhs == rhs {
			return newFoldedConst(fn, 0, inst.Type), true
		}
	case ir.OpMul:
		if rIsConst && rc == 1 {
			return lhs, true
		}
		if lIsConst && lc == 1 {
			return rhs, true
		}
		if (rIsConst && rc == 0) || (lIsConst && lc == 0) {
			return newFoldedConst(fn, 0, inst.Type), true
		}
	case ir.OpSDiv, ir.OpUDiv:
		if rIsConst && rc == 1 {
			return lhs, true
		}
		if rIsConst && rc == 0 {
			return nil, false // leave in place; constant-fold emits the warning
		}
		if lhs == rhs && rIsConst && rc != 0 {
			return newFoldedConst(fn, 1, inst.Type), true
		}
		if inst.Op == ir.OpSDiv && rIsConst && rc > 0 {
			if k, isPow2 := log2(rc); isPow2 && k > 0 {
				return p.shiftRight(inst, lhs, k), true
			}
		}
	case ir.OpAnd, ir.OpOr:
		if lhs == rhs {
			return lhs, true
		}
	case ir.OpXor:
		if lhs == rhs {
			return newFoldedConst(fn, 0, inst.Type), true
		}
	case ir.OpShl, ir.OpAShr, ir.OpLShr:
		if rIsConst && rc == 0 {
			return lhs, true
		}
	}
	return nil, false
}

// shiftRight replaces a signed division by 2^k with an arithmetic right
// shift by k.
func (p *AlgebraicSimp) shiftRight(inst *ir.Instruction, lhs *ir.Value, k int64) *ir.Value {
	fn := inst.Block.Func
	newInst := &ir.Instruction{Value: ir.Value{ID: fn.NewValueID(), Type: inst.Type}, Op: ir.OpAShr}
	ir.SetOperand(newInst, 0, lhs)
	ir.SetOperand(newInst, 1, &ir.NewConst(fn.NewValueID(), inst.Type, k).Value)
	ir.InsertBefore(inst, newInst)
	return &newInst.Value
}

// log2 reports whether v is a positive power of two, and its exponent.
func log2(v int64) (int64, bool) {
	if v <= 0 || v&(v-1) != 0 {
		return 0, false
	}
	k := int64(0)
	for v > 1 {
		v >>= 1
		k++
	}
	return k, true
}
