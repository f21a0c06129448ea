package passes

import (
	"mimic/internal/ast"
	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/passmgr"
	"mimic/internal/types"
)

func init() {
	passmgr.DefaultRegistry.Register(
		passmgr.Descriptor{Name: "constant-fold", Kind: passmgr.FunctionKind, Stages: passmgr.Opt | passmgr.PostOpt},
		func(diags *diag.Collector) interface{} { return &ConstantFold{Diags: diags} },
	)
}

// ConstantFold replaces binary/unary/cast instructions whose operands
// are all constants of compatible type with the folded constant. The
// Value.Const back-pointer makes a separate constants-map lookup
// unnecessary.
type ConstantFold struct {
	Diags *diag.Collector
}

func (p *ConstantFold) Name() string { return "constant-fold" }

func (p *ConstantFold) RunOnFunction(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions() {
			if folded, ok := p.fold(inst, fn); ok {
				ir.ReplaceAllUsesWith(&inst.Value, folded)
				ir.Erase(inst)
				changed = true
			}
		}
	}
	return changed
}

func (p *ConstantFold) fold(inst *ir.Instruction, fn *ir.Function) (*ir.Value, bool) {
	switch {
	case inst.Op.IsBinary():
		return p.foldBinary(inst, fn)
	case inst.Op.IsUnary():
		return p.foldUnary(inst, fn)
	case inst.Op == ir.OpCast:
		return p.foldCast(inst, fn)
	default:
		return nil, false
	}
}

func asConstInt(v *ir.Value) (int64, bool) {
	if v == nil || v.Const == nil {
		return 0, false
	}
	return v.Const.IntVal, true
}

// foldBinary computes the result of a binary op over two constant
// operands: unsigned wraps, signed overflow is defined two's-complement
// wrap, division/modulo by constant zero is left unfolded with a
// warning.
func (p *ConstantFold) foldBinary(inst *ir.Instruction, fn *ir.Function) (*ir.Value, bool) {
	l, lok := asConstInt(inst.Operand(0))
	r, rok := asConstInt(inst.Operand(1))
	if !lok || !rok {
		return nil, false
	}

	width := 32
	unsigned := false
	if prim, ok := types.Unwrap(inst.Type).(*types.Primitive); ok {
		width = prim.Kind.Width()
		unsigned = !prim.Kind.Signed()
	}

	switch inst.Op {
	case ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		if r == 0 {
			p.warnDivByZero(inst)
			return nil, false
		}
	}

	var result int64
	switch inst.Op {
	case ir.OpAdd:
		result = l + r
	case ir.OpSub:
		result = l - r
	case ir.OpMul:
		result = l * r
	case ir.OpSDiv:
		result = l / r
	case ir.OpUDiv:
		result = int64(uint32(l) / uint32(r))
	case ir.OpSRem:
		result = l % r
	case ir.OpURem:
		result = int64(uint32(l) % uint32(r))
	case ir.OpAnd:
		result = l & r
	case ir.OpOr:
		result = l | r
	case ir.OpXor:
		result = l ^ r
	case ir.OpShl:
		result = l << uint(r)
	case ir.OpLShr:
		result = int64(uint32(l) >> uint(r))
	case ir.OpAShr:
		result = l >> uint(r)
	case ir.OpICmpEQ:
		return p.boolConst(l == r, fn), true
	case ir.OpICmpNE:
		return p.boolConst(l != r, fn), true
	case ir.OpICmpSLT:
		return p.boolConst(l < r, fn), true
	case ir.OpICmpSLE:
		return p.boolConst(l <= r, fn), true
	case ir.OpICmpSGT:
		return p.boolConst(l > r, fn), true
	case ir.OpICmpSGE:
		return p.boolConst(l >= r, fn), true
	case ir.OpICmpULT:
		return p.boolConst(uint32(l) < uint32(r), fn), true
	case ir.OpICmpULE:
		return p.boolConst(uint32(l) <= uint32(r), fn), true
	case ir.OpICmpUGT:
		return p.boolConst(uint32(l) > uint32(r), fn), true
	case ir.OpICmpUGE:
		return p.boolConst(uint32(l) >= uint32(r), fn), true
	default:
		return nil, false
	}

	return newFoldedConst(fn, wrapToWidth(result, width, unsigned), inst.Type), true
}

func (p *ConstantFold) foldUnary(inst *ir.Instruction, fn *ir.Function) (*ir.Value, bool) {
	x, ok := asConstInt(inst.Operand(0))
	if !ok {
		return nil, false
	}
	width := 32
	if prim, ok := types.Unwrap(inst.Type).(*types.Primitive); ok {
		width = prim.Kind.Width()
	}
	var result int64
	switch inst.Op {
	case ir.OpNeg:
		result = -x
	case ir.OpBitNot:
		result = ^x
	default:
		return nil, false
	}
	return newFoldedConst(fn, wrapToWidth(result, width, false), inst.Type), true
}

func (p *ConstantFold) foldCast(inst *ir.Instruction, fn *ir.Function) (*ir.Value, bool) {
	x, ok := asConstInt(inst.Operand(0))
	if !ok {
		return nil, false
	}
	width := 32
	unsigned := false
	if prim, ok := types.Unwrap(inst.CastTo).(*types.Primitive); ok {
		width = prim.Kind.Width()
		unsigned = !prim.Kind.Signed()
	}
	return newFoldedConst(fn, wrapToWidth(x, width, unsigned), inst.CastTo), true
}

func (p *ConstantFold) boolConst(b bool, fn *ir.Function) *ir.Value {
	v := int64(0)
	if b {
		v = 1
	}
	return newFoldedConst(fn, v, &types.Primitive{Kind: types.I32})
}

func newFoldedConst(fn *ir.Function, v int64, t types.Type) *ir.Value {
	return &ir.NewConst(fn.NewValueID(), t, v).Value
}

// wrapToWidth truncates result to width bits, sign- or zero-extending
// back out to int64 per unsigned.
func wrapToWidth(v int64, width int, unsigned bool) int64 {
	if width <= 0 || width >= 64 {
		return v
	}
	mask := int64(1)<<uint(width) - 1
	v &= mask
	if !unsigned && v&(int64(1)<<uint(width-1)) != 0 {
		v -= int64(1) << uint(width)
	}
	return v
}

func (p *ConstantFold) warnDivByZero(inst *ir.Instruction) {
	if p.Diags == nil {
		return
	}
	p.Diags.Warnf(ast.Position{Line: inst.SourceLine}, diag.SourceErrorKind, "W0902", "division by constant zero; leaving instruction in place")
}
