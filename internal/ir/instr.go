package ir

import (
	"mimic/internal/types"
)

// Opcode is the closed tag set of instruction kinds, a tagged-variant
// representation dispatched by pattern match rather than one Go struct
// per opcode.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr // logical (unsigned) right shift
	OpAShr // arithmetic (signed) right shift
	OpICmpEQ
	OpICmpNE
	OpICmpSLT
	OpICmpSLE
	OpICmpSGT
	OpICmpSGE
	OpICmpULT
	OpICmpULE
	OpICmpUGT
	OpICmpUGE
	OpNeg    // unary two's-complement negate
	OpBitNot // unary bitwise complement
	OpLoad
	OpStore
	OpAlloca
	OpGEP // element-pointer: struct field or array index addressing
	OpCast
	OpCall
	OpPhi
	// Terminators
	OpBr     // unconditional branch
	OpCondBr // conditional branch
	OpRet
)

func (op Opcode) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpSDiv:
		return "sdiv"
	case OpUDiv:
		return "udiv"
	case OpSRem:
		return "srem"
	case OpURem:
		return "urem"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpShl:
		return "shl"
	case OpLShr:
		return "lshr"
	case OpAShr:
		return "ashr"
	case OpICmpEQ:
		return "icmp eq"
	case OpICmpNE:
		return "icmp ne"
	case OpICmpSLT:
		return "icmp slt"
	case OpICmpSLE:
		return "icmp sle"
	case OpICmpSGT:
		return "icmp sgt"
	case OpICmpSGE:
		return "icmp sge"
	case OpICmpULT:
		return "icmp ult"
	case OpICmpULE:
		return "icmp ule"
	case OpICmpUGT:
		return "icmp ugt"
	case OpICmpUGE:
		return "icmp uge"
	case OpNeg:
		return "neg"
	case OpBitNot:
		return "not"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpAlloca:
		return "alloca"
	case OpGEP:
		return "gep"
	case OpCast:
		return "cast"
	case OpCall:
		return "call"
	case OpPhi:
		return "phi"
	case OpBr:
		return "br"
	case OpCondBr:
		return "condbr"
	case OpRet:
		return "ret"
	default:
		return "?"
	}
}

// IsBinary reports whether op is a two-operand arithmetic/comparison op —
// the set the algebraic-simplification and constant-folding passes
// pattern-match against.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpUDiv, OpSRem, OpURem,
		OpAnd, OpOr, OpXor, OpShl, OpLShr, OpAShr,
		OpICmpEQ, OpICmpNE, OpICmpSLT, OpICmpSLE, OpICmpSGT, OpICmpSGE,
		OpICmpULT, OpICmpULE, OpICmpUGT, OpICmpUGE:
		return true
	default:
		return false
	}
}

func (op Opcode) IsUnary() bool { return op == OpNeg || op == OpBitNot }

func (op Opcode) IsTerminator() bool { return op == OpBr || op == OpCondBr || op == OpRet }

// PhiEdge is one (incoming_block, value) pair of a phi instruction.
type PhiEdge struct {
	Block *BasicBlock
	In    *Use
}

// Instruction is both a Value (its own result, when it produces one) and
// a node of its BasicBlock's doubly-linked instruction list — insert/
// erase on that list are O(1).
type Instruction struct {
	Value
	Op       Opcode
	Operands []*Use
	Block    *BasicBlock

	prev, next *Instruction

	// Opcode-specific payload. Only the field(s) relevant to Op are
	// populated; this is the "tagged variant" in practice.
	AllocaType types.Type  // OpAlloca: type of the allocated slot
	GEPField   int         // OpGEP: struct field index, or -1 for array indexing
	CastTo     types.Type  // OpCast: destination type
	Callee     *Function   // OpCall
	Then, Else *BasicBlock // OpCondBr (Else used), OpBr (Then used as sole target)
	Phi        []PhiEdge   // OpPhi
	phiSeq     int         // next index handed to a new phi incoming edge; never reused

	// SourceLine back-links to the originating source line for
	// diagnostics. 0 means synthesized (no direct source origin).
	SourceLine int
}

// Result returns the instruction's own value when it produces one, or
// nil for instructions with no result (store, branches, void call).
func (i *Instruction) Result() *Value {
	if i.Type == nil {
		return nil
	}
	return &i.Value
}

// HasEffects reports whether the instruction has an observable side
// effect beyond producing its result: a store, a call to a function that
// is not known pure, or any terminator. This is exactly the predicate
// internal/passes' DCE pass needs.
func (i *Instruction) HasEffects() bool {
	switch i.Op {
	case OpStore, OpCall:
		return true
	default:
		return i.Op.IsTerminator()
	}
}

// setOperand installs v at slot idx, growing Operands if necessary, and
// keeps v's use-list consistent. Used both for initial wiring after
// newInst and by the public SetOperand (rewrite).
func (i *Instruction) setOperand(idx int, v *Value) {
	for len(i.Operands) <= idx {
		i.Operands = append(i.Operands, nil)
	}
	if old := i.Operands[idx]; old != nil {
		old.Value.removeUse(i, idx)
	}
	u := &Use{Value: v, User: i, Index: idx}
	i.Operands[idx] = u
	if v != nil {
		v.addUse(u)
	}
}

// SetOperand rewrites operand slot i of inst to v: removes the old use
// edge at slot i, installs the new one.
func SetOperand(inst *Instruction, idx int, v *Value) { inst.setOperand(idx, v) }

// Operand returns the value currently occupying slot idx, or nil if out
// of range or unset.
func (i *Instruction) Operand(idx int) *Value {
	if idx < 0 || idx >= len(i.Operands) || i.Operands[idx] == nil {
		return nil
	}
	return i.Operands[idx].Value
}

// ReplaceAllUsesWith rewrites every Use referencing old to reference
// new. After it returns, old.HasUses() is false.
func ReplaceAllUsesWith(old, new *Value) {
	uses := append([]*Use(nil), old.Uses...) // snapshot: setOperand mutates old.Uses as it goes
	for _, u := range uses {
		u.User.setOperand(u.Index, new)
	}
}

// detachOperands clears every outgoing use edge this instruction holds,
// without removing the instruction from its block's list. Called by
// Erase before unlinking.
func (i *Instruction) detachOperands() {
	for idx, u := range i.Operands {
		if u != nil {
			u.Value.removeUse(i, idx)
		}
		i.Operands[idx] = nil
	}
	for _, e := range i.Phi {
		if e.In != nil {
			e.In.Value.removeUse(i, e.In.Index)
		}
	}
	i.Phi = nil
}

// AddIncoming appends a (block, value) pair to a phi instruction,
// wiring its back-edge into v's use-list.
func (i *Instruction) AddIncoming(block *BasicBlock, v *Value) {
	u := &Use{Value: v, User: i, Index: i.phiSeq}
	i.phiSeq++
	v.addUse(u)
	i.Phi = append(i.Phi, PhiEdge{Block: block, In: u})
}

// IncomingFrom returns the value a phi takes when control arrives from
// pred, or nil if pred is not (or no longer) one of its incoming edges.
func (i *Instruction) IncomingFrom(pred *BasicBlock) *Value {
	for _, e := range i.Phi {
		if e.Block == pred {
			return e.In.Value
		}
	}
	return nil
}
