// Package selector implements the IR→MIR instruction selector: it walks
// each SSA function and emits the machine-level instruction sequence of
// internal/mir, assigning every SSA value a virtual register (or a
// stack slot for alloca) as it goes.
//
// A single linear lowering pass doing its own block-by-block walk, but
// running the opposite direction from the AST-to-SSA builder: SSA down
// to a register-machine MIR instead of AST up to SSA.
package selector

import (
	"fmt"

	"mimic/internal/ir"
	"mimic/internal/mir"
	"mimic/internal/types"
)

// argRegs is the (simplified) ABI argument-register set: the first four
// arguments pass in registers, the rest spill to the stack.
var argRegs = []string{"r0", "r1", "r2", "r3"}

// retReg is the designated return-value register.
const retReg = "r0"

// Select lowers every function with a body in m into a mir.Function,
// returning the assembled mir.Program. Functions without a body (pure
// external declarations) contribute no MIR but are still referenced by
// name from BL instructions at call sites.
func Select(m *ir.Module) *mir.Program {
	prog := &mir.Program{}
	globalNames := make(map[*ir.Value]string, len(m.Globals))
	for _, g := range m.Globals {
		prog.Globals = append(prog.Globals, selectGlobal(g))
		globalNames[&g.Value] = g.Name
	}
	for _, fn := range m.Functions {
		if !fn.HasBody() {
			continue
		}
		prog.Functions = append(prog.Functions, (&selection{irFn: fn, globalNames: globalNames}).run())
	}
	return prog
}

func selectGlobal(g *ir.Global) *mir.GlobalData {
	gd := &mir.GlobalData{Label: g.Name, Size: sizeOf(g.ElemType), External: g.Linkage == ir.External}
	if g.StringData != "" {
		gd.Bytes = append([]byte(g.StringData), 0)
		return gd
	}
	if g.Init != nil {
		gd.Init = []int64{g.Init.IntVal}
	}
	return gd
}

// sizeOf computes a byte size for t under a no-padding, word-aligned
// layout: i8/u8 are one byte, i32/u32/pointers are one word, arrays and
// structs are the sum/product of their elements. See DESIGN.md for the
// layout decision.
func sizeOf(t types.Type) int {
	switch v := types.Unwrap(t).(type) {
	case *types.Primitive:
		if v.Kind.Width() == 0 {
			return 0
		}
		return v.Kind.Width() / 8
	case *types.Pointer:
		return 4
	case *types.Array:
		return sizeOf(v.Elem) * v.Len
	case *types.Struct:
		total := 0
		for _, f := range v.Fields {
			total += sizeOf(f.Type)
		}
		return total
	default:
		return 4
	}
}

// selection holds the per-function lowering state.
type selection struct {
	irFn        *ir.Function
	mfn         *mir.Function
	globalNames map[*ir.Value]string // global Value -> its symbol name

	values map[*ir.Value]*mir.Operand // SSA value -> vreg (or Mem for allocas)
	blocks map[*ir.BasicBlock]string  // block -> emitted label

	frameOffset int // next free stack-slot offset (grows negative from fp)
}

func (s *selection) run() *mir.Function {
	s.mfn = &mir.Function{Name: s.irFn.Name}
	s.values = make(map[*ir.Value]*mir.Operand)
	s.blocks = make(map[*ir.BasicBlock]string)

	for i, b := range s.irFn.Blocks {
		s.blocks[b] = mir.MangleBlockLabel(s.irFn.Name, i)
	}

	s.emitPrologue()

	for i, b := range s.irFn.Blocks {
		s.emitLabel(s.blocks[b])
		if i == 0 {
			s.bindParams()
		}
		for _, inst := range b.Instructions() {
			s.selectInst(inst)
		}
	}

	s.resolvePhis()
	s.mfn.FrameSize = -s.frameOffset
	return s.mfn
}

func (s *selection) emitPrologue() {
	s.mfn.Emit(&mir.MInst{Op: mir.PROLOGUE, Comment: s.irFn.Name})
}

func (s *selection) emitLabel(name string) {
	s.mfn.Emit(&mir.MInst{Op: mir.LABEL, Operands: []*mir.Operand{mir.Label(name)}})
}

// bindParams materializes each parameter's incoming ABI location (an
// argument register, or a stack slot for overflow past argRegs) as the
// parameter's SSA value operand.
func (s *selection) bindParams() {
	for i, p := range s.irFn.Params {
		dst := s.mfn.NewVReg(p.Name)
		if i < len(argRegs) {
			s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: dst, Operands: []*mir.Operand{mir.PReg(argRegs[i])}})
		} else {
			off := int64((i - len(argRegs)) * 4)
			s.mfn.Emit(&mir.MInst{Op: mir.LDR, Dst: dst, Operands: []*mir.Operand{mir.Mem(mir.PReg("fp"), 8+off)}})
		}
		s.values[&p.Value] = dst
	}
}

func (s *selection) allocSlot(size int) *mir.Operand {
	if size <= 0 {
		size = 4
	}
	s.frameOffset -= size
	return mir.Mem(mir.PReg("fp"), int64(s.frameOffset))
}

// operand resolves v's already-selected operand, lazily materializing
// constants — constant materialization is the selector's job, not the
// builder's.
func (s *selection) operand(v *ir.Value) *mir.Operand {
	if v == nil {
		return nil
	}
	if v.Const != nil {
		return mir.Imm(v.Const.IntVal)
	}
	if op, ok := s.values[v]; ok {
		return op
	}
	if name, ok := s.globalNames[v]; ok {
		// A global referenced directly (its address, e.g. as a GEP base or
		// a Load/Store target) — a label operand; asMem treats it as a
		// direct (zero-offset) memory reference.
		return mir.Label(name)
	}
	return mir.Label(fmt.Sprintf("?unresolved_v%d", v.ID))
}

func (s *selection) define(inst *ir.Instruction, hint string) *mir.Operand {
	dst := s.mfn.NewVReg(hint)
	s.values[&inst.Value] = dst
	return dst
}

func (s *selection) selectInst(inst *ir.Instruction) {
	switch inst.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpShl, ir.OpLShr, ir.OpAShr:
		s.selectBinaryArith(inst)
	case ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		s.selectDivRem(inst)
	case ir.OpICmpEQ, ir.OpICmpNE, ir.OpICmpSLT, ir.OpICmpSLE, ir.OpICmpSGT, ir.OpICmpSGE,
		ir.OpICmpULT, ir.OpICmpULE, ir.OpICmpUGT, ir.OpICmpUGE:
		s.selectCompare(inst)
	case ir.OpNeg:
		dst := s.define(inst, "neg")
		s.mfn.Emit(&mir.MInst{Op: mir.SUB, Dst: dst, Operands: []*mir.Operand{mir.Imm(0), s.operand(inst.Operand(0))}})
	case ir.OpBitNot:
		dst := s.define(inst, "not")
		s.mfn.Emit(&mir.MInst{Op: mir.EOR, Dst: dst, Operands: []*mir.Operand{s.operand(inst.Operand(0)), mir.Imm(-1)}})
	case ir.OpAlloca:
		s.values[&inst.Value] = s.allocSlot(sizeOf(inst.AllocaType))
	case ir.OpLoad:
		s.selectLoad(inst)
	case ir.OpStore:
		s.selectStore(inst)
	case ir.OpGEP:
		s.selectGEP(inst)
	case ir.OpCast:
		s.selectCast(inst)
	case ir.OpCall:
		s.selectCall(inst)
	case ir.OpPhi:
		// destination vreg only; incoming copies are resolved by
		// resolvePhis() once every block has been walked.
		s.define(inst, "phi")
	case ir.OpBr:
		s.mfn.Emit(&mir.MInst{Op: mir.B, Operands: []*mir.Operand{mir.Label(s.blocks[inst.Then])}})
	case ir.OpCondBr:
		s.selectCondBr(inst)
	case ir.OpRet:
		s.selectRet(inst)
	}
}

var arithOp = map[ir.Opcode]mir.Opcode{
	ir.OpAdd: mir.ADD, ir.OpSub: mir.SUB, ir.OpMul: mir.MUL,
	ir.OpAnd: mir.AND, ir.OpOr: mir.ORR, ir.OpXor: mir.EOR,
	ir.OpShl: mir.LSL, ir.OpLShr: mir.LSR, ir.OpAShr: mir.ASR,
}

func (s *selection) selectBinaryArith(inst *ir.Instruction) {
	dst := s.define(inst, inst.Op.String())
	s.mfn.Emit(&mir.MInst{Op: arithOp[inst.Op], Dst: dst, Operands: []*mir.Operand{s.operand(inst.Operand(0)), s.operand(inst.Operand(1))}})
}

// selectDivRem lowers division/remainder to a runtime-helper call: the
// MIR opcode set has no hardware divide, matching a Cortex-M0-class ARM
// target without the integer-divide extension.
func (s *selection) selectDivRem(inst *ir.Instruction) {
	helper := map[ir.Opcode]string{
		ir.OpSDiv: "__mimic_sdiv", ir.OpUDiv: "__mimic_udiv",
		ir.OpSRem: "__mimic_srem", ir.OpURem: "__mimic_urem",
	}[inst.Op]
	s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: mir.PReg(argRegs[0]), Operands: []*mir.Operand{s.operand(inst.Operand(0))}})
	s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: mir.PReg(argRegs[1]), Operands: []*mir.Operand{s.operand(inst.Operand(1))}})
	s.mfn.Emit(&mir.MInst{Op: mir.BL, Operands: []*mir.Operand{mir.Label(helper)}})
	dst := s.define(inst, inst.Op.String())
	s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: dst, Operands: []*mir.Operand{mir.PReg(retReg)}})
}

var condOf = map[ir.Opcode]string{
	ir.OpICmpEQ: "eq", ir.OpICmpNE: "ne",
	ir.OpICmpSLT: "lt", ir.OpICmpSLE: "le", ir.OpICmpSGT: "gt", ir.OpICmpSGE: "ge",
	ir.OpICmpULT: "lo", ir.OpICmpULE: "ls", ir.OpICmpUGT: "hi", ir.OpICmpUGE: "hs",
}

// selectCompare lowers an ICmp to CMP plus a materialize-0/1 sequence:
// the common compare-and-branch path (selectCondBr) instead consumes the
// CMP directly without needing this, but ICmp results can also feed
// ordinary arithmetic, so a materialized boolean is always produced too.
func (s *selection) selectCompare(inst *ir.Instruction) {
	s.mfn.Emit(&mir.MInst{Op: mir.CMP, Operands: []*mir.Operand{s.operand(inst.Operand(0)), s.operand(inst.Operand(1))}})
	dst := s.define(inst, "cmp")
	s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: dst, Operands: []*mir.Operand{mir.Imm(0)}})
	s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: dst, Cond: condOf[inst.Op], Operands: []*mir.Operand{mir.Imm(1)}})
}

func (s *selection) selectLoad(inst *ir.Instruction) {
	dst := s.define(inst, "ld")
	addr := s.operand(inst.Operand(0))
	s.mfn.Emit(&mir.MInst{Op: mir.LDR, Dst: dst, Operands: []*mir.Operand{asMem(addr)}})
}

func (s *selection) selectStore(inst *ir.Instruction) {
	value := s.operand(inst.Operand(0))
	addr := s.operand(inst.Operand(1))
	s.mfn.Emit(&mir.MInst{Op: mir.STR, Operands: []*mir.Operand{value, asMem(addr)}})
}

// asMem adapts an already-selected address operand to an LDR/STR memory
// operand: a stack slot is used as-is, a virtual register holding a
// computed address becomes a zero-offset indirection through it, and a
// label (a global's address) is read through directly.
func asMem(addr *mir.Operand) *mir.Operand {
	if addr.Kind == mir.OpMem || addr.Kind == mir.OpLabel {
		return addr
	}
	return mir.Mem(addr, 0)
}

// selectGEP computes a struct-field or array-element address: a constant
// field/index folds into a single ADD of a byte offset; a dynamic array
// index first multiplies by the element size, lowering to a MUL/ADD
// pair.
func (s *selection) selectGEP(inst *ir.Instruction) {
	base := s.operand(inst.Operand(0))
	dst := s.define(inst, "gep")

	if inst.GEPField >= 0 {
		st := structOfPointer(inst.Operand(0).Type)
		off := int64(0)
		if st != nil {
			for i := 0; i < inst.GEPField && i < len(st.Fields); i++ {
				off += int64(sizeOf(st.Fields[i].Type))
			}
		}
		s.mfn.Emit(&mir.MInst{Op: mir.ADD, Dst: dst, Operands: []*mir.Operand{base, mir.Imm(off)}})
		return
	}

	idx := s.operand(inst.Operand(1))
	elemSize := int64(sizeOf(types.Deref(inst.Type))) // GEP's own result is Pointer(elem)
	if idx.Kind == mir.OpImm {
		s.mfn.Emit(&mir.MInst{Op: mir.ADD, Dst: dst, Operands: []*mir.Operand{base, mir.Imm(idx.Imm * elemSize)}})
		return
	}
	scaled := s.mfn.NewVReg("idx")
	s.mfn.Emit(&mir.MInst{Op: mir.MUL, Dst: scaled, Operands: []*mir.Operand{idx, mir.Imm(elemSize)}})
	s.mfn.Emit(&mir.MInst{Op: mir.ADD, Dst: dst, Operands: []*mir.Operand{base, scaled}})
}

// structOfPointer mirrors the builder's structOfAddr: the struct type
// pointed to by a GEP base operand, or nil if it isn't one.
func structOfPointer(ptrType types.Type) *types.Struct {
	st, _ := types.Unwrap(types.Deref(ptrType)).(*types.Struct)
	return st
}

// selectCast lowers a width-narrowing cast to a mask, and anything else
// (widening, pointer reinterpretation) to a plain register move.
func (s *selection) selectCast(inst *ir.Instruction) {
	dst := s.define(inst, "cast")
	src := s.operand(inst.Operand(0))
	if prim, ok := types.Unwrap(inst.CastTo).(*types.Primitive); ok && prim.Kind.Width() == 8 {
		s.mfn.Emit(&mir.MInst{Op: mir.AND, Dst: dst, Operands: []*mir.Operand{src, mir.Imm(0xFF)}})
		return
	}
	s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: dst, Operands: []*mir.Operand{src}})
}

// selectCall marshals arguments into the ABI registers (spilling overflow
// to pushed stack slots), emits BL, then picks up the return value.
func (s *selection) selectCall(inst *ir.Instruction) {
	args := make([]*mir.Operand, len(inst.Operands))
	for i := range inst.Operands {
		args[i] = s.operand(inst.Operand(i))
	}
	var overflow []*mir.Operand
	for i, a := range args {
		if i < len(argRegs) {
			s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: mir.PReg(argRegs[i]), Operands: []*mir.Operand{a}})
		} else {
			overflow = append(overflow, a)
		}
	}
	for i := len(overflow) - 1; i >= 0; i-- {
		s.mfn.Emit(&mir.MInst{Op: mir.PUSH, Operands: []*mir.Operand{overflow[i]}})
	}
	name := "?indirect"
	if inst.Callee != nil {
		name = inst.Callee.Name
	}
	s.mfn.Emit(&mir.MInst{Op: mir.BL, Operands: []*mir.Operand{mir.Label(name)}})
	if len(overflow) > 0 {
		s.mfn.Emit(&mir.MInst{Op: mir.ADD, Dst: mir.PReg("sp"), Operands: []*mir.Operand{mir.PReg("sp"), mir.Imm(int64(4 * len(overflow)))}})
	}
	if inst.Result() != nil {
		dst := s.define(inst, "call")
		s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: dst, Operands: []*mir.Operand{mir.PReg(retReg)}})
	}
}

// selectCondBr lowers a conditional branch to a compare-and-branch pair
// plus the fall-through/explicit branch to the else target.
func (s *selection) selectCondBr(inst *ir.Instruction) {
	cond := s.operand(inst.Operand(0))
	s.mfn.Emit(&mir.MInst{Op: mir.CMP, Operands: []*mir.Operand{cond, mir.Imm(0)}})
	s.mfn.Emit(&mir.MInst{Op: mir.BNE, Operands: []*mir.Operand{mir.Label(s.blocks[inst.Then])}})
	s.mfn.Emit(&mir.MInst{Op: mir.B, Operands: []*mir.Operand{mir.Label(s.blocks[inst.Else])}})
}

func (s *selection) selectRet(inst *ir.Instruction) {
	if v := inst.Operand(0); v != nil {
		s.mfn.Emit(&mir.MInst{Op: mir.MOV, Dst: mir.PReg(retReg), Operands: []*mir.Operand{s.operand(v)}})
	}
	s.mfn.Emit(&mir.MInst{Op: mir.EPILOGUE, Comment: s.irFn.Name})
}

// resolvePhis inserts a MOV of each incoming value into the phi's
// destination vreg at the end of the corresponding predecessor block,
// immediately before that block's terminator: phi nodes are resolved by
// copy-insertion on incoming edges.
func (s *selection) resolvePhis() {
	for _, b := range s.irFn.Blocks {
		for _, inst := range b.Instructions() {
			if inst.Op != ir.OpPhi {
				continue
			}
			dst := s.values[&inst.Value]
			for _, edge := range inst.Phi {
				if edge.In == nil {
					continue
				}
				s.insertBeforeTerminator(s.blocks[edge.Block], &mir.MInst{
					Op: mir.MOV, Dst: dst, Operands: []*mir.Operand{s.operand(edge.In.Value)},
				})
			}
		}
	}
}

// insertBeforeTerminator splices inst into the function's linear list
// immediately before the last branch/epilogue of the named block.
func (s *selection) insertBeforeTerminator(label string, inst *mir.MInst) {
	insts := s.mfn.Insts
	blockStart := -1
	for i, in := range insts {
		if in.Op == mir.LABEL && in.Operands[0].Label == label {
			blockStart = i
			break
		}
	}
	if blockStart == -1 {
		s.mfn.Insts = append(s.mfn.Insts, inst)
		return
	}
	end := len(insts)
	for i := blockStart + 1; i < len(insts); i++ {
		if insts[i].Op == mir.LABEL {
			end = i
			break
		}
	}
	pos := end
	for pos > blockStart+1 && isTerminatorLike(insts[pos-1]) {
		pos--
	}
	s.mfn.Insts = append(insts[:pos], append([]*mir.MInst{inst}, insts[pos:]...)...)
}

func isTerminatorLike(m *mir.MInst) bool {
	return m.Op == mir.B || m.Op.IsConditionalBranch() || m.Op.IsUnconditionalExit()
}
