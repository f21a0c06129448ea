package ir

import (
	"fmt"

	"mimic/internal/ast"
	"mimic/internal/types"
)

// buildExpr lowers an expression to the SSA value it evaluates to,
// consulting the already-computed semantic types (info.ExprTypes) rather
// than re-inferring them.
func (b *Builder) buildExpr(e ast.Expr) *Value {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		return b.buildLiteral(x)
	case *ast.IdentExpr:
		return b.buildIdent(x)
	case *ast.ParenExpr:
		return b.buildExpr(x.X)
	case *ast.UnaryExpr:
		return b.buildUnary(x)
	case *ast.BinaryExpr:
		return b.buildBinary(x)
	case *ast.CastExpr:
		return b.buildCast(x)
	case *ast.CallExpr:
		return b.buildCall(x)
	case *ast.FieldAccessExpr:
		addr := b.buildAddr(x)
		return b.emitLoad(addr, types.Deref(addr.Type))
	case *ast.IndexExpr:
		addr := b.buildAddr(x)
		return b.emitLoad(addr, types.Deref(addr.Type))
	default:
		return b.constInt(0, &types.Primitive{Kind: types.I32})
	}
}

func (b *Builder) buildLiteral(l *ast.LiteralExpr) *Value {
	if l.Kind == ast.StringLiteral {
		// A string literal addresses static read-only data; modeled as a
		// named global the selector resolves to a label (no independent
		// "string constant" value kind is needed at this layer).
		g := b.module.AddGlobal(b.stringGlobalName(), &types.Array{Elem: &types.Primitive{Kind: types.U8}, Len: len(l.Str) + 1}, Internal, nil)
		g.StringData = l.Str
		return &g.Value
	}
	return b.constInt(l.Int, &types.Primitive{Kind: types.I32})
}

// stringGlobalName mints a fresh, module-unique label for each string
// literal's backing store — distinct literals must not collide on the
// same global.
func (b *Builder) stringGlobalName() string {
	b.strCount++
	return fmt.Sprintf(".str.%d", b.strCount)
}

func (b *Builder) buildIdent(id *ast.IdentExpr) *Value {
	if loc, ok := b.locals[id.Name]; ok {
		return loc.val
	}
	for _, g := range b.module.Globals {
		if g.Name == id.Name {
			return b.emitLoad(&g.Value, g.ElemType)
		}
	}
	return b.constInt(0, &types.Primitive{Kind: types.I32})
}

func (b *Builder) buildUnary(u *ast.UnaryExpr) *Value {
	switch u.Op {
	case ast.AddrOf:
		return b.buildAddr(u.X)
	case ast.Deref:
		addr := b.buildExpr(u.X)
		return b.emitLoad(addr, types.Deref(addr.Type))
	case ast.Not:
		v := b.buildExpr(u.X)
		return b.emitBinary(OpICmpEQ, v, b.constInt(0, v.Type))
	default:
		x := b.buildExpr(u.X)
		op := OpNeg
		if u.Op == ast.BitNot {
			op = OpBitNot
		}
		inst := b.newInst(op, types.Unwrap(x.Type))
		inst.setOperand(0, x)
		b.block.PushBack(inst)
		return &inst.Value
	}
}

func (b *Builder) buildBinary(bin *ast.BinaryExpr) *Value {
	switch bin.Op {
	case ast.LogAnd, ast.LogOr:
		return b.buildLogical(bin)
	}
	lhs := b.buildExpr(bin.Left)
	rhs := b.buildExpr(bin.Right)
	return b.emitBinary(binOpcode(bin.Op, lhs.Type, rhs.Type), lhs, rhs)
}

func binOpcode(op ast.BinaryOp, lt, rt types.Type) Opcode {
	unsigned := isUnsignedType(lt) || isUnsignedType(rt)
	switch op {
	case ast.Add:
		return OpAdd
	case ast.Sub:
		return OpSub
	case ast.Mul:
		return OpMul
	case ast.Div:
		if unsigned {
			return OpUDiv
		}
		return OpSDiv
	case ast.Mod:
		if unsigned {
			return OpURem
		}
		return OpSRem
	case ast.And:
		return OpAnd
	case ast.Or:
		return OpOr
	case ast.Xor:
		return OpXor
	case ast.Shl:
		return OpShl
	case ast.Shr:
		if unsigned {
			return OpLShr
		}
		return OpAShr
	case ast.Eq:
		return OpICmpEQ
	case ast.Ne:
		return OpICmpNE
	case ast.Lt:
		if unsigned {
			return OpICmpULT
		}
		return OpICmpSLT
	case ast.Le:
		if unsigned {
			return OpICmpULE
		}
		return OpICmpSLE
	case ast.Gt:
		if unsigned {
			return OpICmpUGT
		}
		return OpICmpSGT
	case ast.Ge:
		if unsigned {
			return OpICmpUGE
		}
		return OpICmpSGE
	default:
		return OpAdd
	}
}

func isUnsignedType(t types.Type) bool {
	p, ok := types.Unwrap(t).(*types.Primitive)
	return ok && !p.Kind.Signed() && p.Kind != types.Void
}

// emitBinary applies the builder's implicit numeric promotion — the
// common type of both operands, preserving signedness — before
// emitting the instruction.
func (b *Builder) emitBinary(op Opcode, lhs, rhs *Value) *Value {
	resultType := types.CommonType(types.Unwrap(lhs.Type), types.Unwrap(rhs.Type))
	if isComparison(op) {
		resultType = &types.Primitive{Kind: types.I32}
	}
	inst := b.newInst(op, resultType)
	inst.setOperand(0, lhs)
	inst.setOperand(1, rhs)
	b.block.PushBack(inst)
	return &inst.Value
}

func isComparison(op Opcode) bool {
	switch op {
	case OpICmpEQ, OpICmpNE, OpICmpSLT, OpICmpSLE, OpICmpSGT, OpICmpSGE, OpICmpULT, OpICmpULE, OpICmpUGT, OpICmpUGE:
		return true
	default:
		return false
	}
}

// buildLogical lowers && / || with proper short-circuit control flow:
// the right operand is only evaluated on the path where it is observable.
func (b *Builder) buildLogical(bin *ast.BinaryExpr) *Value {
	lhs := b.buildExpr(bin.Left)
	entry := b.block

	rhsBlock := b.fn.AddBlock("logic.rhs")
	mergeBlock := b.fn.AddBlock("logic.end")

	br := b.newInst(OpCondBr, nil)
	br.setOperand(0, lhs)
	if bin.Op == ast.LogAnd {
		br.Then, br.Else = rhsBlock, mergeBlock
	} else {
		br.Then, br.Else = mergeBlock, rhsBlock
	}
	b.block.PushBack(br)
	addEdge(entry, rhsBlock)
	addEdge(entry, mergeBlock)

	b.block = rhsBlock
	rhs := b.buildExpr(bin.Right)
	rhsBool := b.emitBinary(OpICmpNE, rhs, b.constInt(0, rhs.Type))
	b.emitJump(mergeBlock)
	rhsEnd := b.block

	b.block = mergeBlock
	shortCircuit := int64(0)
	if bin.Op == ast.LogOr {
		shortCircuit = 1
	}
	phi := b.newInst(OpPhi, &types.Primitive{Kind: types.I32})
	phi.AddIncoming(entry, b.constInt(shortCircuit, &types.Primitive{Kind: types.I32}))
	phi.AddIncoming(rhsEnd, rhsBool)
	mergeBlock.PushBack(phi)
	return &phi.Value
}

func (b *Builder) buildCast(c *ast.CastExpr) *Value {
	x := b.buildExpr(c.X)
	dst := b.resolveType(c.Type)
	inst := b.newInst(OpCast, dst)
	inst.CastTo = dst
	inst.setOperand(0, x)
	b.block.PushBack(inst)
	return &inst.Value
}

func (b *Builder) resolveType(te ast.TypeExpr) types.Type {
	switch t := te.(type) {
	case *ast.ResolvedType:
		return t.T
	case *ast.PointerType:
		return &types.Pointer{Elem: b.resolveType(t.Elem)}
	case *ast.ArrayType:
		return &types.Array{Elem: b.resolveType(t.Elem), Len: t.Len}
	case *ast.ConstType:
		return &types.Const{Inner: b.resolveType(t.Inner)}
	case *ast.NamedType:
		switch t.Name {
		case "void":
			return &types.Primitive{Kind: types.Void}
		case "i8":
			return &types.Primitive{Kind: types.I8}
		case "u8":
			return &types.Primitive{Kind: types.U8}
		case "i32":
			return &types.Primitive{Kind: types.I32}
		case "u32":
			return &types.Primitive{Kind: types.U32}
		default:
			if s := b.info.Registry.LookupStruct(t.Name); s != nil {
				return s
			}
			return b.info.Registry.Resolve(t.Name)
		}
	default:
		return &types.Primitive{Kind: types.I32}
	}
}

func (b *Builder) buildCall(call *ast.CallExpr) *Value {
	callee := b.module.FindFunction(call.Callee)
	var retType types.Type
	if callee != nil {
		retType = callee.Signature().Ret
	}
	args := make([]*Value, len(call.Args))
	for i, a := range call.Args {
		args[i] = b.buildExpr(a)
	}
	inst := b.newInst(OpCall, retType)
	if isVoidType(retType) {
		inst.Type = nil
	}
	inst.Callee = callee
	for i, a := range args {
		inst.setOperand(i, a)
	}
	b.block.PushBack(inst)
	return &inst.Value
}

// buildAddr lowers an expression to the pointer it would need to be
// stored through: &x, x.field, x[i], *p.
func (b *Builder) buildAddr(e ast.Expr) *Value {
	switch x := e.(type) {
	case *ast.IdentExpr:
		// Locals are SSA values, not memory — addressing one forces an
		// alloca/store pair so &local behaves correctly.
		loc := b.locals[x.Name]
		alloca := b.newInst(OpAlloca, &types.Pointer{Elem: loc.typ})
		alloca.AllocaType = loc.typ
		b.block.PushBack(alloca)
		b.emitStore(&alloca.Value, loc.val)
		return &alloca.Value
	case *ast.UnaryExpr:
		if x.Op == ast.Deref {
			return b.buildExpr(x.X)
		}
	case *ast.FieldAccessExpr:
		base := b.buildExpr(x.X)
		baseAddr := base
		if _, isPtr := types.Unwrap(base.Type).(*types.Pointer); !isPtr {
			baseAddr = b.buildAddr(x.X)
		}
		st := structOfAddr(baseAddr.Type)
		idx := st.FieldIndex(x.Field)
		gep := b.newInst(OpGEP, &types.Pointer{Elem: st.Fields[idx].Type})
		gep.GEPField = idx
		gep.setOperand(0, baseAddr)
		b.block.PushBack(gep)
		return &gep.Value
	case *ast.IndexExpr:
		base := b.buildAddr(x.X)
		idxVal := b.buildExpr(x.Index)
		elem := types.Element(types.Deref(base.Type))
		gep := b.newInst(OpGEP, &types.Pointer{Elem: elem})
		gep.GEPField = -1
		gep.setOperand(0, base)
		gep.setOperand(1, idxVal)
		b.block.PushBack(gep)
		return &gep.Value
	}
	return b.buildExpr(e)
}

func structOfAddr(ptrType types.Type) *types.Struct {
	elem := types.Deref(ptrType)
	if s, ok := types.Unwrap(elem).(*types.Struct); ok {
		return s
	}
	return nil
}

func (b *Builder) emitLoad(addr *Value, elemType types.Type) *Value {
	inst := b.newInst(OpLoad, elemType)
	inst.setOperand(0, addr)
	b.block.PushBack(inst)
	return &inst.Value
}

func (b *Builder) emitStore(addr, val *Value) {
	inst := b.newInst(OpStore, nil)
	inst.setOperand(0, addr)
	inst.setOperand(1, val)
	b.block.PushBack(inst)
}
