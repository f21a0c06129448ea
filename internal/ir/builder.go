package ir

import (
	"mimic/internal/ast"
	"mimic/internal/semantic"
	"mimic/internal/types"
)

// Builder is the only component allowed to mint new SSA values,
// tracking an insertion point (current function + current block) and
// offering typed constructors. Variable resolution during lowering
// uses a write/read-variable pattern with direct phi insertion at
// if/while merge points, since MimiC's only join points are structured
// (no goto).
type Builder struct {
	module *Module
	info   *semantic.Info

	fn       *Function
	block    *BasicBlock
	locals   map[string]*local
	strCount int
}

type local struct {
	typ types.Type
	val *Value
}

// BuildProgram lowers a type-checked AST into an SSA Module.
func BuildProgram(prog *ast.Program, info *semantic.Info) *Module {
	b := &Builder{module: NewModule("main"), info: info}
	for _, g := range prog.Globals {
		b.buildGlobal(g)
	}
	for _, f := range prog.Functions {
		b.buildFunction(f)
	}
	return b.module
}

func (b *Builder) buildGlobal(g *ast.GlobalDecl) {
	gi := b.info.Globals[g.Name]
	var init *Const
	if lit, ok := g.Init.(*ast.LiteralExpr); ok && lit.Kind == ast.IntLiteral {
		init = NewConst(b.module.allocValueID(), gi.Type, lit.Int)
	}
	b.module.AddGlobal(g.Name, gi.Type, lowerLinkage(g.Linkage), init)
}

func lowerLinkage(l ast.Linkage) Linkage {
	switch l {
	case ast.Internal:
		return Internal
	case ast.Inline:
		return Inline
	case ast.GlobalCtor:
		return GlobalCtor
	default:
		return External
	}
}

func (b *Builder) buildFunction(f *ast.FuncDecl) {
	sig := b.info.Functions[f.Name].Type
	fn := b.module.AddFunction(f.Name, sig, lowerLinkage(f.Linkage))
	if f.Body == nil {
		return // external declaration
	}
	b.fn = fn
	b.locals = make(map[string]*local)
	b.block = fn.AddBlock("entry")

	for i, p := range f.Params {
		pt := sig.Params[i]
		pv := &Param{Value: Value{ID: fn.allocValueID(), Type: pt}, Name: p.Name, Func: fn}
		fn.Params = append(fn.Params, pv)
		b.locals[p.Name] = &local{typ: pt, val: &pv.Value}
	}

	b.buildBlock(f.Body)

	// A function falling off the end of its body without an explicit
	// return implicitly returns void/zero — the lowering makes this
	// explicit so every block is properly terminated.
	if b.block.Terminator() == nil {
		b.emitImplicitReturn()
	}
}

func (b *Builder) emitImplicitReturn() {
	ret := b.newInst(OpRet, nil)
	if retType := b.fn.Signature().Ret; !isVoidType(retType) {
		z := b.constInt(0, retType)
		ret.setOperand(0, z)
	}
	b.block.PushBack(ret)
}

func isVoidType(t types.Type) bool {
	p, ok := types.Unwrap(t).(*types.Primitive)
	return ok && p.Kind == types.Void
}

func (b *Builder) buildBlock(block *ast.BlockStmt) {
	for _, s := range block.Stmts {
		if b.block.Terminator() != nil {
			break // unreachable code after return; later DCE would drop it anyway
		}
		b.buildStmt(s)
	}
}

func (b *Builder) buildStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.BlockStmt:
		b.buildBlock(st)
	case *ast.LetStmt:
		b.buildLet(st)
	case *ast.AssignStmt:
		b.buildAssign(st)
	case *ast.IfStmt:
		b.buildIf(st)
	case *ast.WhileStmt:
		b.buildWhile(st)
	case *ast.ReturnStmt:
		b.buildReturn(st)
	case *ast.ExprStmt:
		b.buildExpr(st.X)
	}
}

func (b *Builder) buildLet(l *ast.LetStmt) {
	v := b.buildExpr(l.Init)
	t := types.Unwrap(v.Type)
	if l.Const {
		t = &types.Const{Inner: t}
	}
	b.locals[l.Name] = &local{typ: t, val: v}
}

func (b *Builder) buildAssign(as *ast.AssignStmt) {
	val := b.buildExpr(as.Value)
	switch target := as.Target.(type) {
	case *ast.IdentExpr:
		if as.Op != ast.Assign {
			cur := b.locals[target.Name].val
			val = b.emitCompound(as.Op, cur, val)
		}
		b.locals[target.Name] = &local{typ: types.Unwrap(val.Type), val: val}
	default:
		addr := b.buildAddr(as.Target)
		if as.Op != ast.Assign {
			cur := b.emitLoad(addr, types.Deref(addr.Type))
			val = b.emitCompound(as.Op, cur, val)
		}
		b.emitStore(addr, val)
	}
}

func (b *Builder) emitCompound(op ast.AssignOp, lhs, rhs *Value) *Value {
	var bop Opcode
	switch op {
	case ast.PlusAssign:
		bop = OpAdd
	case ast.MinusAssign:
		bop = OpSub
	case ast.StarAssign:
		bop = OpMul
	case ast.SlashAssign:
		bop = signedOrUnsigned(lhs.Type, OpSDiv, OpUDiv)
	case ast.PercentAssign:
		bop = signedOrUnsigned(lhs.Type, OpSRem, OpURem)
	}
	return b.emitBinary(bop, lhs, rhs)
}

func signedOrUnsigned(t types.Type, signed, unsigned Opcode) Opcode {
	if p, ok := types.Unwrap(t).(*types.Primitive); ok && !p.Kind.Signed() {
		return unsigned
	}
	return signed
}

func (b *Builder) buildReturn(r *ast.ReturnStmt) {
	ret := b.newInst(OpRet, nil)
	if r.Value != nil {
		v := b.buildExpr(r.Value)
		ret.setOperand(0, v)
	}
	b.block.PushBack(ret)
}

func (b *Builder) buildIf(stmt *ast.IfStmt) {
	cond := b.buildExpr(stmt.Cond)
	before := b.snapshot()

	thenBlock := b.fn.AddBlock("if.then")
	elseBlock := b.fn.AddBlock("if.else")
	mergeBlock := b.fn.AddBlock("if.end")

	br := b.newInst(OpCondBr, nil)
	br.setOperand(0, cond)
	br.Then, br.Else = thenBlock, elseBlock
	b.block.PushBack(br)
	addEdge(b.block, thenBlock)
	addEdge(b.block, elseBlock)

	b.block = thenBlock
	b.buildBlock(stmt.Then)
	thenEnd := b.block
	thenLive := thenEnd.Terminator() == nil
	thenVals := b.snapshot()
	if thenLive {
		b.emitJump(mergeBlock)
	}

	b.restore(before)
	b.block = elseBlock
	if stmt.Else != nil {
		b.buildStmt(stmt.Else)
	}
	elseEnd := b.block
	elseLive := elseEnd.Terminator() == nil
	elseVals := b.snapshot()
	if elseLive {
		b.emitJump(mergeBlock)
	}

	b.block = mergeBlock
	b.locals = b.mergeLocals(mergeBlock, before,
		edge{thenEnd, thenVals, thenLive},
		edge{elseEnd, elseVals, elseLive})
}

type edge struct {
	block *BasicBlock
	vals  map[string]*local
	live  bool // false if this path terminated (e.g. returned) before reaching the merge
}

// mergeLocals builds phi nodes in mergeBlock for every variable whose
// value differs across the live incoming edges, and returns the merged
// scope to continue building from.
func (b *Builder) mergeLocals(mergeBlock *BasicBlock, before map[string]*local, edges ...edge) map[string]*local {
	merged := make(map[string]*local)
	for name, bl := range before {
		var distinct []*Value
		var fromBlocks []*BasicBlock
		for _, e := range edges {
			if !e.live {
				continue
			}
			v := e.vals[name].val
			distinct = append(distinct, v)
			fromBlocks = append(fromBlocks, e.block)
		}
		if len(distinct) == 0 {
			merged[name] = bl
			continue
		}
		same := true
		for _, v := range distinct[1:] {
			if v != distinct[0] {
				same = false
			}
		}
		if same {
			merged[name] = &local{typ: bl.typ, val: distinct[0]}
			continue
		}
		phi := b.newInst(OpPhi, bl.typ)
		for i, v := range distinct {
			phi.AddIncoming(fromBlocks[i], v)
		}
		mergeBlock.PushBack(phi)
		merged[name] = &local{typ: bl.typ, val: &phi.Value}
	}
	return merged
}

func (b *Builder) buildWhile(stmt *ast.WhileStmt) {
	preheader := b.block
	header := b.fn.AddBlock("while.header")
	body := b.fn.AddBlock("while.body")
	exit := b.fn.AddBlock("while.exit")

	b.emitJump(header)
	addEdge(preheader, header)

	before := b.snapshot()
	modified := assignedNames(stmt.Body)

	b.block = header
	headerPhis := make(map[string]*Instruction)
	headerLocals := make(map[string]*local)
	for name, bl := range before {
		if !modified[name] {
			headerLocals[name] = bl
			continue
		}
		phi := b.newInst(OpPhi, bl.typ)
		phi.AddIncoming(preheader, bl.val)
		header.PushBack(phi)
		headerPhis[name] = phi
		headerLocals[name] = &local{typ: bl.typ, val: &phi.Value}
	}
	b.locals = headerLocals

	cond := b.buildExpr(stmt.Cond)
	br := b.newInst(OpCondBr, nil)
	br.setOperand(0, cond)
	br.Then, br.Else = body, exit
	b.block.PushBack(br)
	addEdge(b.block, body)
	addEdge(b.block, exit)

	b.block = body
	b.buildBlock(stmt.Body)
	latch := b.block
	latchLive := latch.Terminator() == nil
	if latchLive {
		b.emitJump(header)
		addEdge(latch, header)
	}
	if latchLive {
		for name, phi := range headerPhis {
			if v, ok := b.locals[name]; ok {
				phi.AddIncoming(latch, v.val)
			}
		}
	}

	b.block = exit
	b.locals = headerLocals
}

// assignedNames collects the set of local variable names directly
// assigned to anywhere within stmt (including nested blocks), used to
// decide which while-header phis are needed before the body is built.
func assignedNames(s ast.Stmt) map[string]bool {
	out := make(map[string]bool)
	var walk func(ast.Stmt)
	walk = func(s ast.Stmt) {
		switch st := s.(type) {
		case *ast.BlockStmt:
			for _, sub := range st.Stmts {
				walk(sub)
			}
		case *ast.AssignStmt:
			if id, ok := st.Target.(*ast.IdentExpr); ok {
				out[id.Name] = true
			}
		case *ast.IfStmt:
			walk(st.Then)
			if st.Else != nil {
				walk(st.Else)
			}
		case *ast.WhileStmt:
			walk(st.Body)
		}
	}
	walk(s)
	return out
}

func (b *Builder) snapshot() map[string]*local {
	out := make(map[string]*local, len(b.locals))
	for k, v := range b.locals {
		out[k] = v
	}
	return out
}

func (b *Builder) restore(snap map[string]*local) { b.locals = snap }

func (b *Builder) emitJump(target *BasicBlock) {
	br := b.newInst(OpBr, nil)
	br.Then = target
	b.block.PushBack(br)
	addEdge(b.block, target)
}

func (b *Builder) newInst(op Opcode, t types.Type) *Instruction {
	return &Instruction{Value: Value{ID: b.fn.allocValueID(), Type: t}, Op: op}
}

func (b *Builder) constInt(v int64, t types.Type) *Value {
	return &NewConst(b.fn.allocValueID(), t, v).Value
}
