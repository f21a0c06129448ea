package semantic

import (
	"mimic/internal/ast"
	"mimic/internal/diag"
	"mimic/internal/types"
)

// FuncSig is the resolved signature of a declared function.
type FuncSig struct {
	Decl *ast.FuncDecl
	Type *types.Function
}

// GlobalInfo is the resolved type/linkage of a declared global.
type GlobalInfo struct {
	Decl *ast.GlobalDecl
	Type types.Type
}

// Info is the output of Analyze: every expression's resolved type, plus
// the whole-program symbol tables the IR builder needs to resolve
// identifiers and calls.
type Info struct {
	Registry  *types.Registry
	Functions map[string]*FuncSig
	Globals   map[string]*GlobalInfo
	ExprTypes map[ast.Expr]types.Type
}

func (info *Info) TypeOf(e ast.Expr) types.Type { return info.ExprTypes[e] }

// Analyzer walks a parsed Program, resolving types and reporting
// diagnostics through a diag.Collector.
type Analyzer struct {
	diags *diag.Collector
	info  *Info
	scope *Scope
	fn    *ast.FuncDecl
	fnRet types.Type
}

func NewAnalyzer(diags *diag.Collector) *Analyzer {
	return &Analyzer{
		diags: diags,
		info: &Info{
			Registry:  types.NewRegistry(),
			Functions: make(map[string]*FuncSig),
			Globals:   make(map[string]*GlobalInfo),
			ExprTypes: make(map[ast.Expr]types.Type),
		},
	}
}

// Analyze type-checks prog and returns the resolved Info. Analysis
// continues past individual errors, accumulating diagnostics rather
// than aborting, so a single typo does not hide every other diagnostic
// in the file.
func Analyze(prog *ast.Program, diags *diag.Collector) *Info {
	a := NewAnalyzer(diags)
	a.registerStructs(prog.Structs)
	a.registerSignatures(prog)
	for _, g := range prog.Globals {
		a.checkGlobal(g)
	}
	for _, f := range prog.Functions {
		a.checkFunction(f)
	}
	return a.info
}

func (a *Analyzer) registerStructs(decls []*ast.StructDecl) {
	structs := make([]*types.Struct, len(decls))
	for i, d := range decls {
		s := &types.Struct{Name: d.Name}
		structs[i] = s
		a.info.Registry.DefineStruct(s)
	}
	// Two-pass: register names first so field types can reference
	// structs declared later in the file, then fill in fields.
	for i, d := range decls {
		for _, f := range d.Fields {
			structs[i].Fields = append(structs[i].Fields, types.Field{
				Name: f.Name,
				Type: typeExprOf(a.info.Registry, f.Type),
			})
		}
	}
	if name, ok := types.NewStructGraph(structs).HasCycle(); ok {
		pos := ast.Position{}
		for _, d := range decls {
			if d.Name == name {
				pos = d.NodePos()
				break
			}
		}
		a.diags.Errorf(pos, diag.SourceErrorKind, "E0201", "struct %q recurses through a by-value field cycle", name)
	}
}

func (a *Analyzer) registerSignatures(prog *ast.Program) {
	for _, f := range prog.Functions {
		params := make([]types.Type, len(f.Params))
		for i, p := range f.Params {
			params[i] = types.Decay(typeExprOf(a.info.Registry, p.Type))
		}
		ret := typeExprOf(a.info.Registry, f.Ret)
		sig := &types.Function{Params: params, Ret: ret}
		if existing, ok := a.info.Functions[f.Name]; ok {
			a.diags.Errorf(f.NodePos(), diag.SourceErrorKind, "E0009", "duplicate declaration of function %q (previously at line %d)", f.Name, existing.Decl.NodePos().Line)
			continue
		}
		a.info.Functions[f.Name] = &FuncSig{Decl: f, Type: sig}
	}
}

func (a *Analyzer) checkGlobal(g *ast.GlobalDecl) {
	t := typeExprOf(a.info.Registry, g.Type)
	if g.Init != nil {
		a.scope = NewScope(nil)
		initType := a.checkExpr(g.Init)
		if !types.Assignable(t, initType) {
			a.diags.Errorf(g.NodePos(), diag.SourceErrorKind, "E0003", "cannot initialize global %q of type %s with value of type %s", g.Name, t, initType)
		}
	}
	a.info.Globals[g.Name] = &GlobalInfo{Decl: g, Type: t}
}

func (a *Analyzer) checkFunction(f *ast.FuncDecl) {
	if f.Body == nil {
		return // external declaration; nothing to check
	}
	a.fn = f
	a.fnRet = typeExprOf(a.info.Registry, f.Ret)
	a.scope = NewScope(nil)
	for _, p := range f.Params {
		a.scope.Define(&Symbol{Name: p.Name, Type: types.Decay(typeExprOf(a.info.Registry, p.Type)), Mutable: true})
	}
	a.checkBlock(f.Body)
}

func (a *Analyzer) checkBlock(b *ast.BlockStmt) {
	parent := a.scope
	a.scope = NewScope(parent)
	for _, s := range b.Stmts {
		a.checkStmt(s)
	}
	a.scope = parent
}

func (a *Analyzer) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.BlockStmt:
		a.checkBlock(st)
	case *ast.LetStmt:
		a.checkLet(st)
	case *ast.AssignStmt:
		a.checkAssign(st)
	case *ast.IfStmt:
		a.checkExpr(st.Cond)
		a.checkBlock(st.Then)
		if st.Else != nil {
			a.checkStmt(st.Else)
		}
	case *ast.WhileStmt:
		a.checkExpr(st.Cond)
		a.checkBlock(st.Body)
	case *ast.ReturnStmt:
		a.checkReturn(st)
	case *ast.ExprStmt:
		a.checkExpr(st.X)
	}
}

func (a *Analyzer) checkLet(l *ast.LetStmt) {
	initType := a.checkExpr(l.Init)
	var declared types.Type
	if l.Type != nil {
		declared = typeExprOf(a.info.Registry, l.Type)
		if !types.Assignable(declared, initType) {
			a.diags.Errorf(l.NodePos(), diag.SourceErrorKind, "E0003", "cannot initialize %q of type %s with value of type %s", l.Name, declared, initType)
		}
	} else {
		declared = types.Unwrap(initType)
	}
	if l.Const {
		declared = &types.Const{Inner: declared}
	}
	a.scope.Define(&Symbol{Name: l.Name, Type: declared, Mutable: !l.Const})
}

func (a *Analyzer) checkAssign(as *ast.AssignStmt) {
	targetType := a.checkExpr(as.Target)
	valType := a.checkExpr(as.Value)
	if sym := a.lookupTargetSymbol(as.Target); sym != nil && !sym.Mutable {
		a.diags.Errorf(as.NodePos(), diag.SourceErrorKind, "E0014", "cannot assign to const-qualified left-value")
		return
	}
	if !types.Assignable(targetType, valType) {
		a.diags.Errorf(as.NodePos(), diag.SourceErrorKind, "E0003", "cannot assign value of type %s to left-value of type %s", valType, targetType)
	}
}

func (a *Analyzer) lookupTargetSymbol(e ast.Expr) *Symbol {
	if id, ok := e.(*ast.IdentExpr); ok {
		return a.scope.Lookup(id.Name)
	}
	return nil
}

func (a *Analyzer) checkReturn(r *ast.ReturnStmt) {
	if r.Value == nil {
		if !isVoid(a.fnRet) {
			a.diags.Errorf(r.NodePos(), diag.SourceErrorKind, "E0004", "function %q must return a value of type %s", a.fn.Name, a.fnRet)
		}
		return
	}
	valType := a.checkExpr(r.Value)
	if isVoid(a.fnRet) {
		a.diags.Errorf(r.NodePos(), diag.SourceErrorKind, "E0004", "void function %q must not return a value", a.fn.Name)
		return
	}
	if !types.CanAccept(a.fnRet, types.Unwrap(valType)) {
		a.diags.Errorf(r.NodePos(), diag.SourceErrorKind, "E0004", "cannot return value of type %s from function %q returning %s", valType, a.fn.Name, a.fnRet)
	}
}

func isVoid(t types.Type) bool {
	p, ok := types.Unwrap(t).(*types.Primitive)
	return ok && p.Kind == types.Void
}
