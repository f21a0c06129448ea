package semantic

import (
	"mimic/internal/ast"
	"mimic/internal/diag"
	"mimic/internal/types"
)

// checkExpr infers e's type, records it in info.ExprTypes, and reports
// any diagnostics. It always returns a usable type (falling back to
// void on error) so callers can keep checking instead of aborting.
func (a *Analyzer) checkExpr(e ast.Expr) types.Type {
	t := a.inferExpr(e)
	a.info.ExprTypes[e] = t
	return t
}

func (a *Analyzer) inferExpr(e ast.Expr) types.Type {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		return a.inferLiteral(x)
	case *ast.IdentExpr:
		return a.inferIdent(x)
	case *ast.ParenExpr:
		return a.checkExpr(x.X)
	case *ast.UnaryExpr:
		return a.inferUnary(x)
	case *ast.BinaryExpr:
		return a.inferBinary(x)
	case *ast.CastExpr:
		return a.inferCast(x)
	case *ast.CallExpr:
		return a.inferCall(x)
	case *ast.FieldAccessExpr:
		return a.inferFieldAccess(x)
	case *ast.IndexExpr:
		return a.inferIndex(x)
	default:
		return &types.Primitive{Kind: types.Void}
	}
}

func (a *Analyzer) inferLiteral(l *ast.LiteralExpr) types.Type {
	switch l.Kind {
	case ast.StringLiteral:
		return &types.Pointer{Elem: &types.Primitive{Kind: types.U8}}
	default:
		return &types.RightValue{Inner: &types.Primitive{Kind: types.I32}}
	}
}

func (a *Analyzer) inferIdent(id *ast.IdentExpr) types.Type {
	if sym := a.scope.Lookup(id.Name); sym != nil {
		return sym.Type
	}
	if g, ok := a.info.Globals[id.Name]; ok {
		return g.Type
	}
	a.diags.Errorf(id.NodePos(), diag.SourceErrorKind, "E0001", "undeclared identifier %q", id.Name)
	return &types.Primitive{Kind: types.Void}
}

func (a *Analyzer) inferUnary(u *ast.UnaryExpr) types.Type {
	xt := a.checkExpr(u.X)
	switch u.Op {
	case ast.AddrOf:
		return &types.Pointer{Elem: types.Unwrap(xt)}
	case ast.Deref:
		if p, ok := types.Unwrap(xt).(*types.Pointer); ok {
			return p.Elem
		}
		a.diags.Errorf(u.NodePos(), diag.SourceErrorKind, "E0005", "cannot dereference non-pointer type %s", xt)
		return &types.Primitive{Kind: types.Void}
	case ast.Not:
		return &types.RightValue{Inner: &types.Primitive{Kind: types.I32}}
	default: // Neg, BitNot
		return types.ToRightValue(types.Unwrap(xt))
	}
}

func (a *Analyzer) inferBinary(b *ast.BinaryExpr) types.Type {
	lt := a.checkExpr(b.Left)
	rt := a.checkExpr(b.Right)
	switch b.Op {
	case ast.LogAnd, ast.LogOr, ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge:
		return &types.RightValue{Inner: &types.Primitive{Kind: types.I32}}
	default:
		common := types.CommonType(types.Unwrap(lt), types.Unwrap(rt))
		if common == nil {
			a.diags.Errorf(b.NodePos(), diag.SourceErrorKind, "E0002", "incompatible operand types %s and %s", lt, rt)
			return &types.Primitive{Kind: types.Void}
		}
		return types.ToRightValue(common)
	}
}

func (a *Analyzer) inferCast(c *ast.CastExpr) types.Type {
	xt := a.checkExpr(c.X)
	dst := typeExprOf(a.info.Registry, c.Type)
	if !types.CastLegal(dst, types.Unwrap(xt)) {
		a.diags.Errorf(c.NodePos(), diag.SourceErrorKind, "E0006", "illegal cast from %s to %s", xt, dst)
	}
	return types.ToRightValue(dst)
}

func (a *Analyzer) inferCall(call *ast.CallExpr) types.Type {
	sig, ok := a.info.Functions[call.Callee]
	if !ok {
		a.diags.Errorf(call.NodePos(), diag.SourceErrorKind, "E0007", "call to undeclared function %q", call.Callee)
		for _, arg := range call.Args {
			a.checkExpr(arg)
		}
		return &types.Primitive{Kind: types.Void}
	}
	if len(call.Args) != len(sig.Type.Params) {
		a.diags.Errorf(call.NodePos(), diag.SourceErrorKind, "E0008", "function %q expects %d argument(s), got %d", call.Callee, len(sig.Type.Params), len(call.Args))
	}
	for i, arg := range call.Args {
		at := a.checkExpr(arg)
		if i < len(sig.Type.Params) && !types.CanAccept(sig.Type.Params[i], types.Unwrap(at)) {
			a.diags.Errorf(arg.NodePos(), diag.SourceErrorKind, "E0008", "argument %d to %q: cannot use value of type %s as %s", i+1, call.Callee, at, sig.Type.Params[i])
		}
	}
	return types.ToRightValue(sig.Type.Ret)
}

func (a *Analyzer) inferFieldAccess(f *ast.FieldAccessExpr) types.Type {
	xt := a.checkExpr(f.X)
	st := structOf(xt)
	if st == nil {
		a.diags.Errorf(f.NodePos(), diag.SourceErrorKind, "E0010", "type %s has no fields", xt)
		return &types.Primitive{Kind: types.Void}
	}
	idx := st.FieldIndex(f.Field)
	if idx < 0 {
		a.diags.Errorf(f.NodePos(), diag.SourceErrorKind, "E0011", "struct %s has no field %q", st.Name, f.Field)
		return &types.Primitive{Kind: types.Void}
	}
	return st.Fields[idx].Type
}

func structOf(t types.Type) *types.Struct {
	switch u := types.Unwrap(t).(type) {
	case *types.Struct:
		return u
	case *types.Pointer:
		return structOf(u.Elem)
	default:
		return nil
	}
}

func (a *Analyzer) inferIndex(idx *ast.IndexExpr) types.Type {
	xt := a.checkExpr(idx.X)
	it := a.checkExpr(idx.Index)
	if _, ok := types.Unwrap(it).(*types.Primitive); !ok {
		a.diags.Errorf(idx.NodePos(), diag.SourceErrorKind, "E0012", "array index must be an integer, got %s", it)
	}
	switch u := types.Unwrap(xt).(type) {
	case *types.Array:
		return u.Elem
	case *types.Pointer:
		return u.Elem
	default:
		a.diags.Errorf(idx.NodePos(), diag.SourceErrorKind, "E0013", "cannot index non-array, non-pointer type %s", xt)
		return &types.Primitive{Kind: types.Void}
	}
}
