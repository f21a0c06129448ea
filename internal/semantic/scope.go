// Package semantic implements type checking over the MimiC AST. It
// exists so the IR builder (internal/ir) has a concrete, typed AST to
// lower.
package semantic

import (
	"mimic/internal/ast"
	"mimic/internal/types"
)

// Symbol is a named entity visible in a scope.
type Symbol struct {
	Name    string
	Type    types.Type
	Mutable bool
}

// Scope is one level of the lexical scope stack: an explicit parent
// pointer, no ambient global state.
type Scope struct {
	symbols map[string]*Symbol
	parent  *Scope
}

func NewScope(parent *Scope) *Scope {
	return &Scope{symbols: make(map[string]*Symbol), parent: parent}
}

func (s *Scope) Define(sym *Symbol) { s.symbols[sym.Name] = sym }

func (s *Scope) Lookup(name string) *Symbol {
	if sym, ok := s.symbols[name]; ok {
		return sym
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return nil
}

func (s *Scope) LookupLocal(name string) *Symbol {
	return s.symbols[name]
}

// typeExprOf resolves syntax to a types.Type given a struct registry.
func typeExprOf(reg *types.Registry, te ast.TypeExpr) types.Type {
	switch t := te.(type) {
	case *ast.ResolvedType:
		return t.T
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
			if s := reg.LookupStruct(t.Name); s != nil {
				return s
			}
			if a := reg.LookupAlias(t.Name); a != nil {
				return a
			}
			return &types.Primitive{Kind: types.Void}
		}
	case *ast.PointerType:
		return &types.Pointer{Elem: typeExprOf(reg, t.Elem)}
	case *ast.ArrayType:
		return &types.Array{Elem: typeExprOf(reg, t.Elem), Len: t.Len}
	case *ast.ConstType:
		return &types.Const{Inner: typeExprOf(reg, t.Inner)}
	default:
		return &types.Primitive{Kind: types.Void}
	}
}
