package ast

// Program is the root of a MimiC translation unit: an ordered sequence
// of top-level items, mirroring the ordering guarantee the SSA Module
// makes over its user values.
type Program struct {
	*Metadata
	Structs   []*StructDecl
	Globals   []*GlobalDecl
	Functions []*FuncDecl
}

func (p *Program) String() string { return "program" }

// StructDecl declares a nominal struct type.
type StructDecl struct {
	*Metadata
	Name   string
	Fields []*FieldDecl
}

func (s *StructDecl) String() string { return "struct " + s.Name }

// FieldDecl is one field of a StructDecl.
type FieldDecl struct {
	*Metadata
	Name string
	Type TypeExpr
}

func (f *FieldDecl) String() string { return f.Name }

// Linkage is the visibility/eliminability class of a top-level value.
type Linkage int

const (
	External Linkage = iota
	Internal
	Inline
	GlobalCtor
)

func (l Linkage) String() string {
	switch l {
	case External:
		return "external"
	case Internal:
		return "internal"
	case Inline:
		return "inline"
	case GlobalCtor:
		return "ctor"
	default:
		return "?"
	}
}

// GlobalDecl declares a global variable, optionally with an initializer.
type GlobalDecl struct {
	*Metadata
	Name    string
	Type    TypeExpr
	Init    Expr // nil if uninitialized
	Linkage Linkage
}

func (g *GlobalDecl) String() string { return g.Name }

// Param is one parameter of a FuncDecl.
type Param struct {
	*Metadata
	Name string
	Type TypeExpr
}

func (p *Param) String() string { return p.Name }

// FuncDecl declares a function, with or without a body (a body-less
// decl is an external declaration).
type FuncDecl struct {
	*Metadata
	Name    string
	Params  []*Param
	Ret     TypeExpr
	Body    *BlockStmt // nil for a declaration without a body
	Linkage Linkage
	Inline  bool // eligible for the inliner when Linkage == Inline
}

func (f *FuncDecl) String() string { return f.Name }
