// Package ast defines the typed abstract syntax tree produced by
// parsing MimiC source. Lexing, parsing, and semantic analysis live in
// internal/parser and internal/semantic; this package only describes
// their output so the rest of the pipeline has a stable node set to
// consume.
package ast

import "mimic/internal/types"

// Position tracks a source location for diagnostics.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

// NodeID identifies a node. Only Metadata made by newMeta (NewNamedType)
// gets a fresh nonzero ID; nodes built by the parser carry ID 0, and the
// IR and MIR stages keep no link back to AST nodes.
type NodeID uint32

// Metadata is the minimal provenance every node carries: its own ID and
// source range.
type Metadata struct {
	ID    NodeID
	Start Position
	End   Position
}

// Node is the common interface implemented by every AST node.
type Node interface {
	NodePos() Position
	NodeEndPos() Position
	String() string
	Meta() *Metadata
}

var nextNodeID NodeID = 1

func newMeta(start, end Position) *Metadata {
	id := nextNodeID
	nextNodeID++
	return &Metadata{ID: id, Start: start, End: end}
}

func (m *Metadata) NodePos() Position    { return m.Start }
func (m *Metadata) NodeEndPos() Position { return m.End }
func (m *Metadata) Meta() *Metadata      { return m }

// TypeExpr is the syntactic spelling of a type in source, resolved to a
// types.Type by the semantic layer.
type TypeExpr interface {
	Node
	isTypeExpr()
}

// NamedType is a primitive name (i8, u8, i32, u32, void) or a struct name.
type NamedType struct {
	*Metadata
	Name string
}

func (*NamedType) isTypeExpr() {}

// PointerType is `*T`.
type PointerType struct {
	*Metadata
	Elem TypeExpr
}

func (*PointerType) isTypeExpr() {}

// ArrayType is `T[n]`.
type ArrayType struct {
	*Metadata
	Elem TypeExpr
	Len  int
}

func (*ArrayType) isTypeExpr() {}

// ConstType is `const T`.
type ConstType struct {
	*Metadata
	Inner TypeExpr
}

func (*ConstType) isTypeExpr() {}

// ResolvedType wraps an already-resolved types.Type so lowering code that
// builds synthetic AST nodes (tests, desugaring) need not round-trip
// through syntax.
type ResolvedType struct {
	*Metadata
	T types.Type
}

func (*ResolvedType) isTypeExpr() {}

func NewNamedType(pos Position, name string) *NamedType {
	return &NamedType{Metadata: newMeta(pos, pos), Name: name}
}

func (t *NamedType) String() string    { return t.Name }
func (t *PointerType) String() string  { return "*" + t.Elem.String() }
func (t *ArrayType) String() string    { return t.Elem.String() + "[]" }
func (t *ConstType) String() string    { return "const " + t.Inner.String() }
func (t *ResolvedType) String() string { return t.T.String() }
