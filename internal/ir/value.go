// Package ir implements the SSA intermediate representation: typed
// values joined by explicit Use edges, owned transitively by a Module.
// This is the hardest-engineering core the rest of the compiler builds
// on (pass infrastructure in internal/passmgr, transformations in
// internal/passes, lowering in internal/selector).
//
// A Value/Use/BasicBlock/Function/Module model with a single Instruction
// struct whose HasEffects() gives the side-effect classification.
// Operands are held in a single indexable slice of *Use per
// instruction rather than one bespoke Go struct per opcode, so
// set_operand can index directly into it.
package ir

import "mimic/internal/types"

// ValueID uniquely identifies a Value within a Module, assigned in
// creation order so textual dumps are deterministic without needing to
// sort by anything.
type ValueID uint32

// Value is the common base every SSA entity embeds: constants, globals,
// functions, basic blocks (as branch targets), parameters, and
// instruction results all carry identity, a type, and a use-list.
type Value struct {
	ID    ValueID
	Type  types.Type
	Uses  []*Use
	Const *Const // non-nil iff this Value is (or is embedded in) a Const
}

// Use is a first-class back-edge: exactly one exists per operand slot
// that names a Value, and it names both the user instruction and the
// slot index within that instruction's Operands list.
type Use struct {
	Value *Value
	User  *Instruction
	Index int
}

// addUse appends a new back-edge from v to the given use record.
func (v *Value) addUse(u *Use) { v.Uses = append(v.Uses, u) }

// removeUse deletes the back-edge for (user, index) from v's use-list.
// It is a no-op if no such edge exists (tolerates double-removal during
// erase).
func (v *Value) removeUse(user *Instruction, index int) {
	for i, u := range v.Uses {
		if u.User == user && u.Index == index {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

// HasUses reports whether any operand slot anywhere still references v.
func (v *Value) HasUses() bool { return len(v.Uses) > 0 }

// ConstKind tags which field of Const is meaningful.
type ConstKind int

const (
	IntConst    ConstKind = iota // IntVal
	StrConst                     // StrVal — a bare string constant, distinct from a Global's StringData backing store
	ZeroConst                    // the zero value of Value.Type; no payload field is read
	ArrayConst                   // Elems
	StructConst                  // Elems, one per field in declaration order
)

// Const is an interned constant value, deduplicated within a module.
// Only IntConst is produced by the builder today; the other kinds exist
// so passes and the selector have somewhere to go once array/struct
// literals and explicit zero-values are lowered.
type Const struct {
	Value
	Kind   ConstKind
	IntVal int64
	StrVal string
	Elems  []*Const // ArrayConst, StructConst
}

// NewConst builds an IntConst and wires its Value.Const back-pointer so
// passes and the printer can recognize a *Value as a constant without
// an unsafe downcast.
func NewConst(id ValueID, t types.Type, v int64) *Const {
	c := &Const{Value: Value{ID: id, Type: t}, Kind: IntConst, IntVal: v}
	c.Value.Const = c
	return c
}

// NewZeroConst builds the zero-value constant of t (used for
// default-initialized locals and globals without an explicit initializer).
func NewZeroConst(id ValueID, t types.Type) *Const {
	c := &Const{Value: Value{ID: id, Type: t}, Kind: ZeroConst}
	c.Value.Const = c
	return c
}

// NewStringConst builds a bare string constant. Unlike a Global's
// StringData, this carries the text directly on the Value rather than
// addressing static storage — for string constants that fold into
// compile-time string operations rather than needing a label.
func NewStringConst(id ValueID, t types.Type, s string) *Const {
	c := &Const{Value: Value{ID: id, Type: t}, Kind: StrConst, StrVal: s}
	c.Value.Const = c
	return c
}

// NewArrayConst and NewStructConst build aggregate constants from
// already-built element/field constants.
func NewArrayConst(id ValueID, t types.Type, elems []*Const) *Const {
	c := &Const{Value: Value{ID: id, Type: t}, Kind: ArrayConst, Elems: elems}
	c.Value.Const = c
	return c
}

func NewStructConst(id ValueID, t types.Type, fields []*Const) *Const {
	c := &Const{Value: Value{ID: id, Type: t}, Kind: StructConst, Elems: fields}
	c.Value.Const = c
	return c
}

// Global is a module-level variable, with or without an initializer. Its
// Value.Type is Pointer(ElemType) — the address — so it can be used
// directly as a Load/Store operand like any other pointer value.
type Global struct {
	Value
	Name       string
	ElemType   types.Type
	Linkage    Linkage
	Init       *Const // nil if zero-initialized / externally defined
	StringData string // non-empty for a synthesized string-literal backing store
}

// Param is a function argument, bound once at function entry — its
// "definition" is the function prologue itself, not any instruction.
type Param struct {
	Value
	Name string
	Func *Function
}
