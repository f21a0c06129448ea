package ir

import "mimic/internal/types"

// Linkage is the visibility/eliminability class of a top-level Module
// value. Kept as its own enum (rather than reusing ast.Linkage) so the
// core IR has no dependency on the AST package — lowering is the only
// boundary that needs to know about both.
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

// Function owns an ordered list of BasicBlocks, entry block first.
type Function struct {
	Value // Type is a *types.Function signature
	Name    string
	Linkage Linkage
	Params  []*Param
	Blocks  []*BasicBlock // entry first

	nextValueID ValueID

	domValid bool
	idom     map[*BasicBlock]*BasicBlock
}

func (f *Function) Signature() *types.Function { return f.Type.(*types.Function) }

// Entry returns the function's entry block, or nil for a body-less
// external declaration.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// HasBody reports whether f is a definition rather than an external
// declaration.
func (f *Function) HasBody() bool { return len(f.Blocks) > 0 }

func (f *Function) allocValueID() ValueID {
	f.nextValueID++
	return f.nextValueID
}

// NewValueID mints a fresh ValueID scoped to f, for passes that
// synthesize new constants or instructions (e.g. constant folding,
// algebraic simplification) outside the builder.
func (f *Function) NewValueID() ValueID { return f.allocValueID() }

// AddBlock appends a new, empty basic block to f and returns it.
func (f *Function) AddBlock(label string) *BasicBlock {
	b := newBasicBlock(f.allocValueID(), label, f)
	f.Blocks = append(f.Blocks, b)
	f.invalidateDominance()
	return b
}

// RemoveBlock drops b from f's block list. Callers must have already
// redirected/erased any edges into b.
func (f *Function) RemoveBlock(b *BasicBlock) {
	for i, blk := range f.Blocks {
		if blk == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			break
		}
	}
	f.invalidateDominance()
}

func (f *Function) invalidateDominance() { f.domValid = false }

// Dominates reports whether a dominates b, backed by a dominator tree
// built lazily on first query and invalidated by any CFG edit (block
// add/remove, Erase of a terminator).
func (f *Function) Dominates(a, b *BasicBlock) bool {
	if !f.domValid {
		f.computeDominance()
	}
	if a == b {
		return true
	}
	for n := f.idom[b]; n != nil; n = f.idom[n] {
		if n == a {
			return true
		}
	}
	return false
}

// computeDominance runs the standard iterative dataflow algorithm
// (Cooper/Harvey/Kennedy) over f's reverse-post-order block list.
func (f *Function) computeDominance() {
	f.idom = make(map[*BasicBlock]*BasicBlock)
	entry := f.Entry()
	if entry == nil {
		f.domValid = true
		return
	}
	order := reversePostOrder(entry)
	index := make(map[*BasicBlock]int, len(order))
	for i, b := range order {
		index[b] = i
	}
	f.idom[entry] = entry
	changed := true
	for changed {
		changed = false
		for _, b := range order[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if f.idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, f.idom, index)
			}
			if newIdom != nil && f.idom[b] != newIdom {
				f.idom[b] = newIdom
				changed = true
			}
		}
	}
	f.idom[entry] = nil // entry has no strict dominator
	f.domValid = true
}

func intersect(a, b *BasicBlock, idom map[*BasicBlock]*BasicBlock, index map[*BasicBlock]int) *BasicBlock {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostOrder returns entry's blocks in reverse post-order of a
// depth-first traversal over Succs — the canonical order data-flow
// algorithms converge fastest on, and deterministic regardless of map
// iteration order.
func reversePostOrder(entry *BasicBlock) []*BasicBlock {
	visited := make(map[*BasicBlock]bool)
	var post []*BasicBlock
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(entry)
	out := make([]*BasicBlock, len(post))
	for i, b := range post {
		out[len(post)-1-i] = b
	}
	return out
}

// Module owns an ordered list of top-level user values: functions and
// globals.
type Module struct {
	Name      string
	Globals   []*Global
	Functions []*Function

	nextValueID ValueID
}

func NewModule(name string) *Module { return &Module{Name: name} }

func (m *Module) allocValueID() ValueID {
	m.nextValueID++
	return m.nextValueID
}

// AddFunction registers a new function declaration/definition on m.
func (m *Module) AddFunction(name string, sig *types.Function, linkage Linkage) *Function {
	fn := &Function{Value: Value{ID: m.allocValueID(), Type: sig}, Name: name, Linkage: linkage}
	m.Functions = append(m.Functions, fn)
	return fn
}

// AddGlobal registers a new global variable. The Global's own Value.Type
// is Pointer(t) — its address — since loads/stores address it exactly
// like any other pointer operand; ElemType carries the declared type.
func (m *Module) AddGlobal(name string, t types.Type, linkage Linkage, init *Const) *Global {
	g := &Global{Value: Value{ID: m.allocValueID(), Type: &types.Pointer{Elem: t}}, ElemType: t, Name: name, Linkage: linkage, Init: init}
	m.Globals = append(m.Globals, g)
	return g
}

// RemoveFunction drops fn from m's function list. Used by dead global
// elimination to remove a body-less or Internal/Inline function with
// no remaining uses.
func (m *Module) RemoveFunction(fn *Function) {
	for i, f := range m.Functions {
		if f == fn {
			m.Functions = append(m.Functions[:i], m.Functions[i+1:]...)
			return
		}
	}
}

// RemoveGlobal drops g from m's global list.
func (m *Module) RemoveGlobal(g *Global) {
	for i, gg := range m.Globals {
		if gg == g {
			m.Globals = append(m.Globals[:i], m.Globals[i+1:]...)
			return
		}
	}
}

// FindFunction looks up a function by name, or returns nil.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindGlobal looks up a global by name, or returns nil.
func (m *Module) FindGlobal(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}
