package passes

import (
	"mimic/internal/diag"
	"mimic/internal/ir"
	"mimic/internal/passmgr"
)

// InlineSizeThreshold bounds how large (in instruction count) an Inline
// function may be before the Inliner will still copy its body into a
// call site.
const InlineSizeThreshold = 24

func init() {
	passmgr.DefaultRegistry.Register(
		passmgr.Descriptor{Name: "inline", Kind: passmgr.ModuleKind, Stages: passmgr.Opt, Threshold: 2},
		func(diags *diag.Collector) interface{} { return &Inliner{} },
	)
}

// Inliner replaces calls to small, non-recursive Inline-linkage functions
// with a copy of the callee body. It is conservative: it only handles
// the straight-line case where the callee has a single block ending in
// a single return (the common case for small helpers); callees with
// internal control flow are left to the call instruction.
type Inliner struct{}

func (p *Inliner) Name() string { return "inline" }

func (p *Inliner) RunOnModule(m *ir.Module) bool {
	changed := false
	callGraph := buildCallGraph(m)
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions() {
				if inst.Op != ir.OpCall || inst.Callee == nil {
					continue
				}
				callee := inst.Callee
				if !p.eligible(callee, callGraph) {
					continue
				}
				if p.inlineCall(inst, callee) {
					changed = true
				}
			}
		}
	}
	return changed
}

func (p *Inliner) eligible(callee *ir.Function, graph map[*ir.Function]map[*ir.Function]bool) bool {
	if callee.Linkage != ir.Inline || !callee.HasBody() {
		return false
	}
	if len(callee.Blocks) != 1 {
		return false // only straight-line callees are inlined
	}
	if len(callee.Blocks[0].Instructions()) > InlineSizeThreshold {
		return false
	}
	if reaches(graph, callee, callee) {
		return false // callee participates in a recursion cycle
	}
	return true
}

// reaches reports whether start can reach target through the static
// call graph — used to reject inlining a callee that participates in a
// recursion cycle.
func reaches(graph map[*ir.Function]map[*ir.Function]bool, start, target *ir.Function) bool {
	visited := map[*ir.Function]bool{}
	var walk func(f *ir.Function) bool
	walk = func(f *ir.Function) bool {
		if visited[f] {
			return false
		}
		visited[f] = true
		for callee := range graph[f] {
			if callee == target || walk(callee) {
				return true
			}
		}
		return false
	}
	return walk(start)
}

func buildCallGraph(m *ir.Module) map[*ir.Function]map[*ir.Function]bool {
	graph := make(map[*ir.Function]map[*ir.Function]bool)
	for _, fn := range m.Functions {
		callees := make(map[*ir.Function]bool)
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions() {
				if inst.Op == ir.OpCall && inst.Callee != nil {
					callees[inst.Callee] = true
				}
			}
		}
		graph[fn] = callees
	}
	return graph
}

// inlineCall copies callee's single block into call's block in place of
// the call instruction, remapping the callee's parameters to the call's
// argument values and its return value to the call's result uses.
func (p *Inliner) inlineCall(call *ir.Instruction, callee *ir.Function) bool {
	body := callee.Blocks[0]
	remap := make(map[*ir.Value]*ir.Value, len(callee.Params))
	for i, param := range callee.Params {
		remap[&param.Value] = call.Operand(i)
	}

	fn := call.Block.Func
	var retVal *ir.Value
	insertPoint := call

	for _, inst := range body.Instructions() {
		if inst.Op == ir.OpRet {
			if inst.Operand(0) != nil {
				retVal = remapValue(remap, inst.Operand(0))
			}
			continue
		}
		copy := &ir.Instruction{
			Value:      ir.Value{ID: fn.NewValueID(), Type: inst.Type},
			Op:         inst.Op,
			AllocaType: inst.AllocaType,
			GEPField:   inst.GEPField,
			CastTo:     inst.CastTo,
			Callee:     inst.Callee,
			SourceLine: inst.SourceLine,
		}
		for idx := range inst.Operands {
			ir.SetOperand(copy, idx, remapValue(remap, inst.Operand(idx)))
		}
		remap[&inst.Value] = &copy.Value
		ir.InsertBefore(insertPoint, copy)
	}

	if retVal != nil {
		ir.ReplaceAllUsesWith(&call.Value, retVal)
	}
	ir.Erase(call)
	return true
}

func remapValue(remap map[*ir.Value]*ir.Value, v *ir.Value) *ir.Value {
	if v == nil {
		return nil
	}
	if nv, ok := remap[v]; ok {
		return nv
	}
	return v
}
