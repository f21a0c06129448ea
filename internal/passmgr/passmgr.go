// Package passmgr implements the pass infrastructure: a process-wide
// registry of named passes, topological scheduling by declared
// dependency, and fixpoint execution bounded by a per-stage iteration
// cap. Unlike a flat ordered slice of passes run once start to finish,
// this adds stage masks, optimization-level thresholds, dependency
// ordering, and a fixpoint loop, plus a printf-style trace of what ran
// and whether it changed anything.
package passmgr

import (
	"fmt"
	"sort"

	"mimic/internal/diag"
	"mimic/internal/ir"
)

// Stage is a bitmask so a pass can run in more than one phase of the
// pipeline: any subset of {PreOpt, Opt, PostOpt, PreEmit, ...}.
type Stage int

const (
	PreOpt Stage = 1 << iota
	Opt
	PostOpt
	PreEmit
)

func (s Stage) String() string {
	names := []struct {
		bit  Stage
		name string
	}{{PreOpt, "PreOpt"}, {Opt, "Opt"}, {PostOpt, "PostOpt"}, {PreEmit, "PreEmit"}}
	out := ""
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// Kind selects which entity granularity a pass's visit method receives:
// one of three kinds, by visitor granularity.
type Kind int

const (
	ModuleKind Kind = iota
	FunctionKind
	BlockKind
)

// ModulePass sees the module's top-level value list.
type ModulePass interface {
	Name() string
	RunOnModule(m *ir.Module) bool
}

// FunctionPass sees each function body in turn.
type FunctionPass interface {
	Name() string
	RunOnFunction(fn *ir.Function) bool
}

// BlockPass sees each basic block in turn.
type BlockPass interface {
	Name() string
	RunOnBlock(b *ir.BasicBlock) bool
}

// Descriptor is a registration record: name, stage mask, optimization
// threshold, and declared dependencies.
type Descriptor struct {
	Name      string
	Kind      Kind
	Stages    Stage
	Threshold int
	Deps      []string
}

type registration struct {
	Descriptor
	New func(diags *diag.Collector) interface{} // returns a ModulePass, FunctionPass, or BlockPass
}

// Registry is the process-wide table of known passes. DefaultRegistry is
// populated by the init() functions of internal/passes, which run when
// that package is imported (cmd/mmcc imports it for this); there is no
// separate initialization function called from main.
type Registry struct {
	entries map[string]*registration
	order   []string // registration order, for deterministic ShowInfo output
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds a pass descriptor plus its constructor to r. Re-registering
// the same name overwrites the prior entry (useful for tests).
func (r *Registry) Register(d Descriptor, new func(diags *diag.Collector) interface{}) {
	if _, exists := r.entries[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.entries[d.Name] = &registration{Descriptor: d, New: new}
}

// ShowInfo enumerates registered passes with stage/level/deps, in
// registration order, for the CLI's `-dump-passes` / diagnostic surface.
func (r *Registry) ShowInfo() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].Descriptor)
	}
	return out
}

// DefaultRegistry is the registry internal/passes populates via its own
// init-time registration calls, and cmd/mmcc drives.
var DefaultRegistry = NewRegistry()

// Manager schedules and runs a registry's passes for one compilation.
type Manager struct {
	Registry  *Registry
	Trace     func(format string, args ...interface{}) // nil disables tracing
	IterCap   int                                       // per-stage fixpoint cap; 0 means the default of 32
}

func NewManager(reg *Registry) *Manager {
	return &Manager{Registry: reg, IterCap: 32}
}

func (m *Manager) trace(format string, args ...interface{}) {
	if m.Trace != nil {
		m.Trace(format, args...)
	}
}

// Run filters the registry by stage and optimization level, topologically
// orders the result by declared dependency, then executes that sequence
// to a fixpoint: repeat the whole sequence while any pass in it reports
// changed, up to IterCap repetitions.
func (m *Manager) Run(mod *ir.Module, stage Stage, level int, diags *diag.Collector) error {
	selected, err := m.schedule(stage, level)
	if err != nil {
		return err
	}
	cap := m.IterCap
	if cap <= 0 {
		cap = 32
	}
	for iter := 0; iter < cap; iter++ {
		changed := false
		for _, reg := range selected {
			if m.runOne(reg, mod, diags) {
				changed = true
			}
		}
		if !changed {
			return nil
		}
		if iter == cap-1 {
			m.trace("pass-manager: stage %s hit iteration cap (%d); remaining fixpoint iteration skipped", stage, cap)
		}
	}
	return nil
}

func (m *Manager) runOne(reg *registration, mod *ir.Module, diags *diag.Collector) bool {
	changed := false
	p := reg.New(diags)
	switch pass := p.(type) {
	case ModulePass:
		changed = pass.RunOnModule(mod)
	case FunctionPass:
		for _, fn := range mod.Functions {
			if pass.RunOnFunction(fn) {
				changed = true
			}
		}
	case BlockPass:
		for _, fn := range mod.Functions {
			for _, b := range fn.Blocks {
				if pass.RunOnBlock(b) {
					changed = true
				}
			}
		}
	default:
		m.trace("pass-manager: %s: PassFailure — constructor returned no recognized pass kind", reg.Name)
		return false
	}
	if changed {
		m.trace("  - %s: applied", reg.Name)
	} else {
		m.trace("  - %s: no change", reg.Name)
	}
	return changed
}

// MisconfigurationError reports a fatal pre-compilation configuration
// problem — unknown pass name, cyclic dependency, unknown -O value —
// that must fail fast, before any compilation work.
type MisconfigurationError struct {
	Message string
}

func (e *MisconfigurationError) Error() string { return e.Message }

// schedule filters by stage/threshold then topologically sorts by
// declared dependency; a dependency cycle is a fatal Misconfiguration.
func (m *Manager) schedule(stage Stage, level int) ([]*registration, error) {
	var candidates []*registration
	for _, name := range m.Registry.order {
		reg := m.Registry.entries[name]
		if reg.Stages&stage == 0 {
			continue
		}
		if level < reg.Threshold {
			continue
		}
		candidates = append(candidates, reg)
	}
	return topoSort(candidates)
}

// topoSort orders candidates so each pass follows every pass it declares
// as a dependency, visiting candidate names in lexical order so the
// result is independent of map iteration order. A dependency naming a
// pass outside candidates is ignored (that pass is simply absent from
// this stage/level).
func topoSort(candidates []*registration) ([]*registration, error) {
	byName := make(map[string]*registration, len(candidates))
	for _, c := range candidates {
		byName[c.Name] = c
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(candidates))
	var order []*registration

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	sort.Strings(names) // deterministic visit order independent of map iteration

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return &MisconfigurationError{Message: fmt.Sprintf("pass dependency cycle: %v -> %s", stack, name)}
		}
		state[name] = visiting
		reg := byName[name]
		for _, dep := range reg.Deps {
			if _, ok := byName[dep]; !ok {
				continue // dependency not selected for this stage/level
			}
			if err := visit(dep, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, reg)
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
