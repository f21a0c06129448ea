package types

// Registry tracks the types visible in a translation unit: built-in
// primitives, user-defined structs, and type aliases registered through
// DefineAlias (the parser has no alias declaration syntax). Aliases and
// structs are kept in distinct scopes
// so an alias can never shadow or be shadowed by a struct of the same
// name.
type Registry struct {
	structs map[string]*Struct
	aliases map[string]Type
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		structs: make(map[string]*Struct),
		aliases: make(map[string]Type),
	}
}

// DefineStruct registers a struct type by name.
func (r *Registry) DefineStruct(s *Struct) { r.structs[s.Name] = s }

// DefineAlias registers a type alias by name.
func (r *Registry) DefineAlias(name string, t Type) { r.aliases[name] = t }

// LookupStruct returns the struct registered under name, or nil.
func (r *Registry) LookupStruct(name string) *Struct { return r.structs[name] }

// LookupAlias returns the alias registered under name, or nil.
func (r *Registry) LookupAlias(name string) Type { return r.aliases[name] }

// Resolve follows alias chains until reaching a non-alias name, or
// returns nil if name is neither a struct nor an alias.
func (r *Registry) Resolve(name string) Type {
	seen := map[string]bool{}
	for {
		if seen[name] {
			return nil // cyclic alias chain
		}
		seen[name] = true
		if t, ok := r.aliases[name]; ok {
			if id, ok2 := t.(*namedRef); ok2 {
				name = id.Name
				continue
			}
			return t
		}
		if s, ok := r.structs[name]; ok {
			return s
		}
		return nil
	}
}

// namedRef is a placeholder type used only during alias resolution for a
// name that itself refers to another alias; it never escapes Resolve.
type namedRef struct{ Name string }

func (n *namedRef) String() string         { return n.Name }
func (n *namedRef) Identical(Type) bool    { return false }

// StructGraph is the nominal-type dependency graph used to detect struct
// recursion through any chain of by-value field embeddings, not just the
// immediately enclosing struct.
type StructGraph struct {
	edges map[string][]string // struct name -> names of structs embedded by value
}

// NewStructGraph builds the nominal-type graph from a set of struct
// definitions: an edge name -> dep exists when dep is embedded by value
// (not behind a pointer) in a field of name.
func NewStructGraph(structs []*Struct) *StructGraph {
	g := &StructGraph{edges: make(map[string][]string)}
	for _, s := range structs {
		for _, f := range s.Fields {
			if dep, ok := Unwrap(f.Type).(*Struct); ok {
				g.edges[s.Name] = append(g.edges[s.Name], dep.Name)
			}
		}
	}
	return g
}

// HasCycle reports whether any struct in the graph recurses through a
// chain of by-value embeddings, direct or indirect.
func (g *StructGraph) HasCycle() (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		for _, dep := range g.edges[n] {
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for n := range g.edges {
		if color[n] == white {
			if visit(n) {
				return n, true
			}
		}
	}
	return "", false
}
