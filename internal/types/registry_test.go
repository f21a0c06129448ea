package types

import "testing"

func TestRegistryResolveFollowsAliasChainToStruct(t *testing.T) {
	r := NewRegistry()
	point := &Struct{Name: "Point", Fields: []Field{{Name: "x", Type: &Primitive{Kind: I32}}}}
	r.DefineStruct(point)
	r.DefineAlias("PointAlias", &namedRef{Name: "Point"})
	r.DefineAlias("PointAlias2", &namedRef{Name: "PointAlias"})

	got := r.Resolve("PointAlias2")
	if got != point {
		t.Fatalf("Resolve(PointAlias2) = %v, want the Point struct", got)
	}
}

func TestRegistryResolveDetectsCyclicAliasChain(t *testing.T) {
	r := NewRegistry()
	r.DefineAlias("A", &namedRef{Name: "B"})
	r.DefineAlias("B", &namedRef{Name: "A"})

	if got := r.Resolve("A"); got != nil {
		t.Fatalf("Resolve(A) = %v, want nil on a cyclic alias chain", got)
	}
}

func TestRegistryAliasAndStructScopesAreDistinct(t *testing.T) {
	// The redesign this registry implements: an alias can share a name
	// with a struct without either shadowing the other, since they live
	// in separate maps rather than one shared name scope.
	r := NewRegistry()
	s := &Struct{Name: "Id"}
	r.DefineStruct(s)
	r.DefineAlias("Id", &Primitive{Kind: U32})

	if r.LookupStruct("Id") != s {
		t.Fatal("struct scope was shadowed by the alias of the same name")
	}
	if _, ok := r.LookupAlias("Id").(*Primitive); !ok {
		t.Fatal("alias scope was shadowed by the struct of the same name")
	}
}

func TestRegistryResolveUnknownNameReturnsNil(t *testing.T) {
	r := NewRegistry()
	if got := r.Resolve("Nope"); got != nil {
		t.Fatalf("Resolve(Nope) = %v, want nil", got)
	}
}
