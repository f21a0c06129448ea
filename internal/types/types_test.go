package types

import "testing"

func TestPrimitiveString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{I8, "i8"}, {U8, "u8"}, {I32, "i32"}, {U32, "u32"}, {Void, "void"},
	}
	for _, c := range cases {
		if got := (&Primitive{Kind: c.k}).String(); got != c.want {
			t.Errorf("Primitive{%v}.String() = %s, want %s", c.k, got, c.want)
		}
	}
}

func TestArrayDecaysToPointer(t *testing.T) {
	arr := &Array{Elem: &Primitive{Kind: I32}, Len: 4}
	decayed := Decay(arr)
	ptr, ok := decayed.(*Pointer)
	if !ok {
		t.Fatalf("Decay(Array) = %T, want *Pointer", decayed)
	}
	if !Identical(ptr.Elem, &Primitive{Kind: I32}) {
		t.Errorf("decayed pointer elem = %s, want i32", ptr.Elem)
	}
}

func TestConstLeftValueNotAssignableTo(t *testing.T) {
	dst := &Const{Inner: &Primitive{Kind: I32}}
	src := &Primitive{Kind: I32}
	if Assignable(dst, src) {
		t.Error("const left-value must not be assignable-to")
	}
}

func TestArrayRequiresStructuralIdentity(t *testing.T) {
	dst := &Array{Elem: &Primitive{Kind: I32}, Len: 4}
	src := &Array{Elem: &Primitive{Kind: I8}, Len: 4}
	if Assignable(dst, src) {
		t.Error("arrays of different element type should not be assignable")
	}
	same := &Array{Elem: &Primitive{Kind: I32}, Len: 4}
	if !Assignable(dst, same) {
		t.Error("structurally identical arrays should be assignable")
	}
}

func TestCanAcceptIntegerPromotion(t *testing.T) {
	if !CanAccept(&Primitive{Kind: I32}, &Primitive{Kind: U8}) {
		t.Error("i32 should accept u8 via implicit conversion")
	}
	if CanAccept(&Primitive{Kind: I32}, &Pointer{Elem: &Primitive{Kind: I32}}) {
		t.Error("i32 should not accept a pointer")
	}
}

func TestCastLegality(t *testing.T) {
	if !CastLegal(&Primitive{Kind: I8}, &Primitive{Kind: U32}) {
		t.Error("integer-to-integer cast should be legal")
	}
	if !CastLegal(&Pointer{Elem: &Primitive{Kind: I8}}, &Pointer{Elem: &Primitive{Kind: I32}}) {
		t.Error("pointer-to-pointer cast should be legal regardless of element type")
	}
	if CastLegal(&Primitive{Kind: I32}, &Pointer{Elem: &Primitive{Kind: I32}}) {
		t.Error("integer/pointer cast should be illegal without an explicit model for it")
	}
}

func TestCommonTypePromotion(t *testing.T) {
	ct := CommonType(&Primitive{Kind: I8}, &Primitive{Kind: I32})
	if !Identical(ct, &Primitive{Kind: I32}) {
		t.Errorf("CommonType(i8, i32) = %s, want i32", ct)
	}
}

func TestStructRecursionDetectsDeepCycle(t *testing.T) {
	// struct A { b: B }, struct B { a: A } — cycle is indirect, through B.
	a := &Struct{Name: "A"}
	b := &Struct{Name: "B"}
	a.Fields = []Field{{Name: "b", Type: b}}
	b.Fields = []Field{{Name: "a", Type: a}}

	g := NewStructGraph([]*Struct{a, b})
	if _, ok := g.HasCycle(); !ok {
		t.Error("expected the A -> B -> A cycle to be detected")
	}
}

func TestStructRecursionBrokenByPointer(t *testing.T) {
	a := &Struct{Name: "A"}
	a.Fields = []Field{{Name: "next", Type: &Pointer{Elem: a}}}

	g := NewStructGraph([]*Struct{a})
	if _, ok := g.HasCycle(); ok {
		t.Error("a pointer field should break the recursion check")
	}
}
