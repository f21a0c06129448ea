package ir

import "mimic/internal/types"

// BasicBlock is itself a Value (its identity is used as a branch target
// by OpBr/OpCondBr and as the key of a phi's incoming edges) that owns a
// doubly-linked list of Instructions ending in exactly one terminator.
type BasicBlock struct {
	Value // Type is always a synthetic "label" marker; see NewBasicBlock
	Label string
	Func  *Function

	head, tail *Instruction // doubly-linked instruction list

	Preds []*BasicBlock
	Succs []*BasicBlock
}

// labelType is the sentinel type given to a BasicBlock's Value so it is
// distinguishable from a data value if it is ever printed; blocks are
// never operands of anything but branches and phis.
type labelType struct{}

func (labelType) String() string           { return "label" }
func (labelType) Identical(o types.Type) bool { _, ok := o.(labelType); return ok }

func newBasicBlock(id ValueID, label string, fn *Function) *BasicBlock {
	return &BasicBlock{Value: Value{ID: id, Type: labelType{}}, Label: label, Func: fn}
}

// Instructions returns the block's instruction list in order. O(n); used
// by printers and passes that want a snapshot to iterate over safely
// while mutating the list.
func (b *BasicBlock) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.head; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// First/Last give direct access to the linked-list ends; Last is the
// block's terminator once the block is well-formed.
func (b *BasicBlock) First() *Instruction { return b.head }
func (b *BasicBlock) Last() *Instruction  { return b.tail }

// Terminator returns the block's terminating instruction, or nil if the
// block is not yet terminated (a transient state during construction).
func (b *BasicBlock) Terminator() *Instruction {
	if b.tail != nil && b.tail.Op.IsTerminator() {
		return b.tail
	}
	return nil
}

// PushBack appends inst at the end of the block's instruction list. The
// builder uses this during linear construction; InsertBefore/After are
// for pass-driven edits.
func (b *BasicBlock) PushBack(inst *Instruction) {
	inst.Block = b
	inst.prev = b.tail
	inst.next = nil
	if b.tail != nil {
		b.tail.next = inst
	} else {
		b.head = inst
	}
	b.tail = inst
}

// InsertBefore splices inst immediately before mark in mark.Block's
// list — an O(1) ordered-list operation.
func InsertBefore(mark, inst *Instruction) {
	b := mark.Block
	inst.Block = b
	inst.prev = mark.prev
	inst.next = mark
	if mark.prev != nil {
		mark.prev.next = inst
	} else {
		b.head = inst
	}
	mark.prev = inst
}

// InsertAfter splices inst immediately after mark.
func InsertAfter(mark, inst *Instruction) {
	b := mark.Block
	inst.Block = b
	inst.next = mark.next
	inst.prev = mark
	if mark.next != nil {
		mark.next.prev = inst
	} else {
		b.tail = inst
	}
	mark.next = inst
}

// Erase detaches inst's operand uses, unlinks it from its block's
// instruction list, and invalidates the function's dominator tree if
// inst was a terminator (a control-flow edit).
func Erase(inst *Instruction) {
	inst.detachOperands()
	b := inst.Block
	if inst.prev != nil {
		inst.prev.next = inst.next
	} else {
		b.head = inst.next
	}
	if inst.next != nil {
		inst.next.prev = inst.prev
	} else {
		b.tail = inst.prev
	}
	inst.prev, inst.next, inst.Block = nil, nil, nil
	if inst.Op.IsTerminator() && b.Func != nil {
		b.Func.invalidateDominance()
	}
}

// addEdge is used by the builder and by CFG-editing passes to keep the
// block graph in sync with terminator operands.
func addEdge(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// removePhiEdgesFor drops every incoming entry in b's phis that names
// pred: removing a predecessor edge removes the matching incoming
// entries.
func (b *BasicBlock) removePhiEdgesFor(pred *BasicBlock) {
	for i := b.head; i != nil; i = i.next {
		if i.Op != OpPhi {
			continue
		}
		kept := i.Phi[:0]
		for _, e := range i.Phi {
			if e.Block == pred {
				if e.In != nil {
					e.In.Value.removeUse(i, e.In.Index)
				}
				continue
			}
			kept = append(kept, e)
		}
		i.Phi = kept
	}
}
