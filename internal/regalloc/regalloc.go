// Package regalloc implements a linear-scan register allocator:
// intervals are consumed in ascending start order against an active set
// sorted by ascending end, assigning a physical register to each or
// spilling the interval (old or new) whose end is furthest away.
//
// Structured the way internal/mir's own fixpoint analyses are: a single
// exported entry point, with the pass state held in local closures.
package regalloc

import (
	"fmt"
	"sort"

	"mimic/internal/mir"
)

// Pool is the general-purpose physical register set available to the
// allocator, ordered by assignment preference. CalleeSaved names the
// subset that must be preserved across a call (pushed in the prologue,
// popped in the epilogue, by C9) if used.
type Pool struct {
	Registers   []string
	CalleeSaved map[string]bool
}

// DefaultPool is the simplified ARM-like register file: r4-r9 are
// general purpose, r4-r7 of those are callee-saved (the usual AAPCS
// split), r0-r3 are reserved for argument/return marshalling and never
// handed to the allocator, and fp/sp/lr are reserved entirely.
var DefaultPool = Pool{
	Registers:   []string{"r4", "r5", "r6", "r7", "r8", "r9"},
	CalleeSaved: map[string]bool{"r4": true, "r5": true, "r6": true, "r7": true},
}

// Assignment is the output of allocation for one virtual register: at
// most one of PReg/Slot is meaningful, selected by Spilled.
type Assignment struct {
	VReg    int
	PReg    string
	Spilled bool
	Slot    int // spill-area byte offset, 0-based; codegen adds the frame's alloca region size
}

// Result maps `vreg -> (register | stack slot)`, plus the set of
// callee-saved registers this function actually used (for the
// prologue/epilogue).
type Result struct {
	Assignments map[int]*Assignment
	CalleeSaved []string
}

// active is one interval currently holding a physical register, kept
// sorted by ascending End.
type active struct {
	interval *mir.Interval
	preg     string
}

// Allocate runs linear-scan over intervals (already computed by
// mir.ComputeIntervals) against pool, returning the vreg assignment map.
// intervals need not be pre-sorted; Allocate sorts its own copy.
//
// Resource exhaustion is signaled by returning a non-nil error: this
// implementation can always make progress by spilling, so the only
// exhaustion case is an empty pool, which the caller should treat as a
// fatal misconfiguration before compilation even starts.
func Allocate(intervals []*mir.Interval, pool Pool) (*Result, error) {
	if len(pool.Registers) == 0 {
		return nil, fmt.Errorf("regalloc: register pool is empty")
	}

	sorted := make([]*mir.Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].VReg < sorted[j].VReg
	})

	res := &Result{Assignments: make(map[int]*Assignment, len(sorted))}
	usedCalleeSaved := make(map[string]bool)
	nextSpillSlot := 0
	allocSpill := func() int {
		off := nextSpillSlot
		nextSpillSlot += 4
		return off
	}

	var activeList []active
	free := make([]string, len(pool.Registers))
	copy(free, pool.Registers)

	popFree := func() string {
		r := free[0]
		free = free[1:]
		return r
	}
	pushFree := func(r string) {
		free = append(free, r)
		sort.Strings(free) // deterministic: byte-identical output across runs
	}

	expire := func(start int) {
		kept := activeList[:0]
		for _, a := range activeList {
			if a.interval.End < start {
				pushFree(a.preg)
				continue
			}
			kept = append(kept, a)
		}
		activeList = kept
	}

	insertActive := func(a active) {
		i := sort.Search(len(activeList), func(i int) bool { return activeList[i].interval.End >= a.interval.End })
		activeList = append(activeList, active{})
		copy(activeList[i+1:], activeList[i:])
		activeList[i] = a
	}

	for _, iv := range sorted {
		expire(iv.Start)

		if len(free) > 0 {
			preg := popFree()
			res.Assignments[iv.VReg] = &Assignment{VReg: iv.VReg, PReg: preg}
			insertActive(active{interval: iv, preg: preg})
			if pool.CalleeSaved[preg] {
				usedCalleeSaved[preg] = true
			}
			continue
		}

		// No free register: spill the active interval with the largest
		// end if it outlives the new one, else spill the new interval
		// itself.
		if len(activeList) > 0 {
			last := activeList[len(activeList)-1]
			if last.interval.End > iv.End {
				res.Assignments[last.interval.VReg] = &Assignment{VReg: last.interval.VReg, Spilled: true, Slot: allocSpill()}
				res.Assignments[iv.VReg] = &Assignment{VReg: iv.VReg, PReg: last.preg}
				activeList[len(activeList)-1] = active{interval: iv, preg: last.preg}
				if pool.CalleeSaved[last.preg] {
					usedCalleeSaved[last.preg] = true
				}
				continue
			}
		}
		res.Assignments[iv.VReg] = &Assignment{VReg: iv.VReg, Spilled: true, Slot: allocSpill()}
	}

	for r := range usedCalleeSaved {
		res.CalleeSaved = append(res.CalleeSaved, r)
	}
	sort.Strings(res.CalleeSaved)
	return res, nil
}
