package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mimic/internal/mir"
)

func TestAllocateAssignsDistinctRegistersToOverlappingIntervals(t *testing.T) {
	intervals := []*mir.Interval{
		{VReg: 0, Start: 0, End: 10},
		{VReg: 1, Start: 2, End: 8},
		{VReg: 2, Start: 4, End: 6},
	}
	pool := Pool{Registers: []string{"r4", "r5", "r6"}}

	res, err := Allocate(intervals, pool)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, vreg := range []int{0, 1, 2} {
		a := res.Assignments[vreg]
		require.NotNil(t, a)
		require.False(t, a.Spilled)
		require.False(t, seen[a.PReg], "overlapping intervals must not share a register")
		seen[a.PReg] = true
	}
}

func TestAllocateReusesExpiredRegister(t *testing.T) {
	intervals := []*mir.Interval{
		{VReg: 0, Start: 0, End: 2},
		{VReg: 1, Start: 3, End: 5}, // starts after vreg 0 expires; may reuse its register
	}
	pool := Pool{Registers: []string{"r4"}}

	res, err := Allocate(intervals, pool)
	require.NoError(t, err)
	require.False(t, res.Assignments[0].Spilled)
	require.False(t, res.Assignments[1].Spilled)
	require.Equal(t, "r4", res.Assignments[0].PReg)
	require.Equal(t, "r4", res.Assignments[1].PReg)
}

func TestAllocateSpillsWhenPoolExhausted(t *testing.T) {
	// Three mutually-overlapping intervals, one register: two must spill.
	intervals := []*mir.Interval{
		{VReg: 0, Start: 0, End: 10},
		{VReg: 1, Start: 1, End: 9},
		{VReg: 2, Start: 2, End: 8},
	}
	pool := Pool{Registers: []string{"r4"}}

	res, err := Allocate(intervals, pool)
	require.NoError(t, err)

	spilled := 0
	for _, vreg := range []int{0, 1, 2} {
		if res.Assignments[vreg].Spilled {
			spilled++
		}
	}
	require.Equal(t, 2, spilled)
}

func TestAllocateSpillsTheLongerLivedIntervalFirst(t *testing.T) {
	// vreg 0 lives the longest; when vreg 2 arrives with no free register,
	// the allocator spills whichever active interval has the largest end
	// if it outlives the newcomer — here that's vreg 0, not vreg 1.
	intervals := []*mir.Interval{
		{VReg: 0, Start: 0, End: 20},
		{VReg: 1, Start: 1, End: 5},
		{VReg: 2, Start: 2, End: 4},
	}
	pool := Pool{Registers: []string{"r4", "r5"}}

	res, err := Allocate(intervals, pool)
	require.NoError(t, err)
	require.True(t, res.Assignments[0].Spilled)
	require.False(t, res.Assignments[1].Spilled)
	require.False(t, res.Assignments[2].Spilled)
}

func TestAllocateRecordsCalleeSavedRegistersActuallyUsed(t *testing.T) {
	intervals := []*mir.Interval{
		{VReg: 0, Start: 0, End: 5},
	}
	pool := Pool{Registers: []string{"r4", "r9"}, CalleeSaved: map[string]bool{"r4": true}}

	res, err := Allocate(intervals, pool)
	require.NoError(t, err)
	require.Equal(t, "r4", res.Assignments[0].PReg)
	require.Equal(t, []string{"r4"}, res.CalleeSaved)
}

func TestAllocateRejectsEmptyPool(t *testing.T) {
	_, err := Allocate([]*mir.Interval{{VReg: 0, Start: 0, End: 1}}, Pool{})
	require.Error(t, err)
}
