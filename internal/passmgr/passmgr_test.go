package passmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"mimic/internal/diag"
	"mimic/internal/ir"
)

// countingModulePass fires until its internal counter reaches rounds, so
// a fixpoint loop around it terminates predictably.
type countingModulePass struct {
	name   string
	fired  *int
	rounds int
}

func (p *countingModulePass) Name() string { return p.name }

func (p *countingModulePass) RunOnModule(m *ir.Module) bool {
	*p.fired++
	return *p.fired < p.rounds
}

func TestScheduleOrdersByDependency(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "b", Stages: Opt, Deps: []string{"a"}}, func(*diag.Collector) interface{} {
		return &countingModulePass{name: "b", fired: new(int), rounds: 1}
	})
	reg.Register(Descriptor{Name: "a", Stages: Opt}, func(*diag.Collector) interface{} {
		return &countingModulePass{name: "a", fired: new(int), rounds: 1}
	})

	mgr := NewManager(reg)
	scheduled, err := mgr.schedule(Opt, 0)
	require.NoError(t, err)
	require.Len(t, scheduled, 2)
	require.Equal(t, "a", scheduled[0].Name)
	require.Equal(t, "b", scheduled[1].Name)
}

func TestScheduleDetectsCycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "x", Stages: Opt, Deps: []string{"y"}}, func(*diag.Collector) interface{} { return nil })
	reg.Register(Descriptor{Name: "y", Stages: Opt, Deps: []string{"x"}}, func(*diag.Collector) interface{} { return nil })

	mgr := NewManager(reg)
	_, err := mgr.schedule(Opt, 0)
	require.Error(t, err)
	var misconfig *MisconfigurationError
	require.ErrorAs(t, err, &misconfig)
}

func TestScheduleFiltersByThresholdAndStage(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "only-o2", Stages: Opt, Threshold: 2}, func(*diag.Collector) interface{} { return nil })
	reg.Register(Descriptor{Name: "preopt-only", Stages: PreOpt}, func(*diag.Collector) interface{} { return nil })

	mgr := NewManager(reg)
	atO1, err := mgr.schedule(Opt, 1)
	require.NoError(t, err)
	require.Empty(t, atO1)

	atO2, err := mgr.schedule(Opt, 2)
	require.NoError(t, err)
	require.Len(t, atO2, 1)
	require.Equal(t, "only-o2", atO2[0].Name)
}

func TestRunIteratesToFixpoint(t *testing.T) {
	reg := NewRegistry()
	fired := 0
	reg.Register(Descriptor{Name: "flip-twice", Stages: Opt}, func(*diag.Collector) interface{} {
		return &countingModulePass{name: "flip-twice", fired: &fired, rounds: 3}
	})

	mgr := NewManager(reg)
	mod := ir.NewModule("m")
	require.NoError(t, mgr.Run(mod, Opt, 0, diag.NewCollector()))
	require.Equal(t, 3, fired)
}

func TestRunRespectsIterationCap(t *testing.T) {
	reg := NewRegistry()
	fired := 0
	reg.Register(Descriptor{Name: "never-settles", Stages: Opt}, func(*diag.Collector) interface{} {
		return &countingModulePass{name: "never-settles", fired: &fired, rounds: 1000}
	})

	mgr := NewManager(reg)
	mgr.IterCap = 5
	mod := ir.NewModule("m")
	require.NoError(t, mgr.Run(mod, Opt, 0, diag.NewCollector()))
	require.Equal(t, 5, fired)
}

func TestShowInfoListsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "second", Stages: Opt}, func(*diag.Collector) interface{} { return nil })
	reg.Register(Descriptor{Name: "first", Stages: Opt}, func(*diag.Collector) interface{} { return nil })

	info := reg.ShowInfo()
	require.Len(t, info, 2)
	require.Equal(t, "second", info[0].Name)
	require.Equal(t, "first", info[1].Name)
}
