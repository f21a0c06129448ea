package mir

import (
	"fmt"

	"github.com/iancoleman/strcase"
)

// MangleBlockLabel produces the emitted-assembly label for the n'th block
// of function fn: a snake_case symbol so generated labels read like the
// rest of a hand-written assembly listing regardless of the source
// function's own naming convention.
func MangleBlockLabel(fn string, n int) string {
	return fmt.Sprintf("%s_%s%d", strcase.ToSnake(fn), "bb", n)
}

// MangleSpillSlot names a stack spill slot for diagnostic/-dump-passes
// output; the assembly itself addresses spills by frame offset, not by
// name, but a readable symbol helps -dump-passes traces.
func MangleSpillSlot(fn string, vreg int) string {
	return fmt.Sprintf("%s_spill_v%d", strcase.ToSnake(fn), vreg)
}
