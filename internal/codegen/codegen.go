// Package codegen implements the back-end cleanups and final assembly
// emission: it runs the CFG/liveness/linear-scan pipeline per function,
// substitutes physical registers and stack slots for virtual ones,
// elides now-trivial copies and branches, and renders the result as
// text.
//
// Emission is an indent-free strings.Builder walk, like
// internal/ir/printer.go's Printer.
package codegen

import (
	"fmt"
	"strings"

	"mimic/internal/mir"
	"mimic/internal/regalloc"
)

// Options configures the back end; Pool is exposed so callers (and
// tests) can shrink the register file to exercise the spill path without
// needing pathologically large functions.
type Options struct {
	Pool regalloc.Pool
}

// DefaultOptions uses regalloc.DefaultPool.
var DefaultOptions = Options{Pool: regalloc.DefaultPool}

// Emit lowers every function in prog to final assembly text, in order,
// under opts. It never fails on a well-formed mir.Program; a
// misconfigured (empty) register pool is reported as an error.
func Emit(prog *mir.Program, opts Options) (string, error) {
	var out strings.Builder
	for _, g := range prog.Globals {
		out.WriteString(renderGlobal(g))
	}
	if len(prog.Globals) > 0 {
		out.WriteString("\n")
	}
	for i, fn := range prog.Functions {
		if i > 0 {
			out.WriteString("\n")
		}
		text, err := emitFunction(fn, opts.Pool)
		if err != nil {
			return "", fmt.Errorf("codegen: function %s: %w", fn.Name, err)
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

func renderGlobal(g *mir.GlobalData) string {
	if g.External {
		return fmt.Sprintf(".extern %s\n", g.Label)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", g.Label)
	if len(g.Bytes) > 0 {
		fmt.Fprintf(&b, "  .byte %s\n", byteList(g.Bytes))
		return b.String()
	}
	if len(g.Init) == 0 {
		fmt.Fprintf(&b, "  .space %d\n", g.Size)
		return b.String()
	}
	for _, v := range g.Init {
		fmt.Fprintf(&b, "  .word %d\n", v)
	}
	return b.String()
}

// byteList renders a global's raw bytes as a comma-separated .byte operand
// list, one decimal value per byte (including the trailing NUL).
func byteList(bs []byte) string {
	parts := make([]string, len(bs))
	for i, v := range bs {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// emitFunction runs the full C7/C8/C9 pipeline over fn: build the CFG,
// compute liveness and live intervals, allocate registers, substitute,
// clean up, and render.
func emitFunction(fn *mir.Function, pool regalloc.Pool) (string, error) {
	cfg := mir.BuildCFG(fn)
	mir.ComputeLiveness(cfg)
	intervals := mir.ComputeIntervals(fn, cfg)

	alloc, err := regalloc.Allocate(intervals, pool)
	if err != nil {
		return "", err
	}

	spillBase := fn.FrameSize
	maxSpillEnd := 0
	for _, a := range alloc.Assignments {
		if a.Spilled && a.Slot+4 > maxSpillEnd {
			maxSpillEnd = a.Slot + 4
		}
	}
	totalFrame := spillBase + maxSpillEnd

	insts := substitute(fn.Insts, alloc, spillBase)
	insts = elideRedundantCopies(insts)
	insts = collapseTrivialBranches(insts)
	insts = patchFrameSize(insts, totalFrame, fn.Name)

	return render(fn.Name, insts, alloc.CalleeSaved), nil
}

// substitute replaces every virtual-register operand (Dst and each
// element of Operands, including a Mem operand's Base) with its assigned
// physical register or stack-slot memory reference.
func substitute(insts []*mir.MInst, alloc *regalloc.Result, spillBase int) []*mir.MInst {
	out := make([]*mir.MInst, len(insts))
	for i, in := range insts {
		cp := *in
		cp.Dst = substOperand(in.Dst, alloc, spillBase)
		if len(in.Operands) > 0 {
			cp.Operands = make([]*mir.Operand, len(in.Operands))
			for j, o := range in.Operands {
				cp.Operands[j] = substOperand(o, alloc, spillBase)
			}
		}
		out[i] = &cp
	}
	return out
}

func substOperand(o *mir.Operand, alloc *regalloc.Result, spillBase int) *mir.Operand {
	if o == nil {
		return nil
	}
	if o.Kind == mir.OpMem {
		return mir.Mem(substOperand(o.Base, alloc, spillBase), o.Offset)
	}
	if !o.IsVirtual() {
		return o
	}
	a, ok := alloc.Assignments[o.VReg]
	if !ok {
		return o
	}
	if a.Spilled {
		return mir.Mem(mir.PReg("fp"), -int64(spillBase+a.Slot+4))
	}
	return mir.PReg(a.PReg)
}

// elideRedundantCopies drops MOV instructions whose source and
// destination operand are now identical after register substitution.
func elideRedundantCopies(insts []*mir.MInst) []*mir.MInst {
	out := insts[:0:0]
	for _, in := range insts {
		if in.Op == mir.MOV && in.Cond == "" && len(in.Operands) == 1 && in.Dst != nil && in.Dst.Equal(in.Operands[0]) {
			continue
		}
		out = append(out, in)
	}
	return out
}

// collapseTrivialBranches removes an unconditional `B L` that is
// immediately followed by the label `L` it targets — the branch falls
// through to the same place anyway.
func collapseTrivialBranches(insts []*mir.MInst) []*mir.MInst {
	out := insts[:0:0]
	for i, in := range insts {
		if in.Op == mir.B && i+1 < len(insts) {
			next := insts[i+1]
			if next.Op == mir.LABEL && next.Operands[0].Label == in.Operands[0].Label {
				continue
			}
		}
		out = append(out, in)
	}
	return out
}

// patchFrameSize rewrites the function's PROLOGUE/EPILOGUE placeholders
// with the final, fully-computed frame size (alloca region plus spill
// area), carried as an Imm operand so render can turn it into the
// sp-adjusting instructions each pseudo-op stands for.
func patchFrameSize(insts []*mir.MInst, frameSize int, name string) []*mir.MInst {
	for _, in := range insts {
		if in.Op == mir.PROLOGUE || in.Op == mir.EPILOGUE {
			in.Comment = fmt.Sprintf("%s frame=%d", name, frameSize)
			in.Operands = []*mir.Operand{mir.Imm(int64(frameSize))}
		}
	}
	return insts
}

// frameSizeOf reads the Imm operand patchFrameSize stashed on a
// PROLOGUE/EPILOGUE instruction, or 0 if it was never patched.
func frameSizeOf(in *mir.MInst) int64 {
	if len(in.Operands) == 0 {
		return 0
	}
	return in.Operands[0].Imm
}

func render(name string, insts []*mir.MInst, calleeSaved []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, ".global %s\n", name)
	for _, in := range insts {
		switch in.Op {
		case mir.LABEL:
			fmt.Fprintf(&b, "%s:\n", in.Operands[0].Label)
		case mir.PROLOGUE:
			fmt.Fprintf(&b, "  ; %s\n", in.Comment)
			if len(calleeSaved) > 0 {
				fmt.Fprintf(&b, "  push {%s}\n", strings.Join(calleeSaved, ", "))
			}
			fmt.Fprintf(&b, "  mov fp, sp\n")
			if n := frameSizeOf(in); n > 0 {
				fmt.Fprintf(&b, "  sub sp, sp, #%d\n", n)
			}
		case mir.EPILOGUE:
			if n := frameSizeOf(in); n > 0 {
				fmt.Fprintf(&b, "  add sp, sp, #%d\n", n)
			}
			if len(calleeSaved) > 0 {
				fmt.Fprintf(&b, "  pop {%s}\n", strings.Join(calleeSaved, ", "))
			}
			fmt.Fprintf(&b, "  bx lr\n")
		case mir.COMMENT:
			fmt.Fprintf(&b, "  ; %s\n", in.Comment)
		default:
			fmt.Fprintf(&b, "  %s\n", instrText(in))
		}
	}
	return b.String()
}

func instrText(in *mir.MInst) string {
	op := in.Op.String() + in.Cond
	parts := make([]string, 0, len(in.Operands)+1)
	if in.Dst != nil {
		parts = append(parts, in.Dst.String())
	}
	for _, o := range in.Operands {
		parts = append(parts, o.String())
	}
	if len(parts) == 0 {
		return op
	}
	return op + " " + strings.Join(parts, ", ")
}
