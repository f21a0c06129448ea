package mir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildLoopFunction constructs the MIR of a while(n){ i = i + 1; n = n - 1; }
// loop by hand: entry -> header -> body -> header, header -> exit — a
// back-edge shape that exercises CFG+liveness on a genuine loop.
func buildLoopFunction() *Function {
	fn := &Function{Name: "loop"}
	n := fn.NewVReg("n")
	i := fn.NewVReg("i")

	label := func(name string) *MInst { return &MInst{Op: LABEL, Operands: []*Operand{Label(name)}} }

	fn.Emit(label("entry"))
	fn.Emit(&MInst{Op: MOV, Dst: i, Operands: []*Operand{Imm(0)}})
	fn.Emit(&MInst{Op: B, Operands: []*Operand{Label("header")}})

	fn.Emit(label("header"))
	fn.Emit(&MInst{Op: CMP, Operands: []*Operand{n, Imm(0)}})
	fn.Emit(&MInst{Op: BEQ, Operands: []*Operand{Label("exit")}})
	fn.Emit(&MInst{Op: B, Operands: []*Operand{Label("body")}})

	fn.Emit(label("body"))
	fn.Emit(&MInst{Op: ADD, Dst: i, Operands: []*Operand{i, Imm(1)}})
	fn.Emit(&MInst{Op: SUB, Dst: n, Operands: []*Operand{n, Imm(1)}})
	fn.Emit(&MInst{Op: B, Operands: []*Operand{Label("header")}})

	fn.Emit(label("exit"))
	fn.Emit(&MInst{Op: BX, Operands: []*Operand{PReg("lr")}})

	return fn
}

func TestBuildCFGLoopShape(t *testing.T) {
	fn := buildLoopFunction()
	cfg := BuildCFG(fn)

	byLabel := make(map[string]*Block)
	for _, b := range cfg.Blocks {
		byLabel[b.Label] = b
	}

	entry, header, body, exit := byLabel["entry"], byLabel["header"], byLabel["body"], byLabel["exit"]
	require.NotNil(t, entry)
	require.NotNil(t, header)
	require.NotNil(t, body)
	require.NotNil(t, exit)

	require.ElementsMatch(t, []*Block{header}, entry.Succs)
	require.ElementsMatch(t, []*Block{exit, body}, header.Succs)
	require.ElementsMatch(t, []*Block{header}, body.Succs)
	require.Empty(t, exit.Succs)

	require.ElementsMatch(t, []*Block{entry, body}, header.Preds)
}

func TestLivenessInductionVariableSpansLoop(t *testing.T) {
	fn := buildLoopFunction()
	cfg := BuildCFG(fn)
	ComputeLiveness(cfg)

	intervals := ComputeIntervals(fn, cfg)
	byReg := make(map[int]*Interval)
	for _, iv := range intervals {
		byReg[iv.VReg] = iv
	}

	n := byReg[0] // first NewVReg call
	i := byReg[1]
	require.NotNil(t, n)
	require.NotNil(t, i)

	// Both the induction variable and the loop counter must be live out
	// of the header into the body (read there) and live out of the body
	// back into the header (redefined each iteration) — i.e. the
	// back-edge keeps them live across iterations rather than confining
	// them to a single block.
	var header, body *Block
	for _, b := range cfg.Blocks {
		switch b.Label {
		case "header":
			header = b
		case "body":
			body = b
		}
	}
	require.True(t, header.LiveOut[0] || header.UEVar[0])
	require.True(t, body.LiveOut[1])
	require.Greater(t, i.End, i.Start)
	require.Greater(t, n.End, n.Start)
}

func TestOperandEquality(t *testing.T) {
	require.True(t, VReg(3).Equal(VReg(3)))
	require.False(t, VReg(3).Equal(VReg(4)))
	require.True(t, Imm(5).Equal(Imm(5)))
	require.False(t, Imm(5).Equal(PReg("r0")))
	require.True(t, Mem(PReg("fp"), -4).Equal(Mem(PReg("fp"), -4)))
}
