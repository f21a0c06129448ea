package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Printer renders a Module as textual SSA, stable and round-trippable
// enough for golden tests and for -emit-ir output: printing then
// re-parsing should yield an isomorphic module. It walks the module
// top-down into a strings.Builder, with a fixed indent for instructions.
type Printer struct {
	out    strings.Builder
	names  map[*Value]string
	nextID int
}

func NewPrinter() *Printer { return &Printer{names: make(map[*Value]string)} }

// Print renders m in full.
func Print(m *Module) string {
	p := NewPrinter()
	p.printModule(m)
	return p.out.String()
}

func (p *Printer) printModule(m *Module) {
	for _, g := range m.Globals {
		p.line("%s global %s %s%s", g.Linkage, g.Name, g.ElemType, initSuffix(g.Init))
	}
	if len(m.Globals) > 0 {
		p.out.WriteString("\n")
	}
	for i, fn := range m.Functions {
		if i > 0 {
			p.out.WriteString("\n")
		}
		p.printFunction(fn)
	}
}

func initSuffix(c *Const) string {
	if c == nil {
		return ""
	}
	return " = " + constString(c)
}

// constString renders a Const's payload for whichever Kind it carries.
func constString(c *Const) string {
	switch c.Kind {
	case StrConst:
		return strconv.Quote(c.StrVal)
	case ZeroConst:
		return "zeroinitializer"
	case ArrayConst, StructConst:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = constString(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return strconv.FormatInt(c.IntVal, 10)
	}
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, prm := range fn.Params {
		p.names[&prm.Value] = "%" + prm.Name
		params[i] = fmt.Sprintf("%s %s", prm.Value.Type, p.names[&prm.Value])
	}
	sig := fn.Signature()
	if !fn.HasBody() {
		p.line("%s declare %s(%s) -> %s", fn.Linkage, fn.Name, strings.Join(params, ", "), sig.Ret)
		return
	}
	p.line("%s function %s(%s) -> %s {", fn.Linkage, fn.Name, strings.Join(params, ", "), sig.Ret)
	for _, b := range fn.Blocks {
		p.printBlock(b)
	}
	p.out.WriteString("}\n")
}

func (p *Printer) printBlock(b *BasicBlock) {
	p.out.WriteString(b.Label + ":\n")
	for i := b.First(); i != nil; i = i.nextInList() {
		p.out.WriteString("  " + p.instrString(i) + "\n")
	}
}

// nextInList exposes the private linked-list pointer to the printer
// without making it part of the public BasicBlock API.
func (i *Instruction) nextInList() *Instruction { return i.next }

func (p *Printer) line(format string, args ...interface{}) {
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) valName(v *Value) string {
	if v == nil {
		return "<nil>"
	}
	if n, ok := p.names[v]; ok {
		return n
	}
	n := "%" + strconv.Itoa(int(v.ID))
	p.names[v] = n
	return n
}

func (p *Printer) operandString(v *Value) string {
	if v != nil && v.Const != nil {
		return constString(v.Const)
	}
	return p.valName(v)
}

func (p *Printer) instrString(i *Instruction) string {
	switch i.Op {
	case OpPhi:
		parts := make([]string, len(i.Phi))
		for idx, e := range i.Phi {
			parts[idx] = fmt.Sprintf("[%s, %s]", p.operandString(e.In.Value), e.Block.Label)
		}
		return fmt.Sprintf("%s = phi %s %s", p.valName(&i.Value), i.Type, strings.Join(parts, ", "))
	case OpBr:
		return fmt.Sprintf("br %s", i.Then.Label)
	case OpCondBr:
		return fmt.Sprintf("br %s, %s, %s", p.operandString(i.Operand(0)), i.Then.Label, i.Else.Label)
	case OpRet:
		if i.Operand(0) != nil {
			return fmt.Sprintf("ret %s", p.operandString(i.Operand(0)))
		}
		return "ret"
	case OpLoad:
		return fmt.Sprintf("%s = load %s, %s", p.valName(&i.Value), i.Type, p.operandString(i.Operand(0)))
	case OpStore:
		return fmt.Sprintf("store %s, %s", p.operandString(i.Operand(1)), p.operandString(i.Operand(0)))
	case OpAlloca:
		return fmt.Sprintf("%s = alloca %s", p.valName(&i.Value), i.AllocaType)
	case OpGEP:
		if i.GEPField >= 0 {
			return fmt.Sprintf("%s = gep %s, field %d", p.valName(&i.Value), p.operandString(i.Operand(0)), i.GEPField)
		}
		return fmt.Sprintf("%s = gep %s, %s", p.valName(&i.Value), p.operandString(i.Operand(0)), p.operandString(i.Operand(1)))
	case OpCast:
		return fmt.Sprintf("%s = cast %s to %s", p.valName(&i.Value), p.operandString(i.Operand(0)), i.CastTo)
	case OpCall:
		args := make([]string, len(i.Operands))
		for idx := range i.Operands {
			args[idx] = p.operandString(i.Operand(idx))
		}
		name := "<indirect>"
		if i.Callee != nil {
			name = i.Callee.Name
		}
		if i.Type != nil {
			return fmt.Sprintf("%s = call %s(%s)", p.valName(&i.Value), name, strings.Join(args, ", "))
		}
		return fmt.Sprintf("call %s(%s)", name, strings.Join(args, ", "))
	default:
		if i.Op.IsUnary() {
			return fmt.Sprintf("%s = %s %s", p.valName(&i.Value), i.Op, p.operandString(i.Operand(0)))
		}
		return fmt.Sprintf("%s = %s %s, %s", p.valName(&i.Value), i.Op, p.operandString(i.Operand(0)), p.operandString(i.Operand(1)))
	}
}
