package rtl

import (
	"fmt"
	"io"
)

// Printer writes a Program's .rtl textual dump, the debug format this
// compiler emits under --dump-rtl.
type Printer struct {
	w io.Writer
}

// NewPrinter creates an RTL printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every global and every callable of prog.
func (p *Printer) PrintProgram(prog *Program) {
	for _, g := range prog.Globals {
		fmt.Fprintf(p.w, "var %s[%d] = %d\n", g.Name, g.Size, g.Init)
	}
	if len(prog.Globals) > 0 {
		fmt.Fprintln(p.w)
	}
	for i, fn := range prog.Callables {
		p.PrintCallable(&fn)
		if i < len(prog.Callables)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// PrintCallable prints one callable in schedule order, the order the
// assembly translator will walk it in.
func (p *Printer) PrintCallable(fn *Callable) {
	fmt.Fprintf(p.w, "%s(", fn.Name)
	for i, r := range fn.Inputs {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprintf(p.w, "p%d", r)
	}
	fmt.Fprintln(p.w, ") {")
	if fn.Output != Discard {
		fmt.Fprintf(p.w, "output: p%d\n", fn.Output)
	}
	fmt.Fprintf(p.w, "enter: L%d\n", fn.Enter)
	fmt.Fprintf(p.w, "leave: L%d\n", fn.Leave)

	for _, l := range fn.Schedule {
		instr, ok := fn.Body[l]
		if !ok {
			continue
		}
		fmt.Fprintf(p.w, "L%d: ", l)
		p.printInstruction(instr)
		fmt.Fprintln(p.w)
	}

	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printInstruction(instr Instruction) {
	switch i := instr.(type) {
	case Move:
		fmt.Fprintf(p.w, "p%d = %d goto L%d", i.Dst, i.Imm, i.Succ)
	case Copy:
		fmt.Fprintf(p.w, "p%d = p%d goto L%d", i.Dst, i.Src, i.Succ)
	case CopyMP:
		fmt.Fprintf(p.w, "p%d = %%%s goto L%d", i.Dst, i.Src, i.Succ)
	case CopyPM:
		fmt.Fprintf(p.w, "%%%s = p%d goto L%d", i.Dst, i.Src, i.Succ)
	case CopyAP:
		if i.Symbol != "" {
			fmt.Fprintf(p.w, "p%d = addr(%s) goto L%d", i.Dst, i.Symbol, i.Succ)
		} else {
			fmt.Fprintf(p.w, "p%d = addr(%d(%%%s)) goto L%d", i.Dst, i.Offset, i.Base, i.Succ)
		}
	case Load:
		if i.Symbol != "" {
			fmt.Fprintf(p.w, "p%d = [%s + %d] goto L%d", i.Dst, i.Symbol, i.Offset, i.Succ)
		} else {
			fmt.Fprintf(p.w, "p%d = [p%d + %d] goto L%d", i.Dst, i.Base, i.Offset, i.Succ)
		}
	case Store:
		if i.Symbol != "" {
			fmt.Fprintf(p.w, "[%s + %d] = p%d goto L%d", i.Symbol, i.Offset, i.Src, i.Succ)
		} else {
			fmt.Fprintf(p.w, "[p%d + %d] = p%d goto L%d", i.Base, i.Offset, i.Src, i.Succ)
		}
	case Unop:
		fmt.Fprintf(p.w, "p%d = %s p%d goto L%d", i.Arg, i.Op, i.Arg, i.Succ)
	case Binop:
		fmt.Fprintf(p.w, "p%d = p%d %s p%d goto L%d", i.Dst, i.Dst, i.Op, i.Src, i.Succ)
	case Ubranch:
		fmt.Fprintf(p.w, "if %s p%d goto L%d else goto L%d", i.Op, i.Arg, i.Taken, i.Fail)
	case Bbranch:
		fmt.Fprintf(p.w, "if p%d %s p%d goto L%d else goto L%d", i.A, i.Op, i.B, i.Taken, i.Fail)
	case Goto:
		fmt.Fprintf(p.w, "goto L%d", i.Succ)
	case Call:
		fmt.Fprintf(p.w, "call %s/%d goto L%d", i.Func, i.NArgs, i.Succ)
	case Return:
		fmt.Fprint(p.w, "return")
	case NewFrame:
		fmt.Fprintf(p.w, "newframe %d goto L%d", i.Size, i.Succ)
	case DelFrame:
		fmt.Fprintf(p.w, "delframe goto L%d", i.Succ)
	case LoadParam:
		fmt.Fprintf(p.w, "p%d = param[%d] goto L%d", i.Dst, i.Slot, i.Succ)
	case Push:
		fmt.Fprintf(p.w, "push p%d goto L%d", i.Src, i.Succ)
	case Pop:
		fmt.Fprintf(p.w, "p%d = pop goto L%d", i.Dst, i.Succ)
	default:
		fmt.Fprintf(p.w, "???(%T)", instr)
	}
}
