// Statement lowering, calling-convention prologue/epilogue, and the
// top-level Lower entry point that drives expr.go/cfg.go over a whole
// type-checked program.
package rtlgen

import (
	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/rtl"
)

// Lower translates a type-checked bxast.Program into an rtl.Program.
// Errors accumulated across all callables (and the global layout pass)
// are returned rather than panicking, per spec.md §7's diagnostic style.
func Lower(prog *bxast.Program) (*rtl.Program, []error) {
	var errs []error

	globals, order, globalDump, gErrs := GlobalLayout(prog.Globals)
	errs = append(errs, gErrs...)

	funcs := make(map[string]*bxast.Callable, len(prog.Callables))
	for i := range prog.Callables {
		funcs[prog.Callables[i].Name] = &prog.Callables[i]
	}

	callables := make([]rtl.Callable, 0, len(prog.Callables))
	for i := range prog.Callables {
		fn := &prog.Callables[i]
		c, cErrs := lowerCallable(fn, globals, order, funcs)
		errs = append(errs, cErrs...)
		if c != nil {
			callables = append(callables, *c)
		}
	}

	return &rtl.Program{Callables: callables, Globals: globalDump}, errs
}

// lowerCallable runs the full prologue/body/epilogue algorithm (spec.md
// §4.1 "Prologue and epilogue") for one Callable.
func lowerCallable(fn *bxast.Callable, globals map[string]globalVar, order []string, funcs map[string]*bxast.Callable) (*rtl.Callable, []error) {
	stackResident := ClassifyLocals(fn.Body)
	b := NewBuilder(fn.Name, globals, order, funcs, stackResident)

	enter := b.NewLabel()
	leave := b.NewLabel()
	b.leave = leave
	isVoid := fn.Ret == nil
	if !isVoid {
		b.output = b.NewPseudo()
	} else {
		b.output = rtl.Discard
	}

	// Step 1: enter's NewFrame instruction is installed last, once the
	// final frame size is known; everything else starts from a fresh
	// label chained to it.
	bodyStart := b.NewLabel()
	b.InLabel = bodyStart

	// Step 2: save callee-saved registers.
	saved := make([]rtl.Pseudo, len(rtl.CalleeSaved))
	for i, reg := range rtl.CalleeSaved {
		p := b.NewPseudo()
		saved[i] = p
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyMP{Src: reg, Dst: p, Succ: succ} })
	}

	// Step 3: read formal parameters.
	inputs := make([]rtl.Pseudo, len(fn.Params))
	for i, param := range fn.Params {
		inputs[i] = b.lowerParam(param, i)
	}

	// Step 4: lower the body.
	b.lowerStmts(fn.Body)

	// Step 5: fallthrough exit copies the output pseudo into %rax.
	if !isVoid {
		out := b.output
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: out, Dst: rtl.RAX, Succ: succ} })
	}

	// Step 6: splice leave into the linear stream at the current cursor;
	// explicit `return` statements jump straight to `leave` from mid-body,
	// landing here too. b.InLabel is left unchanged so it still names the
	// body's real fallthrough point: leave's Goto converges on exactly
	// that label rather than abandoning it as a never-installed successor.
	b.AddInstr(leave, rtl.Goto{Succ: b.InLabel})

	// Step 7: restore callee-saved registers, reverse order from the save.
	for i := len(saved) - 1; i >= 0; i-- {
		reg := rtl.CalleeSaved[i]
		p := saved[i]
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: p, Dst: reg, Succ: succ} })
	}

	// Step 9: tear down and return.
	delFrameSucc := b.NewLabel()
	b.AddInstr(b.InLabel, rtl.DelFrame{Succ: delFrameSucc})
	b.AddInstr(delFrameSucc, rtl.Return{})

	// Step 8: back-patch the reserved prologue slot. lastoffset is the
	// total bytes reserved for stack-resident locals and parameters
	// during this lowering (b.stackSize); the assembly-level frame size
	// (driven by total pseudo count, since asmgen allocates every
	// pseudo its own stack slot) is computed independently in pkg/asmgen.
	b.AddInstr(enter, rtl.NewFrame{Size: b.stackSize, Succ: bodyStart})

	if len(b.errs) > 0 {
		return nil, b.errs
	}

	schedule := ComputeSchedule(enter, b.body)

	output := b.output
	return &rtl.Callable{
		Name:     fn.Name,
		Enter:    enter,
		Leave:    leave,
		Inputs:   inputs,
		Output:   output,
		Body:     b.body,
		Schedule: schedule,
	}, nil
}

// lowerParam reads formal parameter i (0-based) from its System V AMD64
// location — a CopyMP from rdi..r9 for the first six, or a LoadParam for
// the seventh and later (stack slot k = i-6+1, 1-based) — into an
// "incoming" pseudo, recorded as the Callable's Input for that parameter.
// If the parameter is stack-resident (its address is taken somewhere in
// the body), the incoming value is immediately stored to its frame slot;
// otherwise the incoming pseudo *is* its persistent register pseudo.
func (b *Builder) lowerParam(param bxast.Param, i int) rtl.Pseudo {
	lv := b.declareLocal(param.Name, param.Type)

	var incoming rtl.Pseudo
	if lv.kind == VarRegister {
		incoming = lv.pseudo
	} else {
		incoming = b.NewPseudo()
	}

	if i < len(rtl.IntArgRegs) {
		reg := rtl.IntArgRegs[i]
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyMP{Src: reg, Dst: incoming, Succ: succ} })
	} else {
		slot := i - len(rtl.IntArgRegs) + 1
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.LoadParam{Slot: slot, Dst: incoming, Succ: succ} })
	}

	if lv.kind == VarStack {
		b.AddSequential(func(succ rtl.Label) rtl.Instruction {
			return rtl.Store{Src: incoming, Symbol: "", Base: b.frameAddr(param.Name), Offset: 0, Succ: succ}
		})
	}
	return incoming
}

// frameAddr materializes the frame-relative address of an already
// VarStack-classified local into a fresh address pseudo.
func (b *Builder) frameAddr(name string) rtl.Pseudo {
	lv := b.locals[name]
	addr := b.NewPseudo()
	off := -lv.offset
	b.AddSequential(func(succ rtl.Label) rtl.Instruction {
		return rtl.CopyAP{Offset: off, Base: rtl.RBP, Dst: addr, Succ: succ}
	})
	return addr
}

func (b *Builder) lowerStmts(stmts []bxast.Stmt) {
	for _, s := range stmts {
		b.lowerStmt(s)
	}
}

func (b *Builder) lowerStmt(s bxast.Stmt) {
	switch st := s.(type) {
	case bxast.Declare:
		b.lowerDeclare(st)
	case bxast.Assign:
		b.lowerAssign(st)
	case bxast.If:
		b.lowerIf(st)
	case bxast.While:
		b.lowerWhile(st)
	case bxast.Return:
		b.lowerReturn(st)
	case bxast.Print:
		b.lowerPrint(st)
	case bxast.Eval:
		b.lowerToValuePseudoDiscarding(st.Value)
	case bxast.Block:
		b.lowerStmts(st.Stmts)
	default:
		b.errf("rtlgen: cannot lower statement of type %T", s)
	}
}

// lowerDeclare allocates storage for a newly declared local and
// initializes it. List-typed locals are always memory-resident: their
// backing bytes are zeroed with a `memset` call before any per-element
// access occurs.
func (b *Builder) lowerDeclare(st bxast.Declare) {
	lv := b.declareLocal(st.Name, st.Type)
	if _, isList := st.Type.(bxast.List); isList {
		b.emitMemsetZero(lv)
		return
	}
	val := b.lowerToValuePseudo(st.Init)
	b.writeVar(st.Name, val)
}

// emitMemsetZero zeroes a freshly declared list local's backing storage
// via the runtime's memset(ptr, 0, size) shim.
func (b *Builder) emitMemsetZero(lv localVar) {
	addr := b.frameAddrFor(lv)
	size := bxast.SizeOf(lv.typ)

	sizeP := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: size, Dst: sizeP, Succ: succ} })
	zeroP := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: 0, Dst: zeroP, Succ: succ} })

	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: addr, Dst: rtl.RDI, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: zeroP, Dst: rtl.RSI, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: sizeP, Dst: rtl.RDX, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Call{Func: "memset", NArgs: 3, Succ: succ} })
}

func (b *Builder) frameAddrFor(lv localVar) rtl.Pseudo {
	addr := b.NewPseudo()
	off := -lv.offset
	b.AddSequential(func(succ rtl.Label) rtl.Instruction {
		return rtl.CopyAP{Offset: off, Base: rtl.RBP, Dst: addr, Succ: succ}
	})
	return addr
}

// lowerAssign lowers `lhs = rhs`. A plain variable target reuses
// writeVar (register-Copy or memory-Store depending on its VarKind); a
// list-element or dereference target goes through the Addressor pass
// and an explicit Store.
func (b *Builder) lowerAssign(st bxast.Assign) {
	if v, ok := st.Lhs.(bxast.Var); ok {
		val := b.lowerToValuePseudo(st.Rhs)
		b.writeVar(v.Name, val)
		return
	}
	b.LowerAddress(st.Lhs)
	addr := b.Address
	val := b.lowerToValuePseudo(st.Rhs)
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Store{Src: val, Base: addr, Succ: succ} })
}

// lowerIf lowers the condition in short-circuit form, lowers each
// branch starting at its own entry label, and joins both at a fresh
// merge label.
func (b *Builder) lowerIf(st bxast.If) {
	b.LowerBool(st.Cond)
	thenEntry := b.InLabel
	elseEntry := b.FalseLabel
	merge := b.NewLabel()

	b.InLabel = thenEntry
	b.lowerStmts(st.Then)
	b.AddInstr(b.InLabel, rtl.Goto{Succ: merge})

	b.InLabel = elseEntry
	b.lowerStmts(st.Else)
	b.AddInstr(b.InLabel, rtl.Goto{Succ: merge})

	b.InLabel = merge
}

// lowerWhile remembers the label that begins condition evaluation,
// lowers the condition, lowers the body starting at its true entry,
// loops back to the condition, and leaves in_label at the condition's
// false entry.
func (b *Builder) lowerWhile(st bxast.While) {
	condLabel := b.NewLabel()
	b.AddInstr(b.InLabel, rtl.Goto{Succ: condLabel})
	b.InLabel = condLabel

	b.LowerBool(st.Cond)
	bodyEntry := b.InLabel
	afterLoop := b.FalseLabel

	b.InLabel = bodyEntry
	b.lowerStmts(st.Body)
	b.AddInstr(b.InLabel, rtl.Goto{Succ: condLabel})

	b.InLabel = afterLoop
}

// lowerReturn lowers a value (if any) into the callable's output
// pseudo, copies it into %rax, and jumps to leave. A fresh label
// continues the cursor afterward so any (unreachable, ill-formed)
// statements following a return don't collide with an already-installed
// label.
func (b *Builder) lowerReturn(st bxast.Return) {
	if st.Value != nil {
		val := b.lowerToValuePseudo(st.Value)
		out := b.output
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: val, Dst: out, Succ: succ} })
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: out, Dst: rtl.RAX, Succ: succ} })
	}
	b.AddInstr(b.InLabel, rtl.Goto{Succ: b.leave})
	b.InLabel = b.NewLabel()
}

// lowerPrint lowers the argument (intifying a bool), places it in %rdi,
// and calls the runtime print shim matching its static type.
func (b *Builder) lowerPrint(st bxast.Print) {
	boolArg := isBool(st.Value.Typ())
	val := b.lowerToValuePseudo(st.Value)
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: val, Dst: rtl.RDI, Succ: succ} })
	fn := "bx_print_int"
	if boolArg {
		fn = "bx_print_bool"
	}
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Call{Func: fn, NArgs: 1, Succ: succ} })
}

// lowerToValuePseudoDiscarding lowers e for its side effects only (an
// `Eval` statement wrapping a call).
func (b *Builder) lowerToValuePseudoDiscarding(e bxast.Expr) {
	b.lowerToValuePseudo(e)
}
