// Package asmgen translates an rtl.Program into an abstract asm.Program:
// the RTL-to-assembly half of spec.md §4.2. Every RTL instruction becomes
// one or more asm.Line templates; every RTL pseudo is bound, immediately
// and permanently, to its own 8-byte stack slot, since register
// allocation is out of scope for this compiler (spec.md §1 Non-goals).
package asmgen

import (
	"strconv"

	"github.com/raymyers/bxcc/pkg/asm"
	"github.com/raymyers/bxcc/pkg/rtl"
)

// TransformProgram translates every Callable in prog independently and
// carries the globals through unchanged.
func TransformProgram(prog *rtl.Program) *asm.Program {
	t := newTranslator()
	callables := make([]asm.Callable, 0, len(prog.Callables))
	for _, fn := range prog.Callables {
		callables = append(callables, t.translateCallable(fn))
	}
	return &asm.Program{Callables: callables, Globals: prog.Globals}
}

// Locate builds the locate function pkg/asm's Printer needs, resolving
// any asm.Pseudo this translator bound to its final Location. It only
// knows the pseudos of callables this same translator has translated;
// TransformProgram uses a translator of its own, so use NewLocator to get
// a Locate that matches the returned program.
func (t *translator) Locate(p asm.Pseudo) asm.Location {
	return t.locations[p]
}

// NewLocator runs TransformProgram and additionally returns the locate
// closure the asm.Printer needs, so callers (cmd/bxcc) don't need to
// reach into the translator's internals.
func NewLocator(prog *rtl.Program) (*asm.Program, func(asm.Pseudo) asm.Location) {
	t := newTranslator()
	callables := make([]asm.Callable, 0, len(prog.Callables))
	for _, fn := range prog.Callables {
		callables = append(callables, t.translateCallable(fn))
	}
	asmProg := &asm.Program{Callables: callables, Globals: prog.Globals}
	return asmProg, t.Locate
}

// translator holds state shared across every Callable in one Program: a
// single continuously-increasing asm.Pseudo counter and its Location
// table, so that the one `locate` closure pkg/asm's Printer uses can
// resolve pseudos from any function without ambiguity.
type translator struct {
	nextPseudo asm.Pseudo
	locations  map[asm.Pseudo]asm.Location
}

func newTranslator() *translator {
	return &translator{nextPseudo: 1, locations: make(map[asm.Pseudo]asm.Location)}
}

// funcTranslator lowers one Callable. pseudoMap is local to this
// function since rtl.Pseudo identities restart at 1 in every Callable
// (pkg/rtlgen scopes its Allocator per-Builder); localWords is the
// number of 8-byte slots the RTL-level NewFrame already reserved for
// stack-resident locals, so that per-pseudo slots are appended after
// that region rather than aliasing it.
type funcTranslator struct {
	*translator
	name       string
	pseudoMap  map[rtl.Pseudo]asm.Pseudo
	localWords int64
	nextSlot   int
}

func (t *translator) translateCallable(fn rtl.Callable) asm.Callable {
	ft := &funcTranslator{
		translator: t,
		name:       fn.Name,
		pseudoMap:  make(map[rtl.Pseudo]asm.Pseudo),
	}
	if nf, ok := fn.Body[fn.Enter].(rtl.NewFrame); ok {
		ft.localWords = nf.Size / 8
	}
	ft.nextSlot = int(ft.localWords)

	var body []asm.Line
	for _, l := range fn.Schedule {
		body = append(body, asm.Line{Template: asm.FuncLabel(fn.Name, l) + ":"})
		body = append(body, ft.translateInstr(fn.Body[l])...)
	}

	exitLabel := ".L" + fn.Name + ".exit"
	frameBytes := 8 * int64(ft.nextSlot)

	var lines []asm.Line
	lines = append(lines, asm.Line{Template: "\tpushq %rbp"})
	lines = append(lines, asm.Line{Template: "\tmovq %rsp, %rbp"})
	if frameBytes > 0 {
		lines = append(lines, asm.Line{Template: "\tsubq $" + strconv.FormatInt(frameBytes, 10) + ", %rsp"})
	}
	lines = append(lines, body...)
	lines = append(lines, asm.Line{Template: exitLabel + ":"})
	lines = append(lines, asm.Line{Template: "\tmovq %rbp, %rsp"})
	lines = append(lines, asm.Line{Template: "\tpopq %rbp"})
	lines = append(lines, asm.Line{Template: "\tret"})

	return asm.Callable{Name: fn.Name, Lines: lines}
}

// asmPseudo returns (allocating on first use) the assembly Pseudo p maps
// to within this function, bound immediately to the next free stack
// slot after the locals region.
func (ft *funcTranslator) asmPseudo(p rtl.Pseudo) asm.Pseudo {
	if ap, ok := ft.pseudoMap[p]; ok {
		return ap
	}
	ft.nextSlot++
	ap := ft.nextPseudo
	ft.nextPseudo++
	ft.pseudoMap[p] = ap
	ft.locations[ap] = asm.Location{Kind: asm.InStackSlot, Slot: ft.nextSlot}
	return ap
}

func (ft *funcTranslator) use(p rtl.Pseudo) []asm.Pseudo { return []asm.Pseudo{ft.asmPseudo(p)} }
func (ft *funcTranslator) def(p rtl.Pseudo) []asm.Pseudo { return []asm.Pseudo{ft.asmPseudo(p)} }

func i32(n int64) bool { return n >= -(1<<31) && n < (1<<31) }

// translateInstr replaces one RTL instruction by the assembly lines the
// translation table in spec.md §4.2 prescribes. Each line ends its own
// control transfer explicitly (a trailing standalone "jmp `j0" line for
// the single-successor cases) so pkg/asm's jump-elision logic — which
// only elides a Line that is *itself* exactly "jmp target" — can drop it
// when the following scheduled label matches.
func (ft *funcTranslator) translateInstr(instr rtl.Instruction) []asm.Line {
	switch in := instr.(type) {
	case rtl.Move:
		return ft.translateMove(in)
	case rtl.Copy:
		return []asm.Line{
			{Template: "\tmovq `s0, %rax", Use: ft.use(in.Src)},
			{Template: "\tmovq %rax, `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	case rtl.CopyMP:
		return []asm.Line{
			{Template: "\tmovq %" + string(in.Src) + ", `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	case rtl.CopyPM:
		return []asm.Line{
			{Template: "\tmovq `s0, %" + string(in.Dst), Use: ft.use(in.Src)},
			jumpTo(in.Succ),
		}
	case rtl.CopyAP:
		return ft.translateCopyAP(in)
	case rtl.Load:
		return ft.translateLoad(in)
	case rtl.Store:
		return ft.translateStore(in)
	case rtl.Unop:
		op := "negq"
		if in.Op == rtl.NOT {
			op = "notq"
		}
		return []asm.Line{
			{Template: "\t" + op + " `d0", Use: ft.use(in.Arg), Def: ft.def(in.Arg)},
			jumpTo(in.Succ),
		}
	case rtl.Binop:
		return ft.translateBinop(in)
	case rtl.Ubranch:
		return ft.translateUbranch(in)
	case rtl.Bbranch:
		return ft.translateBbranch(in)
	case rtl.Goto:
		return []asm.Line{jumpTo(in.Succ)}
	case rtl.Call:
		return []asm.Line{
			{Template: "\tcall " + in.Func},
			jumpTo(in.Succ),
		}
	case rtl.Return:
		return []asm.Line{{Template: "\tjmp " + ft.exitLabel()}}
	case rtl.NewFrame:
		// The frame is already reserved by the wrapping prologue this
		// translator emits around the whole function body; see
		// translateCallable. DelFrame is symmetric: see below.
		return []asm.Line{jumpTo(in.Succ)}
	case rtl.DelFrame:
		return []asm.Line{jumpTo(in.Succ)}
	case rtl.LoadParam:
		off := strconv.FormatInt(8*(int64(in.Slot)+1), 10)
		return []asm.Line{
			{Template: "\tmovq " + off + "(%rbp), %rax"},
			{Template: "\tmovq %rax, `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	case rtl.Push:
		return []asm.Line{
			{Template: "\tpushq `s0", Use: ft.use(in.Src)},
			jumpTo(in.Succ),
		}
	case rtl.Pop:
		return []asm.Line{
			{Template: "\tpopq `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	default:
		panic("asmgen: no translation for RTL instruction")
	}
}

func (ft *funcTranslator) exitLabel() string { return ".L" + ft.name + ".exit" }

func jumpTo(succ rtl.Label) asm.Line {
	return asm.Line{Template: "\tjmp `j0", JumpDests: []rtl.Label{succ}}
}

// translateMove picks movabsq for an immediate that does not fit in a
// signed 32-bit field (movq's immediate form sign-extends a 32-bit
// literal; anything wider must first land in a register), matching the
// boundary case in spec.md §8 (INT64_MIN).
func (ft *funcTranslator) translateMove(in rtl.Move) []asm.Line {
	imm := strconv.FormatInt(in.Imm, 10)
	if i32(in.Imm) {
		return []asm.Line{
			{Template: "\tmovq $" + imm + ", `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	}
	return []asm.Line{
		{Template: "\tmovabsq $" + imm + ", %rax"},
		{Template: "\tmovq %rax, `d0", Def: ft.def(in.Dst)},
		jumpTo(in.Succ),
	}
}

// translateCopyAP materializes an effective address: `symbol(%rip)` when
// Symbol is non-empty (global/static addressing), otherwise
// `offset(%base)` (conventionally %rbp-relative, for locals and list
// element addressing) — see DESIGN.md for the resolution of spec.md's
// open question on this form.
func (ft *funcTranslator) translateCopyAP(in rtl.CopyAP) []asm.Line {
	if in.Symbol != "" {
		return []asm.Line{
			{Template: "\tleaq " + in.Symbol + "(%rip), `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	}
	off := strconv.FormatInt(in.Offset, 10)
	return []asm.Line{
		{Template: "\tleaq " + off + "(%" + string(in.Base) + "), `d0", Def: ft.def(in.Dst)},
		jumpTo(in.Succ),
	}
}

// translateLoad reads a 64-bit value from a symbol (%rip-relative) or
// from Offset(Base) where Base is an RTL pseudo holding a runtime
// address computed by a prior CopyAP/arithmetic sequence — since that
// address itself lives in a stack slot, it must first be materialized
// into a scratch register (%rcx) before it can serve as an addressing
// base; x86 has no memory-indirect-through-memory addressing mode.
func (ft *funcTranslator) translateLoad(in rtl.Load) []asm.Line {
	if in.Symbol != "" {
		return []asm.Line{
			{Template: "\tmovq " + in.Symbol + "(%rip), %rax"},
			{Template: "\tmovq %rax, `d0", Def: ft.def(in.Dst)},
			jumpTo(in.Succ),
		}
	}
	off := strconv.FormatInt(in.Offset, 10)
	return []asm.Line{
		{Template: "\tmovq `s0, %rcx", Use: ft.use(in.Base)},
		{Template: "\tmovq " + off + "(%rcx), %rax"},
		{Template: "\tmovq %rax, `d0", Def: ft.def(in.Dst)},
		jumpTo(in.Succ),
	}
}

func (ft *funcTranslator) translateStore(in rtl.Store) []asm.Line {
	if in.Symbol != "" {
		return []asm.Line{
			{Template: "\tmovq `s0, %rax", Use: ft.use(in.Src)},
			{Template: "\tmovq %rax, " + in.Symbol + "(%rip)"},
			jumpTo(in.Succ),
		}
	}
	off := strconv.FormatInt(in.Offset, 10)
	return []asm.Line{
		{Template: "\tmovq `s0, %rcx", Use: ft.use(in.Base)},
		{Template: "\tmovq `s0, %rax", Use: ft.use(in.Src)},
		{Template: "\tmovq %rax, " + off + "(%rcx)"},
		jumpTo(in.Succ),
	}
}

// translateBinop implements spec.md §4.2's arithmetic/bitwise/shift
// cases, each going through %rax (and %rcx/%rdx where the opcode
// requires it) to avoid a memory-to-memory operand pairing.
func (ft *funcTranslator) translateBinop(in rtl.Binop) []asm.Line {
	dst := ft.def(in.Dst)
	src := ft.use(in.Src)
	switch in.Op {
	case rtl.MUL:
		return []asm.Line{
			{Template: "\tmovq `s0, %rax", Use: dst},
			{Template: "\timulq `s0", Use: src},
			{Template: "\tmovq %rax, `d0", Def: dst},
			jumpTo(in.Succ),
		}
	case rtl.DIV:
		return []asm.Line{
			{Template: "\tmovq `s0, %rax", Use: dst},
			{Template: "\tcqo"},
			{Template: "\tidivq `s0", Use: src},
			{Template: "\tmovq %rax, `d0", Def: dst},
			jumpTo(in.Succ),
		}
	case rtl.REM:
		return []asm.Line{
			{Template: "\tmovq `s0, %rax", Use: dst},
			{Template: "\tcqo"},
			{Template: "\tidivq `s0", Use: src},
			{Template: "\tmovq %rdx, `d0", Def: dst},
			jumpTo(in.Succ),
		}
	case rtl.SAL, rtl.SAR:
		op := "salq"
		if in.Op == rtl.SAR {
			op = "sarq"
		}
		return []asm.Line{
			{Template: "\tmovq `s0, %rcx", Use: src},
			{Template: "\tmovq `s0, %rax", Use: dst},
			{Template: "\t" + op + " %cl, %rax"},
			{Template: "\tmovq %rax, `d0", Def: dst},
			jumpTo(in.Succ),
		}
	default:
		op := binopMnemonic(in.Op)
		return []asm.Line{
			{Template: "\tmovq `s0, %rax", Use: dst},
			{Template: "\t" + op + " `s0, %rax", Use: src},
			{Template: "\tmovq %rax, `d0", Def: dst},
			jumpTo(in.Succ),
		}
	}
}

func binopMnemonic(op rtl.BinOp) string {
	switch op {
	case rtl.ADD:
		return "addq"
	case rtl.SUB:
		return "subq"
	case rtl.AND:
		return "andq"
	case rtl.OR:
		return "orq"
	case rtl.XOR:
		return "xorq"
	default:
		panic("asmgen: binop has no direct mnemonic")
	}
}

func (ft *funcTranslator) translateUbranch(in rtl.Ubranch) []asm.Line {
	cc := "je"
	if in.Op == rtl.JNZ {
		cc = "jne"
	}
	return []asm.Line{
		{Template: "\tcmpq $0, `s0", Use: ft.use(in.Arg)},
		{Template: "\t" + cc + " `j0", JumpDests: []rtl.Label{in.Taken}},
		{Template: "\tjmp `j0", JumpDests: []rtl.Label{in.Fail}},
	}
}

// translateBbranch compares A to B by moving B into %rax so the cmpq can
// take A directly from its stack slot (cmpq allows one memory operand),
// then emits the *negated* condition jumping to Fail, falling through to
// an unconditional jump to Taken — per spec.md §4.2's translation table
// ("j<negated> fail; jmp taken"), using BCond.Negate directly.
func (ft *funcTranslator) translateBbranch(in rtl.Bbranch) []asm.Line {
	return []asm.Line{
		{Template: "\tmovq `s0, %rax", Use: ft.use(in.B)},
		{Template: "\tcmpq %rax, `s0", Use: ft.use(in.A)},
		{Template: "\t" + condMnemonic(in.Op.Negate()) + " `j0", JumpDests: []rtl.Label{in.Fail}},
		{Template: "\tjmp `j0", JumpDests: []rtl.Label{in.Taken}},
	}
}

func condMnemonic(c rtl.BCond) string {
	switch c {
	case rtl.JE:
		return "je"
	case rtl.JNE:
		return "jne"
	case rtl.JL:
		return "jl"
	case rtl.JLE:
		return "jle"
	case rtl.JG:
		return "jg"
	case rtl.JGE:
		return "jge"
	default:
		panic("asmgen: unknown BCond")
	}
}
