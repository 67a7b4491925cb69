// Package asm defines the abstract AMD64 assembly representation this
// compiler's backend (pkg/asmgen) emits into. It is deliberately not a
// concrete instruction encoding: a Line is a textual template plus the
// pseudos/labels it reads, writes, and jumps to, so that a later register
// allocator (out of scope here) could rewrite operands without reparsing
// text.
package asm

import "github.com/raymyers/bxcc/pkg/rtl"

// Pseudo is an assembly-level virtual register, a universe disjoint from
// rtl.Pseudo. The translator maintains a one-way per-callable mapping
// from RTL pseudos into this space; the two are never mixed.
type Pseudo int

// Location describes what, if anything, an assembly Pseudo is bound to.
// Register allocation is out of scope for this compiler, so every
// pseudo used by the translator is bound immediately to a stack slot;
// machine registers appear literally in the translator's templates. The
// InRegister kind is available to Location but the translator never
// produces it.
type Location struct {
	Kind LocationKind
	Reg  rtl.MReg // valid when Kind == InRegister
	Slot int      // valid when Kind == InStackSlot; 1-based
}

// LocationKind discriminates a Pseudo's binding.
type LocationKind int

const (
	Unbound LocationKind = iota
	InRegister
	InStackSlot
)

// String renders a Location the way it appears inside an expanded Line:
// `%reg` for a register, or `-8*slot(%rbp)` for a stack slot.
func (l Location) String() string {
	switch l.Kind {
	case InRegister:
		return "%" + string(l.Reg)
	case InStackSlot:
		return stackSlotOperand(l.Slot)
	default:
		return "<unbound>"
	}
}

func stackSlotOperand(slot int) string {
	return intToDec(-8*slot) + "(%rbp)"
}

func intToDec(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Line is one line of abstract assembly: a template string with
// placeholders `` `s0 ``, `` `s1 ``, ... for reads (Use), `` `d0 ``,
// `` `d1 ``, ... for writes (Def), and `` `j0 ``, `` `j1 ``, ... for jump
// targets (JumpDests), plus the three parallel vectors the placeholders
// index into.
type Line struct {
	Template  string
	Use       []Pseudo
	Def       []Pseudo
	JumpDests []rtl.Label
}

// Callable is one function's fully expanded assembly body, in emission
// order.
type Callable struct {
	Name  string
	Lines []Line
}

// Program is a whole assembled unit: its callables in source order, plus
// the data-section globals carried through unchanged from rtl.Program.
type Program struct {
	Callables []Callable
	Globals   []rtl.GlobalVar
}
