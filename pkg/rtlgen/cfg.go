// Package rtlgen lowers a type-checked bxast.Program into an rtl.Program.
// This is the compiler's middle end: expression lowering with
// short-circuit booleans, l-value address computation, statement
// lowering, and System V AMD64 calling-convention prologues/epilogues.
package rtlgen

import (
	"fmt"

	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/rtl"
)

// VarKind classifies how a local variable is stored, following the
// teacher's pkg/cminorgen/vars.go VarKind(VarRegister/VarStack) split:
// a local whose address is never taken and which isn't a list can live
// entirely in a pseudo; everything else (address taken, list-typed) must
// live in memory so that loads through an escaped pointer observe
// writes and vice versa.
type VarKind int

const (
	VarRegister VarKind = iota
	VarStack
)

// localVar records where one local or parameter lives.
type localVar struct {
	kind   VarKind
	pseudo rtl.Pseudo // valid when kind == VarRegister: the persistent value pseudo
	offset int64      // valid when kind == VarStack: byte offset from %rbp
	typ    bxast.Type
}

// Builder lowers one Callable at a time. It carries the label-cursor
// discipline spec.md's lowering contract is built on: InLabel/FalseLabel/
// Result are mutated by the expression lowering rules in expr.go and read
// back by their callers, rather than threaded as return values, matching
// the teacher's CFGBuilder cursor style in pkg/rtlgen/cfg.go.
type Builder struct {
	alloc    *Allocator
	body     map[rtl.Label]rtl.Instruction
	funcName string

	// label-cursor fields
	InLabel    rtl.Label
	FalseLabel rtl.Label
	Result     rtl.Pseudo
	Address    rtl.Pseudo

	locals        map[string]localVar
	globals       map[string]globalVar
	globalOrder   []string
	stackSize     int64
	stackResident map[string]bool

	funcs map[string]*bxast.Callable

	// leave is the callable's single exit label; output is the pseudo a
	// non-void callable's Return statements copy their value into
	// (rtl.Discard for a void proc). Both are set once by instr.go's
	// lowerCallable before the body is lowered.
	leave  rtl.Label
	output rtl.Pseudo

	errs []error
}

// NewBuilder creates a Builder for one callable, sharing the global
// layout and the function signature table computed once per program.
// stackResident is the address-taken name set computed by ClassifyLocals
// for this callable's body; list-typed locals are made stack-resident
// separately, by declareLocal.
func NewBuilder(funcName string, globals map[string]globalVar, globalOrder []string, funcs map[string]*bxast.Callable, stackResident map[string]bool) *Builder {
	return &Builder{
		alloc:         NewAllocator(),
		body:          make(map[rtl.Label]rtl.Instruction),
		funcName:      funcName,
		locals:        make(map[string]localVar),
		stackResident: stackResident,
		globals:     globals,
		globalOrder: globalOrder,
		funcs:       funcs,
	}
}

// Errors returns the diagnostics accumulated while lowering this callable.
func (b *Builder) Errors() []error { return b.errs }

func (b *Builder) errf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// NewLabel returns a fresh label.
func (b *Builder) NewLabel() rtl.Label { return b.alloc.Label() }

// NewPseudo returns a fresh pseudo.
func (b *Builder) NewPseudo() rtl.Pseudo { return b.alloc.Pseudo() }

// AddInstr installs instr at label l. Installing two instructions at the
// same label is a programming-error-class fault per spec.md §7: the
// lowerer never legitimately revisits a label, so this panics rather
// than returning an error.
func (b *Builder) AddInstr(l rtl.Label, instr rtl.Instruction) {
	if _, exists := b.body[l]; exists {
		panic(fmt.Sprintf("rtlgen: duplicate instruction installed at label %d", l))
	}
	b.body[l] = instr
}

// AddSequential is the lowering primitive from spec.md §4.1: allocate a
// fresh label L', install make(L') at the current InLabel, then advance
// InLabel to L'.
func (b *Builder) AddSequential(make_ func(succ rtl.Label) rtl.Instruction) {
	next := b.NewLabel()
	b.AddInstr(b.InLabel, make_(next))
	b.InLabel = next
}

// allocLocal reserves storage for a newly declared local or parameter of
// the given type and records it for later address and lookup purposes.
// stackResident forces VarStack storage (used for list-typed locals and
// any local whose address is taken anywhere in the callable, per the
// pre-pass in classify.go).
func (b *Builder) allocLocal(name string, typ bxast.Type, stackResident bool) localVar {
	var lv localVar
	if stackResident {
		size := bxast.SizeOf(typ)
		b.stackSize += size
		lv = localVar{kind: VarStack, offset: b.stackSize, typ: typ}
	} else {
		lv = localVar{kind: VarRegister, pseudo: b.NewPseudo(), typ: typ}
	}
	b.locals[name] = lv
	return lv
}

// declareLocal decides storage for a newly declared local: list-typed
// locals are always memory-resident (they need contiguous addressable
// storage), as is any local ClassifyLocals found address-taken; everything
// else gets a plain pseudo.
func (b *Builder) declareLocal(name string, typ bxast.Type) localVar {
	_, isList := typ.(bxast.List)
	return b.allocLocal(name, typ, isList || b.stackResident[name])
}

// lookupVar resolves a name to either a local or a global, reporting
// which so that expr.go can choose %rbp-relative versus
// %rip-relative addressing.
func (b *Builder) lookupVar(name string) (local localVar, isLocal bool, global globalVar, isGlobal bool) {
	if lv, ok := b.locals[name]; ok {
		return lv, true, globalVar{}, false
	}
	if g, ok := b.globals[name]; ok {
		return localVar{}, false, g, true
	}
	return localVar{}, false, globalVar{}, false
}

// varType returns the declared type of a name, local or global.
func (b *Builder) varType(name string) bxast.Type {
	if lv, ok := b.locals[name]; ok {
		return lv.typ
	}
	if g, ok := b.globals[name]; ok {
		return g.typ
	}
	return nil
}
