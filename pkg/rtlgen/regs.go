// Allocation of fresh RTL labels and pseudos for one compilation unit.
// Per spec.md's Design Notes (§9) a global counter is a design smell;
// this allocator is scoped to one Builder so tests stay reproducible
// and compiling two units in the same process never cross-pollutes ids.

package rtlgen

import "github.com/raymyers/bxcc/pkg/rtl"

// Allocator hands out fresh labels and pseudos. Zero value is not ready
// for use; call NewAllocator.
type Allocator struct {
	nextLabel  rtl.Label
	nextPseudo rtl.Pseudo
}

// NewAllocator creates an allocator whose first pseudo is 1 (0 is
// rtl.Discard) and whose first label is 0.
func NewAllocator() *Allocator {
	return &Allocator{nextLabel: 0, nextPseudo: rtl.Discard + 1}
}

// Label returns a fresh, never-before-returned label.
func (a *Allocator) Label() rtl.Label {
	l := a.nextLabel
	a.nextLabel++
	return l
}

// Pseudo returns a fresh, never-before-returned pseudo.
func (a *Allocator) Pseudo() rtl.Pseudo {
	p := a.nextPseudo
	a.nextPseudo++
	return p
}

// PseudoCount returns how many pseudos have been allocated so far. The
// prologue's NewFrame size does not use it; that size is the Builder's
// stack-resident local storage.
func (a *Allocator) PseudoCount() int {
	return int(a.nextPseudo) - int(rtl.Discard) - 1
}
