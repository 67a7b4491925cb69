package rtlgen

import (
	"fmt"

	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/rtl"
)

// globalVar is one global's layout record: its byte offset from the base
// of the data section, its size, its encoded 32-bit initializer, and its
// declared type (needed later for sizeOf-driven addressing).
type globalVar struct {
	offset int64
	size   int64
	init   int32
	typ    bxast.Type
}

// GlobalLayout walks the globals list once, before any callable is
// lowered, assigning each a monotonically increasing byte offset and
// recording its encoded initializer (ints as-is, bools as 0/1). A
// non-constant initializer is a fatal diagnostic per spec.md §7 — by
// the time rtlgen runs, pkg/typecheck has already rejected these, but
// this layout pass re-validates since it is the one that must produce a
// concrete int32 value for the .s data section.
func GlobalLayout(globals []bxast.GlobalDecl) (layout map[string]globalVar, order []string, dump []rtl.GlobalVar, errs []error) {
	layout = make(map[string]globalVar)
	var offset int64
	for _, g := range globals {
		size := bxast.SizeOf(g.Type)
		init, err := constInitValue(g.Init)
		if err != nil {
			errs = append(errs, fmt.Errorf("global %q: %w", g.Name, err))
			continue
		}
		layout[g.Name] = globalVar{offset: offset, size: size, init: init, typ: g.Type}
		order = append(order, g.Name)
		dump = append(dump, rtl.GlobalVar{Name: g.Name, Size: size, Init: init})
		offset += size
	}
	return layout, order, dump, errs
}

func constInitValue(e bxast.Expr) (int32, error) {
	switch lit := e.(type) {
	case bxast.IntLit:
		return int32(lit.Value), nil
	case bxast.BoolLit:
		if lit.Value {
			return 1, nil
		}
		return 0, nil
	case bxast.NullLit:
		return 0, nil
	default:
		return 0, fmt.Errorf("initializer must be a constant literal, got %T", e)
	}
}
