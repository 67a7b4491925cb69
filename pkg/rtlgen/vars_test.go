package rtlgen

import (
	"testing"

	"github.com/raymyers/bxcc/pkg/bxast"
)

func TestGlobalLayoutAssignsMonotonicOffsets(t *testing.T) {
	globals := []bxast.GlobalDecl{
		{Name: "a", Type: bxast.Int64{}, Init: bxast.IntLit{Value: 1, Type_: bxast.Int64{}}},
		{Name: "b", Type: bxast.Bool{}, Init: bxast.BoolLit{Value: true, Type_: bxast.Bool{}}},
	}
	layout, order, dump, errs := GlobalLayout(globals)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := order; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("order = %v, want [a b]", got)
	}
	if layout["a"].offset != 0 {
		t.Fatalf("a offset = %d, want 0", layout["a"].offset)
	}
	if layout["b"].offset != 8 {
		t.Fatalf("b offset = %d, want 8 (after a's 8-byte slot)", layout["b"].offset)
	}
	if dump[1].Init != 1 {
		t.Fatalf("bool initializer true must encode as 1, got %d", dump[1].Init)
	}
}

func TestGlobalLayoutRejectsNonConstantInitializer(t *testing.T) {
	globals := []bxast.GlobalDecl{
		{Name: "a", Type: bxast.Int64{}, Init: bxast.Var{Name: "b", Type_: bxast.Int64{}}},
	}
	_, _, _, errs := GlobalLayout(globals)
	if len(errs) == 0 {
		t.Fatalf("expected a non-constant global initializer to be a diagnostic")
	}
}

func TestGlobalLayoutEncodesNull(t *testing.T) {
	globals := []bxast.GlobalDecl{
		{Name: "p", Type: bxast.Pointer{Elem: bxast.Int64{}}, Init: bxast.NullLit{Type_: bxast.Pointer{Elem: bxast.Int64{}}}},
	}
	_, _, dump, errs := GlobalLayout(globals)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if dump[0].Init != 0 {
		t.Fatalf("null initializer must encode as 0, got %d", dump[0].Init)
	}
}
