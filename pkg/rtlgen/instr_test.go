package rtlgen

import (
	"testing"

	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/rtl"
)

// intLit/boolLit are tiny helpers to keep the literal programs below readable.
func intLit(v int64) bxast.IntLit  { return bxast.IntLit{Value: v, Type_: bxast.Int64{}} }
func boolLit(v bool) bxast.BoolLit { return bxast.BoolLit{Value: v, Type_: bxast.Bool{}} }

func lowerProgram(t *testing.T, prog *bxast.Program) *rtl.Program {
	t.Helper()
	out, errs := Lower(prog)
	if len(errs) != 0 {
		t.Fatalf("Lower errors: %v", errs)
	}
	return out
}

// TestCallableInvariants checks Testable Properties 1-3 from spec.md §8
// against every Callable produced for a program exercising if, while,
// print, and a function call.
func TestCallableInvariants(t *testing.T) {
	prog := &bxast.Program{
		Callables: []bxast.Callable{
			{
				Name: "f",
				Params: []bxast.Param{{Name: "x", Type: bxast.Int64{}}},
				Ret:    bxast.Int64{},
				Body: []bxast.Stmt{
					bxast.Return{Value: bxast.Binary{Op: bxast.BMul, Left: bxast.Var{Name: "x", Type_: bxast.Int64{}}, Right: bxast.Var{Name: "x", Type_: bxast.Int64{}}, Type_: bxast.Int64{}}},
				},
			},
			{
				Name: "main",
				Body: []bxast.Stmt{
					bxast.Declare{Name: "x", Type: bxast.Int64{}, Init: intLit(5)},
					bxast.While{
						Cond: bxast.Binary{Op: bxast.BGt, Left: bxast.Var{Name: "x", Type_: bxast.Int64{}}, Right: intLit(0), Type_: bxast.Bool{}},
						Body: []bxast.Stmt{
							bxast.Print{Value: bxast.Var{Name: "x", Type_: bxast.Int64{}}},
							bxast.Assign{Lhs: bxast.Var{Name: "x", Type_: bxast.Int64{}}, Rhs: bxast.Binary{Op: bxast.BSub, Left: bxast.Var{Name: "x", Type_: bxast.Int64{}}, Right: intLit(1), Type_: bxast.Int64{}}},
						},
					},
					bxast.If{
						Cond: boolLit(true),
						Then: []bxast.Stmt{bxast.Print{Value: bxast.Call{Callee: "f", Args: []bxast.Expr{intLit(9)}, Type_: bxast.Int64{}}}},
						Else: nil,
					},
				},
			},
		},
	}

	out := lowerProgram(t, prog)
	for _, fn := range out.Callables {
		checkCallableInvariants(t, fn)
	}
}

func checkCallableInvariants(t *testing.T, fn rtl.Callable) {
	t.Helper()

	// Property 2: schedule is a permutation of body's keys.
	if len(fn.Schedule) != len(fn.Body) {
		t.Errorf("%s: schedule has %d labels, body has %d", fn.Name, len(fn.Schedule), len(fn.Body))
	}
	seen := make(map[rtl.Label]bool)
	for _, l := range fn.Schedule {
		if seen[l] {
			t.Errorf("%s: label %d appears twice in schedule", fn.Name, l)
		}
		seen[l] = true
		if _, ok := fn.Body[l]; !ok {
			t.Errorf("%s: scheduled label %d has no body entry", fn.Name, l)
		}
	}

	// Property 3: enter is present; leave eventually reaches Return.
	if _, ok := fn.Body[fn.Enter]; !ok {
		t.Errorf("%s: enter label %d missing from body", fn.Name, fn.Enter)
	}
	if _, ok := fn.Body[fn.Leave]; !ok {
		t.Errorf("%s: leave label %d missing from body", fn.Name, fn.Leave)
	}

	// Property 1: CFG closedness — every successor exists in body.
	for l, instr := range fn.Body {
		for _, succ := range instr.Successors() {
			if _, ok := fn.Body[succ]; !ok {
				t.Errorf("%s: instruction at %d references missing successor %d", fn.Name, l, succ)
			}
		}
	}

	// Reachability from leave must terminate in Return.
	visited := map[rtl.Label]bool{}
	cur := fn.Leave
	for i := 0; i < len(fn.Body)+1; i++ {
		if visited[cur] {
			t.Errorf("%s: cycle reachable from leave without hitting Return", fn.Name)
			return
		}
		visited[cur] = true
		instr := fn.Body[cur]
		if _, ok := instr.(rtl.Return); ok {
			return
		}
		succs := instr.Successors()
		if len(succs) == 0 {
			t.Errorf("%s: dead end reachable from leave that isn't Return", fn.Name)
			return
		}
		cur = succs[0]
	}
	t.Errorf("%s: leave never reaches Return", fn.Name)
}

func TestSeventhArgumentUsesLoadParam(t *testing.T) {
	params := make([]bxast.Param, 8)
	for i := range params {
		params[i] = bxast.Param{Name: "a" + string(rune('0'+i)), Type: bxast.Int64{}}
	}
	prog := &bxast.Program{
		Callables: []bxast.Callable{
			{Name: "eight", Params: params, Ret: bxast.Int64{}, Body: []bxast.Stmt{
				bxast.Return{Value: bxast.Var{Name: params[7].Name, Type_: bxast.Int64{}}},
			}},
		},
	}
	out := lowerProgram(t, prog)
	fn := out.Callables[0]

	var slots []int
	for _, instr := range fn.Body {
		if lp, ok := instr.(rtl.LoadParam); ok {
			slots = append(slots, lp.Slot)
		}
	}
	if len(slots) != 2 {
		t.Fatalf("expected exactly 2 stack-passed parameters (7th, 8th), got %d", len(slots))
	}
	foundOne, foundTwo := false, false
	for _, s := range slots {
		if s == 1 {
			foundOne = true
		}
		if s == 2 {
			foundTwo = true
		}
	}
	if !foundOne || !foundTwo {
		t.Fatalf("expected LoadParam slots 1 and 2, got %v", slots)
	}
}

func TestMoveOfInt64MinUsesFullWidthImmediate(t *testing.T) {
	prog := &bxast.Program{
		Callables: []bxast.Callable{
			{Name: "main", Body: []bxast.Stmt{
				bxast.Declare{Name: "x", Type: bxast.Int64{}, Init: intLit(-9223372036854775808)},
				bxast.Print{Value: bxast.Var{Name: "x", Type_: bxast.Int64{}}},
			}},
		},
	}
	out := lowerProgram(t, prog)
	found := false
	for _, instr := range out.Callables[0].Body {
		if mv, ok := instr.(rtl.Move); ok && mv.Imm == -9223372036854775808 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Move carrying INT64_MIN verbatim for asmgen to select movabsq on")
	}
}

func TestDuplicateLabelInstallationPanics(t *testing.T) {
	b := newTestBuilder()
	l := b.NewLabel()
	b.AddInstr(l, rtl.Return{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate label install")
		}
	}()
	b.AddInstr(l, rtl.Return{})
}
