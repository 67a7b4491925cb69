package typecheck

import (
	"testing"

	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/lexer"
	"github.com/raymyers/bxcc/pkg/parser"
)

func mustParse(t *testing.T, src string) *bxast.Program {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	return prog
}

func TestCheckAnnotatesExprTypes(t *testing.T) {
	prog := mustParse(t, `proc main(){ var x=1+2:int64; print x; }`)
	checked, errs := Check(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	decl := checked.Callables[0].Body[0].(bxast.Declare)
	if _, ok := decl.Init.Typ().(bxast.Int64); !ok {
		t.Fatalf("init type = %v, want int64", decl.Init.Typ())
	}
}

func TestCheckMissingMain(t *testing.T) {
	prog := mustParse(t, `proc notmain(){ print 1; }`)
	_, errs := Check(prog)
	if len(errs) == 0 {
		t.Fatalf("expected a missing-main error")
	}
}

func TestCheckUndefinedVariable(t *testing.T) {
	prog := mustParse(t, `proc main(){ print y; }`)
	_, errs := Check(prog)
	if len(errs) == 0 {
		t.Fatalf("expected an undefined-variable error")
	}
}

func TestCheckNonConstGlobalInitializer(t *testing.T) {
	prog := mustParse(t, `var g = 1 + 2 : int64; proc main(){ print g; }`)
	_, errs := Check(prog)
	if len(errs) == 0 {
		t.Fatalf("expected a non-constant-initializer error")
	}
}

func TestCheckRelationalProducesBool(t *testing.T) {
	prog := mustParse(t, `proc main(){ if (1 < 2) print 1; }`)
	checked, errs := Check(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	ifs := checked.Callables[0].Body[0].(bxast.If)
	if _, ok := ifs.Cond.Typ().(bxast.Bool); !ok {
		t.Fatalf("cond type = %v, want bool", ifs.Cond.Typ())
	}
}

func TestCheckDereferenceNonPointer(t *testing.T) {
	prog := mustParse(t, `proc main(){ var x=1:int64; print *x; }`)
	_, errs := Check(prog)
	if len(errs) == 0 {
		t.Fatalf("expected a dereference-of-non-pointer error")
	}
}
