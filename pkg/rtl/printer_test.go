package rtl

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintCallableIncludesEnterLeave(t *testing.T) {
	fn := straightLineCallable()
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCallable(&fn)
	out := buf.String()
	if !strings.Contains(out, "enter: L0") {
		t.Fatalf("output missing enter line:\n%s", out)
	}
	if !strings.Contains(out, "leave: L3") {
		t.Fatalf("output missing leave line:\n%s", out)
	}
	if !strings.Contains(out, "return") {
		t.Fatalf("output missing return instruction:\n%s", out)
	}
}

func TestPrintProgramIncludesGlobals(t *testing.T) {
	prog := &Program{
		Globals: []GlobalVar{{Name: "counter", Size: 8, Init: 0}},
	}
	fn := straightLineCallable()
	prog.Callables = append(prog.Callables, fn)

	var buf bytes.Buffer
	NewPrinter(&buf).PrintProgram(prog)
	out := buf.String()
	if !strings.Contains(out, "var counter[8] = 0") {
		t.Fatalf("output missing global var line:\n%s", out)
	}
	if !strings.Contains(out, "main(") {
		t.Fatalf("output missing callable header:\n%s", out)
	}
}

func TestPrintScheduleOrderMatchesSchedule(t *testing.T) {
	fn := straightLineCallable()
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCallable(&fn)
	out := buf.String()
	i0 := strings.Index(out, "L0:")
	i1 := strings.Index(out, "L1:")
	i2 := strings.Index(out, "L2:")
	i3 := strings.Index(out, "L3:")
	if !(i0 < i1 && i1 < i2 && i2 < i3) {
		t.Fatalf("labels not printed in schedule order:\n%s", out)
	}
}
