package asm

import (
	"testing"

	"github.com/raymyers/bxcc/pkg/rtl"
)

func TestLocationStringRegister(t *testing.T) {
	loc := Location{Kind: InRegister, Reg: rtl.RAX}
	if got := loc.String(); got != "%rax" {
		t.Fatalf("got %q, want %%rax", got)
	}
}

func TestLocationStringStackSlot(t *testing.T) {
	loc := Location{Kind: InStackSlot, Slot: 3}
	if got := loc.String(); got != "-24(%rbp)" {
		t.Fatalf("got %q, want -24(%%rbp)", got)
	}
}

func TestLocationStringUnbound(t *testing.T) {
	loc := Location{}
	if got := loc.String(); got != "<unbound>" {
		t.Fatalf("got %q, want <unbound>", got)
	}
}
