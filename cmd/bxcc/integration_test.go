package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/raymyers/bxcc/pkg/asm"
	"github.com/raymyers/bxcc/pkg/rtl"
	"gopkg.in/yaml.v3"
)

// roundYAMLCase is one of the six canonical round-trip fragments: a BX
// source snippet paired with the stdout it would produce if assembled,
// linked, and run. This module never invokes an assembler or linker in
// tests, so wantStdout is checked structurally: the lowered RTL must
// contain exactly as many print calls as the source has print
// statements, and the whole pipeline must run error-free down to
// assembly with every placeholder resolved.
type roundYAMLCase struct {
	Name       string `yaml:"name"`
	Input      string `yaml:"input"`
	WantStdout string `yaml:"wantStdout"`
}

type roundYAMLFile struct {
	Tests []roundYAMLCase `yaml:"tests"`
}

func TestRoundsYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/rounds.yaml")
	if err != nil {
		t.Skipf("testdata/rounds.yaml not found: %v", err)
	}
	var file roundYAMLFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse rounds.yaml: %v", err)
	}
	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			path := writeTempBX(t, tc.Input)
			var errOut bytes.Buffer

			rtlProg, err := lower(path, &errOut)
			if err != nil {
				t.Fatalf("lowering failed: %v, stderr=%s", err, errOut.String())
			}
			var rtlDump bytes.Buffer
			rtl.NewPrinter(&rtlDump).PrintProgram(rtlProg)

			wantPrints := strings.Count(tc.Input, "print ")
			gotPrints := strings.Count(rtlDump.String(), "call bx_print_")
			if gotPrints != wantPrints {
				t.Errorf("source %q has %d print statements (expecting stdout %q), but lowered RTL has %d print calls:\n%s",
					tc.Input, wantPrints, tc.WantStdout, gotPrints, rtlDump.String())
			}

			asmProg, locate, err := compileToAsm(path, &errOut)
			if err != nil {
				t.Fatalf("compiling to assembly failed: %v, stderr=%s", err, errOut.String())
			}
			var asmDump bytes.Buffer
			asm.NewPrinter(&asmDump, locate).PrintProgram(asmProg)
			if strings.ContainsAny(asmDump.String(), "`") {
				t.Errorf("emitted assembly for %q has an unresolved placeholder:\n%s", tc.Name, asmDump.String())
			}
		})
	}
}
