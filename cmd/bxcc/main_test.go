package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetDebugFlags() {
	dumpParsed = false
	dumpRTL = false
	dumpAsm = false
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestBuildSubcommandExists(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	build, _, err := cmd.Find([]string{"build"})
	if err != nil || build == nil {
		t.Fatalf("expected a build subcommand, err=%v", err)
	}
}

func TestDumpFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	build, _, err := cmd.Find([]string{"build"})
	if err != nil {
		t.Fatalf("find build: %v", err)
	}
	for _, name := range []string{"dump-parsed", "dump-rtl", "dump-asm"} {
		if build.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestNormalizeFlagsConvertsSingleDash(t *testing.T) {
	got := normalizeFlags([]string{"build", "-dump-rtl", "f.bx"})
	want := []string{"build", "--dump-rtl", "f.bx"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestNormalizeFlagsLeavesOthersAlone(t *testing.T) {
	got := normalizeFlags([]string{"build", "--help", "f.bx"})
	want := []string{"build", "--help", "f.bx"}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBuildMissingFileReportsError(t *testing.T) {
	resetDebugFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"build", "does-not-exist.bx"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for a missing input file")
	}
	if !strings.Contains(errOut.String(), "does-not-exist.bx") {
		t.Fatalf("expected the filename in the error output, got %q", errOut.String())
	}
}

func writeTempBX(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.bx")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp .bx file: %v", err)
	}
	return path
}

const trivialProgram = `proc main() {
  print 1;
}
`

func TestDumpParsedPrintsAST(t *testing.T) {
	resetDebugFlags()
	path := writeTempBX(t, trivialProgram)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"build", "--dump-parsed", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v, stderr=%s", err, errOut.String())
	}
	if !strings.Contains(out.String(), "proc main") {
		t.Fatalf("expected the dumped AST to mention proc main, got %q", out.String())
	}
}

func TestDumpRTLPrintsLoweredForm(t *testing.T) {
	resetDebugFlags()
	path := writeTempBX(t, trivialProgram)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"build", "--dump-rtl", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v, stderr=%s", err, errOut.String())
	}
	if !strings.Contains(out.String(), "main(") {
		t.Fatalf("expected the dumped RTL to mention main(, got %q", out.String())
	}
}

func TestBuildWritesAsmFile(t *testing.T) {
	resetDebugFlags()
	path := writeTempBX(t, trivialProgram)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"build", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v, stderr=%s", err, errOut.String())
	}
	asmPath := strings.TrimSuffix(path, ".bx") + ".s"
	content, err := os.ReadFile(asmPath)
	if err != nil {
		t.Fatalf("expected %s to be written: %v", asmPath, err)
	}
	if !strings.Contains(string(content), "main:") {
		t.Fatalf("expected the .s file to contain a main: label, got %q", string(content))
	}
}

func TestAsmOutputFilenameStripsBxExtension(t *testing.T) {
	if got := asmOutputFilename("prog.bx"); got != "prog.s" {
		t.Errorf("asmOutputFilename(prog.bx) = %q, want prog.s", got)
	}
	if got := asmOutputFilename("noext"); got != "noext.s" {
		t.Errorf("asmOutputFilename(noext) = %q, want noext.s", got)
	}
}
