package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raymyers/bxcc/pkg/asm"
	"github.com/raymyers/bxcc/pkg/asmgen"
	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/lexer"
	"github.com/raymyers/bxcc/pkg/parser"
	"github.com/raymyers/bxcc/pkg/rtl"
	"github.com/raymyers/bxcc/pkg/rtlgen"
	"github.com/raymyers/bxcc/pkg/typecheck"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations.
var (
	dumpParsed bool
	dumpRTL    bool
	dumpAsm    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Normalize CompCert-style single-dash flags (-dump-rtl) to
	// double-dash (--dump-rtl) for pflag compatibility, the way
	// ralph-cc's normalizeFlags does.
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

var debugFlagNames = []string{"dump-parsed", "dump-rtl", "dump-asm"}

// normalizeFlags converts CompCert-style single-dash flags like
// -dump-rtl to --dump-rtl.
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bxcc",
		Short:         "bxcc is the BX language compiler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.AddCommand(newBuildCmd(out, errOut))
	return rootCmd
}

func newBuildCmd(out, errOut io.Writer) *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [file]",
		Short: "Compile a BX source file to AMD64 assembly",
		Long: `build lexes, parses, type-checks, lowers to RTL, and translates
to AMD64 assembly, emitting file.s next to the given file.bx.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			if dumpParsed {
				return doDumpParsed(filename, out, errOut)
			}
			if dumpRTL {
				return doDumpRTL(filename, out, errOut)
			}
			if dumpAsm {
				return doDumpAsm(filename, out, errOut)
			}
			return compile(filename, errOut)
		},
	}
	buildCmd.Flags().BoolVar(&dumpParsed, "dump-parsed", false, "Dump the type-checked AST and exit")
	buildCmd.Flags().BoolVar(&dumpRTL, "dump-rtl", false, "Dump the lowered RTL and exit")
	buildCmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "Also print the generated assembly to stdout")
	return buildCmd
}

// parseAndCheck reads, lexes, parses, and type-checks filename, reporting
// each pkg/parser and pkg/typecheck diagnostic to errOut prefixed with
// the filename, in "file: message" form.
func parseAndCheck(filename string, errOut io.Writer) (*bxast.Program, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "bxcc: error reading %s: %v\n", filename, err)
		return nil, err
	}

	l := lexer.New(string(content))
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		for _, e := range p.Errors() {
			fmt.Fprintf(errOut, "%s: %s\n", filename, e)
		}
		return nil, fmt.Errorf("parsing failed with %d errors", len(p.Errors()))
	}

	checked, errs := typecheck.Check(program)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(errOut, "%s: %s\n", filename, e)
		}
		return nil, fmt.Errorf("type checking failed with %d errors", len(errs))
	}
	return checked, nil
}

// lower parses, checks, and lowers filename to RTL.
func lower(filename string, errOut io.Writer) (*rtl.Program, error) {
	program, err := parseAndCheck(filename, errOut)
	if err != nil {
		return nil, err
	}
	rtlProg, errs := rtlgen.Lower(program)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(errOut, "%s: %s\n", filename, e)
		}
		return nil, fmt.Errorf("lowering failed with %d errors", len(errs))
	}
	return rtlProg, nil
}

// doDumpParsed parses and type-checks filename, printing the resulting
// AST to out (--dump-parsed).
func doDumpParsed(filename string, out, errOut io.Writer) error {
	program, err := parseAndCheck(filename, errOut)
	if err != nil {
		return err
	}
	bxast.NewPrinter(out).PrintProgram(program)
	return nil
}

// doDumpRTL lowers filename to RTL and prints it to out (--dump-rtl).
func doDumpRTL(filename string, out, errOut io.Writer) error {
	rtlProg, err := lower(filename, errOut)
	if err != nil {
		return err
	}
	rtl.NewPrinter(out).PrintProgram(rtlProg)
	return nil
}

// doDumpAsm compiles filename to assembly, echoing it to out in addition
// to writing the .s file (--dump-asm).
func doDumpAsm(filename string, out, errOut io.Writer) error {
	asmProg, locate, err := compileToAsm(filename, errOut)
	if err != nil {
		return err
	}
	asm.NewPrinter(out, locate).PrintProgram(asmProg)
	return writeAsmFile(filename, asmProg, locate, errOut)
}

// compileToAsm runs the full pipeline and returns the assembled Program
// and the locate function its Printer needs.
func compileToAsm(filename string, errOut io.Writer) (*asm.Program, func(asm.Pseudo) asm.Location, error) {
	rtlProg, err := lower(filename, errOut)
	if err != nil {
		return nil, nil, err
	}
	asmProg, locate := asmgen.NewLocator(rtlProg)
	return asmProg, locate, nil
}

// compile runs the full pipeline and writes the resulting .s file.
func compile(filename string, errOut io.Writer) error {
	fmt.Fprintf(errOut, "bxcc: compiling %s\n", filename)
	asmProg, locate, err := compileToAsm(filename, errOut)
	if err != nil {
		return err
	}
	return writeAsmFile(filename, asmProg, locate, errOut)
}

func writeAsmFile(filename string, asmProg *asm.Program, locate func(asm.Pseudo) asm.Location, errOut io.Writer) error {
	outputFilename := asmOutputFilename(filename)
	outFile, err := os.Create(outputFilename)
	if err != nil {
		fmt.Fprintf(errOut, "bxcc: error creating %s: %v\n", outputFilename, err)
		return err
	}
	defer outFile.Close()
	asm.NewPrinter(outFile, locate).PrintProgram(asmProg)
	return nil
}

// asmOutputFilename returns the output filename for build: input.bx -> input.s.
func asmOutputFilename(filename string) string {
	ext := ".bx"
	if strings.HasSuffix(filename, ext) {
		return filename[:len(filename)-len(ext)] + ".s"
	}
	return filename + ".s"
}
