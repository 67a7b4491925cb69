package asm

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raymyers/bxcc/pkg/rtl"
)

// Printer writes a Program as AT&T-syntax AMD64 assembly (.s output).
type Printer struct {
	w      io.Writer
	locate func(Pseudo) Location
}

// NewPrinter creates an assembly printer writing to w. locate resolves
// every Pseudo a Line's template references to its final Location; the
// translator is expected to have bound every pseudo it emits, since
// register allocation is out of scope for this compiler.
func NewPrinter(w io.Writer, locate func(Pseudo) Location) *Printer {
	return &Printer{w: w, locate: locate}
}

// PrintProgram writes the data section (if any globals exist) followed
// by each callable's expanded instruction stream.
func (p *Printer) PrintProgram(prog *Program) {
	if len(prog.Globals) > 0 {
		fmt.Fprintln(p.w, "\t.data")
		for _, g := range prog.Globals {
			fmt.Fprintf(p.w, "\t.globl %s\n%s:\n\t.quad %d\n", g.Name, g.Name, g.Init)
			if g.Size > 8 {
				fmt.Fprintf(p.w, "\t.zero %d\n", g.Size-8)
			}
		}
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, "\t.text")
	for _, fn := range prog.Callables {
		p.PrintCallable(&fn)
	}
}

// PrintCallable expands and writes one callable's lines, eliding a
// trailing unconditional jump to a label that immediately follows it —
// the only scheduling-level optimization this backend performs.
func (p *Printer) PrintCallable(fn *Callable) {
	fmt.Fprintf(p.w, "\t.globl %s\n%s:\n", fn.Name, fn.Name)
	for i, line := range fn.Lines {
		expanded := p.expand(fn.Name, line)
		if elidable(expanded) && i+1 < len(fn.Lines) {
			if next := labelDef(p.expand(fn.Name, fn.Lines[i+1])); next != "" && next == jumpTarget(expanded) {
				continue
			}
		}
		fmt.Fprintln(p.w, expanded)
	}
}

func elidable(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "jmp ")
}

func jumpTarget(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "jmp"))
}

func labelDef(line string) string {
	t := strings.TrimSpace(line)
	if strings.HasSuffix(t, ":") {
		return strings.TrimSuffix(t, ":")
	}
	return ""
}

// FuncLabel builds the local label name for label l inside funcName, in
// the form `.L<funcName>.<labelId>`.
func FuncLabel(funcName string, l rtl.Label) string {
	return ".L" + funcName + "." + strconv.Itoa(int(l))
}

func (p *Printer) expand(funcName string, line Line) string {
	tmpl := line.Template
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '`' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}
		kind := tmpl[i+1]
		if kind == '`' {
			b.WriteByte('`')
			i++
			continue
		}
		j := i + 2
		start := j
		for j < len(tmpl) && tmpl[j] >= '0' && tmpl[j] <= '9' {
			j++
		}
		if j == start {
			b.WriteByte(c)
			continue
		}
		idx, _ := strconv.Atoi(tmpl[start:j])
		switch kind {
		case 's':
			b.WriteString(p.resolve(line.Use, idx, tmpl))
		case 'd':
			b.WriteString(p.resolve(line.Def, idx, tmpl))
		case 'j':
			if idx >= len(line.JumpDests) {
				panic(fmt.Sprintf("asm: unresolved jump placeholder `j%d in %q", idx, tmpl))
			}
			b.WriteString(FuncLabel(funcName, line.JumpDests[idx]))
		default:
			b.WriteByte(c)
			continue
		}
		i = j - 1
	}
	return b.String()
}

func (p *Printer) resolve(vec []Pseudo, idx int, tmpl string) string {
	if idx >= len(vec) {
		panic(fmt.Sprintf("asm: unresolved pseudo placeholder in %q", tmpl))
	}
	loc := p.locate(vec[idx])
	if loc.Kind == Unbound {
		panic(fmt.Sprintf("asm: pseudo %d has no bound location", vec[idx]))
	}
	return loc.String()
}
