package compiler

import (
	"strings"
)

// Sink receives generated code. A line break requested by NL is emitted
// lazily, before the next text, so that Down and Up can indent it.
type Sink interface {
	Write(code ...string)
	NL()
	Down()
	Up()
}

// Printer is an indentation-aware text buffer.
type Printer struct {
	buf     strings.Builder
	level   int
	pending bool
	indent  string
}

// NewPrinter returns a printer indenting by two spaces.
func NewPrinter() *Printer {
	return &Printer{indent: "  "}
}

func (p *Printer) Write(code ...string) {
	if p.pending {
		p.newline()
	}
	for _, c := range code {
		p.buf.WriteString(c)
	}
}

// NL ends the line. A second NL in a row leaves a blank line.
func (p *Printer) NL() {
	if p.pending {
		p.newline()
	}
	p.pending = true
}

// Down starts a new, deeper indented line.
func (p *Printer) Down() {
	p.level++
	p.newline()
}

// Up starts a new, shallower indented line.
func (p *Printer) Up() {
	p.level--
	p.newline()
}

func (p *Printer) newline() {
	p.buf.WriteByte('\n')
	for i := 0; i < p.level; i++ {
		p.buf.WriteString(p.indent)
	}
	p.pending = false
}

// String returns the text printed so far.
func (p *Printer) String() string {
	if p.pending {
		p.newline()
	}
	return p.buf.String()
}

// KernelPrinter prints code as the body of a C string literal. Each line
// of kernel code becomes one string continued with a backslash.
type KernelPrinter struct {
	out *Printer
}

func NewKernelPrinter(out *Printer) *KernelPrinter {
	return &KernelPrinter{out: out}
}

var kernelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func (k *KernelPrinter) Write(code ...string) {
	for _, c := range code {
		k.out.Write(kernelEscaper.Replace(c))
	}
}

func (k *KernelPrinter) NL() {
	k.out.Write(`"\`)
	k.out.NL()
	k.out.Write(`"`)
}

func (k *KernelPrinter) Down() {
	k.out.Write(`"\`)
	k.out.Down()
	k.out.Write(`"`)
}

func (k *KernelPrinter) Up() {
	k.out.Write(`"\`)
	k.out.Up()
	k.out.Write(`"`)
}
