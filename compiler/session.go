package compiler

import (
	"fmt"
	"runtime"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/token"
)

// Options configures code generation.
type Options struct {
	Headers       []string
	OpenCLHeaders []string
}

// DefaultOptions returns the headers every unit includes on this host.
func DefaultOptions() Options {
	ocl := "#include <CL/cl.h>"
	if runtime.GOOS == "darwin" {
		ocl = "#include <OpenCL/opencl.h>"
	}
	return Options{
		Headers: []string{
			"#include <stdint.h>",
			"#include <stdlib.h>",
			"#include <time.h>",
			"#include <math.h>",
			"#include <stdio.h>",
		},
		OpenCLHeaders: []string{ocl},
	}
}

// Unit is one generated C translation unit and the functions it exports.
// A unit with errors must not be built.
type Unit struct {
	Backend Backend
	Source  string
	Exports []Export
	Errors  []*token.CompileError
}

// Session compiles entry methods and everything they call into one unit.
// It is not safe for concurrent use.
type Session struct {
	Checker *TypeChecker
	Options Options
}

func NewSession(backend Backend, src Source, oracle Oracle, opts Options) *Session {
	return &Session{
		Checker: NewTypeChecker(backend, src, oracle),
		Options: opts,
	}
}

// Compile type checks the entries, failing on the first grammar or type
// error, then generates C for the reachable call graph. Generation errors
// are reported in the unit.
func (s *Session) Compile(entries ...Entry) (*Unit, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no methods specified")
	}
	tc := s.Checker
	roots := make([]ast.Node, 0, len(entries))
	for _, e := range entries {
		if _, err := tc.Typecheck(e); err != nil {
			return nil, err
		}
		t, _ := tc.Tree(e)
		roots = append(roots, t.Root)
	}
	log.Infof("compiling %d entries, %d methods reached", len(entries), len(tc.Trees()))

	gen := NewCodeGen(tc, s.Options, roots...)
	unit := &Unit{Backend: tc.backend}
	unit.Source = gen.Generate(tc.Trees())
	unit.Exports = gen.Exports(roots)
	unit.Errors = gen.Errors()
	for _, err := range unit.Errors {
		log.Errorf("%s", err)
	}
	return unit, nil
}
