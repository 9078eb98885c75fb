package syntax

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thiremani/clift/ast"
)

// Expr is a grammar constraint. At the top of a rule it describes a node;
// inside Fields it describes a field value.
type Expr interface {
	String() string
	expr()
}

type kindExpr struct{ kind ast.Kind }

// Kind matches a node of kind k (or below) that also passes k's own rule.
func Kind(k ast.Kind) Expr { return kindExpr{k} }

type tagExpr struct{ name string }

// Tag matches the user type name. The node is tagged with name before its
// rule is checked, and the previous tag is restored on failure.
func Tag(name string) Expr { return tagExpr{name} }

type orExpr struct{ alts []Expr }

// Or is ordered choice: the first matching alternative wins.
func Or(alts ...Expr) Expr {
	if len(alts) == 1 {
		return alts[0]
	}
	return orExpr{alts}
}

type withExpr struct{ parts []Expr }

// With refines base with field constraints: base + {field: con, ...}.
func With(base Expr, fs ...Field) Expr {
	return withExpr{[]Expr{base, Fields(fs...)}}
}

// Field is one named constraint of a Fields expression.
type Field struct {
	Name string
	Con  Expr
}

// F builds a Field.
func F(name string, con Expr) Field { return Field{name, con} }

type fieldsExpr struct{ fields []Field }

// Fields constrains the named fields of a node. Fields not listed are not
// checked.
func Fields(fs ...Field) Expr { return fieldsExpr{fs} }

type optExpr struct{ x Expr }

// Opt accepts an absent value or one matching x.
func Opt(x Expr) Expr { return optExpr{x} }

type arrayExpr struct{ elems []Expr }

// Array matches a list. With no argument the list must be empty; with one,
// every element must match it; with more, the leading ones are matched in
// order (Opt ones may be skipped) and the last one matches the rest.
func Array(elems ...Expr) Expr { return arrayExpr{elems} }

type pairExpr struct{ key, value Expr }

// Pair matches an element of a paired list such as hash pairs or elsif
// clauses.
func Pair(key, value Expr) Expr { return pairExpr{key, value} }

type litExpr struct{ value string }

// Lit matches a string-valued field equal to s.
func Lit(s string) Expr { return litExpr{s} }

type nilExpr struct{}

// Nil matches an absent node or an empty list.
var Nil Expr = nilExpr{}

type classExpr struct {
	name  string
	match func(any) bool
}

var (
	// String matches a string-valued field.
	String Expr = classExpr{"String", func(v any) bool { _, ok := v.(string); return ok }}
	// Symbol matches an operator or other symbolic field.
	Symbol Expr = classExpr{"Symbol", func(v any) bool { _, ok := v.(string); return ok }}
	// Numeric matches a number-valued field.
	Numeric Expr = classExpr{"Numeric", func(v any) bool {
		switch v.(type) {
		case int64, float64:
			return true
		}
		return false
	}}
)

func (kindExpr) expr()   {}
func (tagExpr) expr()    {}
func (orExpr) expr()     {}
func (withExpr) expr()   {}
func (fieldsExpr) expr() {}
func (optExpr) expr()    {}
func (arrayExpr) expr()  {}
func (pairExpr) expr()   {}
func (litExpr) expr()    {}
func (nilExpr) expr()    {}
func (classExpr) expr()  {}

func (e kindExpr) String() string { return e.kind.String() }
func (e tagExpr) String() string  { return e.name }
func (e orExpr) String() string   { return joinExprs(e.alts, " | ") }
func (e withExpr) String() string { return joinExprs(e.parts, " + ") }
func (e fieldsExpr) String() string {
	parts := make([]string, len(e.fields))
	for i, f := range e.fields {
		parts[i] = f.Name + ": " + f.Con.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (e optExpr) String() string   { return "(" + e.x.String() + ")" }
func (e arrayExpr) String() string { return "[" + joinExprs(e.elems, ", ") + "]" }
func (e pairExpr) String() string  { return fmt.Sprintf("%s * %s", e.key, e.value) }
func (e litExpr) String() string   { return strconv.Quote(e.value) }
func (nilExpr) String() string     { return "nil" }
func (e classExpr) String() string { return e.name }

func joinExprs(es []Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}
