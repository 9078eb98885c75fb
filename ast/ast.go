package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/thiremani/clift/token"
)

// The base Node interface
type Node interface {
	Kind() Kind
	Tok() token.Token
	SetTok(tok token.Token)
	String() string
	// Parent is nil for a root until Link has run.
	Parent() Node
	// Tag is the user type assigned by the grammar checker, "" if none.
	Tag() string
	SetTag(tag string)
	// Field returns a named field for the grammar checker. Values are Node,
	// []Node, []Pair, string, int64, float64 or nil.
	Field(name string) (any, bool)
	Children() []Node
	setParent(p Node)
}

// Pair is one entry of a paired list: hash pairs, optional parameters,
// keyword parameters and elsif clauses.
type Pair struct {
	Key   Node
	Value Node
}

type base struct {
	Token  token.Token
	parent Node
	tag    string
}

func (b *base) Tok() token.Token       { return b.Token }
func (b *base) SetTok(tok token.Token) { b.Token = tok }
func (b *base) Parent() Node           { return b.parent }
func (b *base) setParent(p Node)       { b.parent = p }
func (b *base) Tag() string            { return b.tag }
func (b *base) SetTag(tag string)      { b.tag = tag }

func opt[T interface {
	*U
	Node
}, U any](n T) any {
	if n == nil {
		return nil
	}
	return n
}

func optNode(n Node) any {
	if n == nil {
		return nil
	}
	return n
}

func names(ns []*Name) []Node {
	out := make([]Node, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}

func pairNodes(ps []Pair) []Node {
	var out []Node
	for _, p := range ps {
		if p.Key != nil {
			out = append(out, p.Key)
		}
		if p.Value != nil {
			out = append(out, p.Value)
		}
	}
	return out
}

func appendNodes(out []Node, ns ...Node) []Node {
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func join(ns []Node, sep string) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = str(n)
	}
	return strings.Join(parts, sep)
}

func str(n Node) string {
	if n == nil {
		return ""
	}
	return n.String()
}

// Name covers identifiers, variable calls, constants, reserved words,
// labels, instance variables and global variables.
type Name struct {
	base
	kind Kind
	Name string
}

func (n *Name) Kind() Kind { return n.kind }
func (n *Name) String() string {
	if n.kind == LabelKind {
		return n.Name + ":"
	}
	return n.Name
}
func (n *Name) Children() []Node { return nil }
func (n *Name) Field(name string) (any, bool) {
	if name == "name" {
		return n.Name, true
	}
	return nil, false
}

// Number holds an int64 or a float64.
type Number struct {
	base
	Value any
}

func (n *Number) Kind() Kind       { return NumberKind }
func (n *Number) Children() []Node { return nil }
func (n *Number) String() string {
	switch v := n.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	}
	return "?"
}
func (n *Number) Field(name string) (any, bool) {
	if name == "value" {
		return n.Value, true
	}
	return nil, false
}

// IsFloat reports whether the literal is a floating point number.
func (n *Number) IsFloat() bool {
	_, ok := n.Value.(float64)
	return ok
}

type StringLiteral struct {
	base
	Value string
}

func (s *StringLiteral) Kind() Kind       { return StringLiteralKind }
func (s *StringLiteral) Children() []Node { return nil }
func (s *StringLiteral) String() string   { return strconv.Quote(s.Value) }
func (s *StringLiteral) Field(name string) (any, bool) {
	if name == "value" {
		return s.Value, true
	}
	return nil, false
}

type SymbolLiteral struct {
	base
	Name string
}

func (s *SymbolLiteral) Kind() Kind       { return SymbolLiteralKind }
func (s *SymbolLiteral) Children() []Node { return nil }
func (s *SymbolLiteral) String() string   { return ":" + s.Name }
func (s *SymbolLiteral) Field(name string) (any, bool) {
	if name == "name" {
		return s.Name, true
	}
	return nil, false
}

type Super struct {
	base
}

func (s *Super) Kind() Kind                    { return SuperKind }
func (s *Super) Children() []Node              { return nil }
func (s *Super) String() string                { return "super" }
func (s *Super) Field(name string) (any, bool) { return nil, false }

// Binary is also used for ranges (Dots) and assignments (Assign).
type Binary struct {
	base
	kind  Kind
	Left  Node
	Op    string
	Right Node
}

func (b *Binary) Kind() Kind       { return b.kind }
func (b *Binary) Children() []Node { return appendNodes(nil, b.Left, b.Right) }
func (b *Binary) String() string {
	if b.kind == DotsKind {
		return "(" + str(b.Left) + b.Op + str(b.Right) + ")"
	}
	if b.kind == AssignKind {
		return str(b.Left) + " " + b.Op + " " + str(b.Right)
	}
	return "(" + str(b.Left) + " " + b.Op + " " + str(b.Right) + ")"
}
func (b *Binary) Field(name string) (any, bool) {
	switch name {
	case "left":
		return optNode(b.Left), true
	case "op":
		return b.Op, true
	case "right":
		return optNode(b.Right), true
	}
	return nil, false
}

// Unary operators use the method spelling: "-@", "+@", "!".
type Unary struct {
	base
	Op      string
	Operand Node
}

func (u *Unary) Kind() Kind       { return UnaryKind }
func (u *Unary) Children() []Node { return appendNodes(nil, u.Operand) }
func (u *Unary) String() string {
	return "(" + strings.TrimSuffix(u.Op, "@") + str(u.Operand) + ")"
}
func (u *Unary) Field(name string) (any, bool) {
	switch name {
	case "op":
		return u.Op, true
	case "operand":
		return optNode(u.Operand), true
	}
	return nil, false
}

type Paren struct {
	base
	Expression Node
}

func (p *Paren) Kind() Kind       { return ParenKind }
func (p *Paren) Children() []Node { return appendNodes(nil, p.Expression) }
func (p *Paren) String() string   { return "(" + str(p.Expression) + ")" }
func (p *Paren) Field(name string) (any, bool) {
	if name == "expression" {
		return optNode(p.Expression), true
	}
	return nil, false
}

type ArrayLiteral struct {
	base
	Elements []Node
}

func (a *ArrayLiteral) Kind() Kind       { return ArrayLiteralKind }
func (a *ArrayLiteral) Children() []Node { return appendNodes(nil, a.Elements...) }
func (a *ArrayLiteral) String() string   { return "[" + join(a.Elements, ", ") + "]" }
func (a *ArrayLiteral) Field(name string) (any, bool) {
	if name == "elements" {
		return a.Elements, true
	}
	return nil, false
}

type HashLiteral struct {
	base
	Pairs []Pair
}

func (h *HashLiteral) Kind() Kind       { return HashLiteralKind }
func (h *HashLiteral) Children() []Node { return pairNodes(h.Pairs) }
func (h *HashLiteral) String() string {
	var out bytes.Buffer
	out.WriteString("{")
	for i, p := range h.Pairs {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(str(p.Key))
		out.WriteString(" ")
		out.WriteString(str(p.Value))
	}
	out.WriteString("}")
	return out.String()
}
func (h *HashLiteral) Field(name string) (any, bool) {
	if name == "pairs" {
		return h.Pairs, true
	}
	return nil, false
}

// ConstPathRef is Scope::Name, or ::Name when Scope is nil.
type ConstPathRef struct {
	base
	Scope Node
	Name  *Name
}

func (c *ConstPathRef) Kind() Kind       { return ConstPathRefKind }
func (c *ConstPathRef) Children() []Node { return appendNodes(nil, c.Scope, nodeOf(c.Name)) }
func (c *ConstPathRef) String() string   { return str(c.Scope) + "::" + c.Name.String() }
func (c *ConstPathRef) Field(name string) (any, bool) {
	switch name {
	case "scope":
		return optNode(c.Scope), true
	case "name":
		return opt(c.Name), true
	}
	return nil, false
}

type ArrayRef struct {
	base
	Array   Node
	Indexes []Node
}

func (a *ArrayRef) Kind() Kind { return ArrayRefKind }
func (a *ArrayRef) Children() []Node {
	return appendNodes(appendNodes(nil, a.Array), a.Indexes...)
}
func (a *ArrayRef) String() string { return str(a.Array) + "[" + join(a.Indexes, ", ") + "]" }
func (a *ArrayRef) Field(name string) (any, bool) {
	switch name {
	case "array":
		return optNode(a.Array), true
	case "indexes":
		return a.Indexes, true
	}
	return nil, false
}

// Call is a method call; Command is a call written without parentheses.
type Call struct {
	base
	kind     Kind
	Receiver Node
	Op       string
	Name     *Name
	Args     []Node
	BlockArg Node
	Block    *Block
}

func (c *Call) Kind() Kind { return c.kind }
func (c *Call) Children() []Node {
	out := appendNodes(nil, c.Receiver, nodeOf(c.Name))
	out = appendNodes(out, c.Args...)
	return appendNodes(out, c.BlockArg, nodeOf(c.Block))
}
func (c *Call) String() string {
	var out bytes.Buffer
	if c.Receiver != nil {
		out.WriteString(c.Receiver.String())
		out.WriteString(c.Op)
	}
	out.WriteString(c.Name.String())
	if len(c.Args) > 0 || c.Block == nil {
		out.WriteString("(")
		out.WriteString(join(c.Args, ", "))
		out.WriteString(")")
	}
	if c.Block != nil {
		out.WriteString(" ")
		out.WriteString(c.Block.String())
	}
	return out.String()
}
func (c *Call) Field(name string) (any, bool) {
	switch name {
	case "receiver":
		return optNode(c.Receiver), true
	case "op":
		if c.Op == "" {
			return nil, true
		}
		return c.Op, true
	case "name":
		return opt(c.Name), true
	case "args":
		return c.Args, true
	case "block_arg":
		return optNode(c.BlockArg), true
	case "block":
		return opt(c.Block), true
	}
	return nil, false
}

// Conditional ops: "if", "unless", "if_mod", "unless_mod", "ifop".
type Conditional struct {
	base
	Op    string
	Cond  Node
	Then  Node
	Elsif []Pair
	Else  Node
}

func (c *Conditional) Kind() Kind { return ConditionalKind }
func (c *Conditional) Children() []Node {
	out := appendNodes(nil, c.Cond, c.Then)
	out = append(out, pairNodes(c.Elsif)...)
	return appendNodes(out, c.Else)
}
func (c *Conditional) String() string {
	if c.Op == "ifop" {
		return "(" + str(c.Cond) + " ? " + str(c.Then) + " : " + str(c.Else) + ")"
	}
	var out bytes.Buffer
	out.WriteString(strings.TrimSuffix(c.Op, "_mod") + " " + str(c.Cond) + "; " + str(c.Then))
	for _, p := range c.Elsif {
		out.WriteString("; elsif " + str(p.Key) + "; " + str(p.Value))
	}
	if c.Else != nil {
		out.WriteString("; else " + str(c.Else))
	}
	out.WriteString("; end")
	return out.String()
}
func (c *Conditional) Field(name string) (any, bool) {
	switch name {
	case "op":
		return c.Op, true
	case "cond":
		return optNode(c.Cond), true
	case "then":
		return optNode(c.Then), true
	case "all_elsif":
		return c.Elsif, true
	case "else":
		return optNode(c.Else), true
	}
	return nil, false
}

// Loop ops: "while", "until", "while_mod", "until_mod".
type Loop struct {
	base
	Op   string
	Cond Node
	Body Node
}

func (l *Loop) Kind() Kind       { return LoopKind }
func (l *Loop) Children() []Node { return appendNodes(nil, l.Cond, l.Body) }
func (l *Loop) String() string {
	return strings.TrimSuffix(l.Op, "_mod") + " " + str(l.Cond) + "; " + str(l.Body) + "; end"
}
func (l *Loop) Field(name string) (any, bool) {
	switch name {
	case "op":
		return l.Op, true
	case "cond":
		return optNode(l.Cond), true
	case "body":
		return optNode(l.Body), true
	}
	return nil, false
}

type ForLoop struct {
	base
	Vars []*Name
	Set  Node
	Body Node
}

func (f *ForLoop) Kind() Kind { return ForLoopKind }
func (f *ForLoop) Children() []Node {
	return appendNodes(names(f.Vars), f.Set, f.Body)
}
func (f *ForLoop) String() string {
	return "for " + join(names(f.Vars), ", ") + " in " + str(f.Set) + "; " + str(f.Body) + "; end"
}
func (f *ForLoop) Field(name string) (any, bool) {
	switch name {
	case "vars":
		return names(f.Vars), true
	case "set":
		return optNode(f.Set), true
	case "body":
		return optNode(f.Body), true
	}
	return nil, false
}

type Return struct {
	base
	Values []Node
}

func (r *Return) Kind() Kind       { return ReturnKind }
func (r *Return) Children() []Node { return appendNodes(nil, r.Values...) }
func (r *Return) String() string {
	if len(r.Values) == 0 {
		return "return"
	}
	return "return " + join(r.Values, ", ")
}
func (r *Return) Field(name string) (any, bool) {
	if name == "values" {
		return r.Values, true
	}
	return nil, false
}

// Break ops: "break", "next", "redo", "retry".
type Break struct {
	base
	Op     string
	Values []Node
}

func (b *Break) Kind() Kind       { return BreakKind }
func (b *Break) Children() []Node { return appendNodes(nil, b.Values...) }
func (b *Break) String() string {
	if len(b.Values) == 0 {
		return b.Op
	}
	return b.Op + " " + join(b.Values, ", ")
}
func (b *Break) Field(name string) (any, bool) {
	switch name {
	case "op":
		return b.Op, true
	case "values":
		return b.Values, true
	}
	return nil, false
}

type Exprs struct {
	base
	Expressions []Node
}

func (e *Exprs) Kind() Kind       { return ExprsKind }
func (e *Exprs) Children() []Node { return appendNodes(nil, e.Expressions...) }
func (e *Exprs) String() string   { return join(e.Expressions, "; ") }
func (e *Exprs) Field(name string) (any, bool) {
	if name == "expressions" {
		return e.Expressions, true
	}
	return nil, false
}

// Parameters is shared by blocks, lambdas and method definitions.
type Parameters struct {
	Params          []*Name
	Optionals       []Pair
	RestOfParams    *Name
	ParamsAfterRest []*Name
	Keywords        []Pair
	RestOfKeywords  *Name
	BlockParam      *Name
}

// Arity counts the plain positional parameters.
func (p *Parameters) Arity() int { return len(p.Params) }

func (p *Parameters) children() []Node {
	out := names(p.Params)
	out = append(out, pairNodes(p.Optionals)...)
	out = appendNodes(out, nodeOf(p.RestOfParams))
	out = append(out, names(p.ParamsAfterRest)...)
	out = append(out, pairNodes(p.Keywords)...)
	return appendNodes(out, nodeOf(p.RestOfKeywords), nodeOf(p.BlockParam))
}

func (p *Parameters) field(name string) (any, bool) {
	switch name {
	case "params":
		return names(p.Params), true
	case "optionals":
		return p.Optionals, true
	case "rest_of_params":
		return opt(p.RestOfParams), true
	case "params_after_rest":
		return names(p.ParamsAfterRest), true
	case "keywords":
		return p.Keywords, true
	case "rest_of_keywords":
		return opt(p.RestOfKeywords), true
	case "block_param":
		return opt(p.BlockParam), true
	}
	return nil, false
}

func (p *Parameters) String() string {
	return join(names(p.Params), ", ")
}

// Block is a do/brace block, or a lambda when its kind is LambdaKind.
type Block struct {
	base
	kind Kind
	Parameters
	Body   Node
	Rescue *Rescue
}

func (b *Block) Kind() Kind { return b.kind }
func (b *Block) Children() []Node {
	return appendNodes(b.Parameters.children(), b.Body, nodeOf(b.Rescue))
}
func (b *Block) String() string {
	if b.kind == LambdaKind {
		return "->(" + b.Parameters.String() + ") { " + str(b.Body) + " }"
	}
	if len(b.Params) == 0 {
		return "{ " + str(b.Body) + " }"
	}
	return "{|" + b.Parameters.String() + "| " + str(b.Body) + " }"
}
func (b *Block) Field(name string) (any, bool) {
	switch name {
	case "body":
		return optNode(b.Body), true
	case "rescue":
		return opt(b.Rescue), true
	}
	return b.Parameters.field(name)
}

type Def struct {
	base
	Parameters
	Singular Node
	Name     *Name
	Body     Node
	Rescue   *Rescue
}

func (d *Def) Kind() Kind { return DefKind }
func (d *Def) Children() []Node {
	out := appendNodes(nil, d.Singular, nodeOf(d.Name))
	out = append(out, d.Parameters.children()...)
	return appendNodes(out, d.Body, nodeOf(d.Rescue))
}
func (d *Def) String() string {
	var out bytes.Buffer
	out.WriteString("def ")
	if d.Singular != nil {
		out.WriteString(d.Singular.String() + ".")
	}
	out.WriteString(d.Name.String())
	out.WriteString("(" + d.Parameters.String() + ") ")
	out.WriteString(str(d.Body))
	out.WriteString(" end")
	return out.String()
}
func (d *Def) Field(name string) (any, bool) {
	switch name {
	case "singular":
		return optNode(d.Singular), true
	case "name":
		return opt(d.Name), true
	case "body":
		return optNode(d.Body), true
	case "rescue":
		return opt(d.Rescue), true
	}
	return d.Parameters.field(name)
}

type Rescue struct {
	base
	Types        []Node
	Parameter    *Name
	Body         Node
	NestedRescue *Rescue
	Else         Node
	Ensure       Node
}

func (r *Rescue) Kind() Kind { return RescueKind }
func (r *Rescue) Children() []Node {
	out := appendNodes(nil, r.Types...)
	return appendNodes(out, nodeOf(r.Parameter), r.Body, nodeOf(r.NestedRescue), r.Else, r.Ensure)
}
func (r *Rescue) String() string {
	s := "rescue " + join(r.Types, ", ")
	if r.Parameter != nil {
		s += " => " + r.Parameter.String()
	}
	return s + "; " + str(r.Body)
}
func (r *Rescue) Field(name string) (any, bool) {
	switch name {
	case "types":
		return r.Types, true
	case "parameter":
		return opt(r.Parameter), true
	case "body":
		return optNode(r.Body), true
	case "nested_rescue":
		return opt(r.NestedRescue), true
	case "else":
		return optNode(r.Else), true
	case "ensure":
		return optNode(r.Ensure), true
	}
	return nil, false
}

type BeginEnd struct {
	base
	Body   Node
	Rescue *Rescue
}

func (b *BeginEnd) Kind() Kind       { return BeginEndKind }
func (b *BeginEnd) Children() []Node { return appendNodes(nil, b.Body, nodeOf(b.Rescue)) }
func (b *BeginEnd) String() string   { return "begin; " + str(b.Body) + "; end" }
func (b *BeginEnd) Field(name string) (any, bool) {
	switch name {
	case "body":
		return optNode(b.Body), true
	case "rescue":
		return opt(b.Rescue), true
	}
	return nil, false
}

// ModuleDef is a module definition, or a class definition when its kind
// is ClassDefKind.
type ModuleDef struct {
	base
	kind       Kind
	Name       Node
	Superclass Node
	Body       Node
	Rescue     *Rescue
}

func (m *ModuleDef) Kind() Kind { return m.kind }
func (m *ModuleDef) Children() []Node {
	return appendNodes(nil, m.Name, m.Superclass, m.Body, nodeOf(m.Rescue))
}
func (m *ModuleDef) String() string {
	kw := "module "
	if m.kind == ClassDefKind {
		kw = "class "
	}
	s := kw + str(m.Name)
	if m.Superclass != nil {
		s += " < " + m.Superclass.String()
	}
	return s + "; " + str(m.Body) + "; end"
}
func (m *ModuleDef) Field(name string) (any, bool) {
	switch name {
	case "name":
		return optNode(m.Name), true
	case "body":
		return optNode(m.Body), true
	case "rescue":
		return opt(m.Rescue), true
	case "superclass":
		if m.kind == ClassDefKind {
			return optNode(m.Superclass), true
		}
	}
	return nil, false
}

type Program struct {
	base
	Elements []Node
}

func (p *Program) Kind() Kind       { return ProgramKind }
func (p *Program) Children() []Node { return appendNodes(nil, p.Elements...) }
func (p *Program) String() string   { return join(p.Elements, "\n") }
func (p *Program) Field(name string) (any, bool) {
	if name == "elements" {
		return p.Elements, true
	}
	return nil, false
}

// nodeOf converts a possibly nil typed pointer into a Node interface that
// is nil when the pointer is.
func nodeOf[T interface {
	*U
	Node
}, U any](n T) Node {
	if n == nil {
		return nil
	}
	return n
}
