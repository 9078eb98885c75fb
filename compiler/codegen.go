package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/checker"
	"github.com/thiremani/clift/token"
	"github.com/thiremani/clift/types"
)

type none = struct{}

// GenRules is a layer of code generation rules. The environment of a rule
// is the sink it prints to.
type GenRules = checker.Rules[*CodeGen, Sink, none]

var (
	genRules    = checker.NewRules[*CodeGen, Sink, none]("codegen")
	oclGenRules = genRules.Extend("oclgen")
)

func init() {
	genRules.
		OnTag("typedecl", (*CodeGen).skip).
		OnTag("return_type", (*CodeGen).skip).
		On(ast.NumberKind, (*CodeGen).genNumber).
		On(ast.NameKind, (*CodeGen).genName).
		On(ast.IdentifierOrCallKind, (*CodeGen).genIdentifier).
		On(ast.ConstKind, (*CodeGen).genConst).
		On(ast.ConstPathRefKind, (*CodeGen).genConst).
		On(ast.InstanceVariableKind, (*CodeGen).genIvar).
		On(ast.ExprsKind, (*CodeGen).genExprs).
		On(ast.ArrayLiteralKind, (*CodeGen).genArrayLiteral).
		On(ast.StringLiteralKind, (*CodeGen).genString).
		On(ast.ParenKind, (*CodeGen).genParen).
		On(ast.UnaryKind, (*CodeGen).genUnary).
		On(ast.BinaryKind, (*CodeGen).genBinary).
		On(ast.DotsKind, (*CodeGen).genDots).
		On(ast.ArrayRefKind, (*CodeGen).genArrayRef).
		On(ast.CallKind, (*CodeGen).genCall).
		On(ast.ConditionalKind, (*CodeGen).genConditional).
		On(ast.LoopKind, (*CodeGen).genLoop).
		On(ast.ForLoopKind, (*CodeGen).genForLoop).
		On(ast.ReturnKind, (*CodeGen).genReturn).
		On(ast.BreakKind, (*CodeGen).genBreak).
		On(ast.BlockKind, (*CodeGen).genFunction).
		On(ast.DefKind, (*CodeGen).genFunction)
}

// CodeGen prints C for the trees a TypeChecker has typed. Errors do not
// stop generation; they are collected and reported by Errors.
type CodeGen struct {
	*checker.Engine[*CodeGen, Sink, none]

	tc      *TypeChecker
	opts    Options
	opencl  bool
	public  map[ast.Node]bool
	names   map[ast.Node]string
	counter int
	globals map[ArrayObject]string
	errs    []*token.CompileError
}

// NewCodeGen returns a generator for the trees typed by tc. The roots in
// public keep their names and are exported.
func NewCodeGen(tc *TypeChecker, opts Options, public ...ast.Node) *CodeGen {
	g := &CodeGen{
		tc:      tc,
		opts:    opts,
		opencl:  tc.opencl,
		public:  map[ast.Node]bool{},
		names:   map[ast.Node]string{},
		globals: map[ArrayObject]string{},
	}
	for _, n := range public {
		g.public[n] = true
	}
	rules := genRules
	if g.opencl {
		rules = oclGenRules
	}
	g.Engine = checker.New(rules, g, "codegen")
	return g
}

// Generate prints the whole translation unit: headers, globals,
// prototypes, the backend preamble and one body per tree.
func (g *CodeGen) Generate(trees []*Tree) string {
	p := NewPrinter()
	g.nameGlobals()
	g.headers(p)
	g.declarations(p)
	for _, t := range trees {
		g.prototype(t.Root, p)
	}
	if g.opencl {
		g.oclPreamble(p)
	}
	for _, t := range trees {
		p.NL()
		g.gen(t.Root, p)
	}
	log.Debugf("generated %d functions, %d errors", len(trees), len(g.errs))
	return p.String()
}

// Errors returns the errors found so far.
func (g *CodeGen) Errors() []*token.CompileError { return g.errs }

// FunctionName returns the C name of a def or block.
func (g *CodeGen) FunctionName(n ast.Node) string {
	if d, ok := n.(*ast.Def); ok && g.public[n] {
		return d.Name.Name
	}
	if s, ok := g.names[n]; ok {
		return s
	}
	g.counter++
	var s string
	if d, ok := n.(*ast.Def); ok {
		s = fmt.Sprintf("%s_%d", d.Name.Name, g.counter)
	} else {
		s = fmt.Sprintf("clift_blk%d", g.counter)
	}
	g.names[n] = s
	return s
}

func (g *CodeGen) gen(n ast.Node, out Sink) {
	if _, err := g.Check(n, out); err != nil {
		g.record(err)
	}
}

func (g *CodeGen) record(err error) {
	var ce *token.CompileError
	if errors.As(err, &ce) {
		g.errs = append(g.errs, ce)
		return
	}
	g.errs = append(g.errs, &token.CompileError{Group: g.Group(), Msg: err.Error()})
}

// fail records an error at n and lets generation go on.
func (g *CodeGen) fail(n ast.Node, format string, args ...any) (none, error) {
	g.record(g.Errorf(n, format, args...))
	return none{}, nil
}

// render prints n on its own and returns the text.
func (g *CodeGen) render(n ast.Node) string {
	p := NewPrinter()
	g.gen(n, p)
	return p.String()
}

func (g *CodeGen) typeOf(n ast.Node) types.Type {
	if t, ok := g.tc.TypeOf(n); ok {
		return t
	}
	return types.Dynamic
}

// ctype spells t for the sink being printed to.
func (g *CodeGen) ctype(t types.Type, out Sink) (string, bool) {
	if _, ok := out.(*KernelPrinter); ok {
		return kernelCTypeName(t)
	}
	return CTypeName(t)
}

func (g *CodeGen) nameGlobals() {
	for i, obj := range g.tc.Ivars() {
		g.globals[obj] = fmt.Sprintf("_gvar_%d_", i)
	}
}

func (g *CodeGen) headers(p *Printer) {
	for _, h := range g.opts.Headers {
		p.Write(h)
		p.NL()
	}
	p.NL()
	if g.opencl {
		for _, h := range g.opts.OpenCLHeaders {
			p.Write(h)
			p.NL()
		}
		p.NL()
	}
}

func (g *CodeGen) declarations(p *Printer) {
	ivars := g.tc.Ivars()
	for _, obj := range ivars {
		a, ok := obj.(*CArray)
		if !ok {
			continue
		}
		et, ok := CTypeName(a.Elem)
		if !ok {
			g.record(&token.CompileError{Group: g.Group(), Msg: "bad array element type: " + a.Elem.Name()})
			continue
		}
		p.Write("static ", et, " ", g.globals[obj])
		for _, d := range a.Dims {
			p.Write("[", strconv.Itoa(d), "]")
		}
		p.Write(";")
		p.NL()
	}
	if g.opencl {
		g.oclDeclarations(p)
	}
	if len(ivars) > 0 || g.opencl {
		p.NL()
	}
}

func (g *CodeGen) prototype(n ast.Node, p *Printer) {
	t := g.typeOf(n)
	if types.HasRole(t, types.ForeignRole) {
		return
	}
	mt, ok := types.As[*types.Method](t)
	if !ok {
		g.fail(n, "bad method %s", g.FunctionName(n))
		return
	}
	if !g.public[n] {
		p.Write("static ")
	}
	g.signature(n, g.FunctionName(n), mt, p)
	p.Write(";")
	p.NL()
}

func (g *CodeGen) signature(n ast.Node, fname string, mt *types.Method, out Sink) {
	ret, ok := g.ctype(mt.Ret, out)
	if !ok {
		g.fail(n, "bad result type: %s", mt.Ret.Name())
	}
	out.Write(ret, " ", fname, "(")
	params := paramsOf(n).Params
	if mt.DynParams || len(mt.Params) != len(params) {
		g.fail(n, "bad parameter types")
	} else {
		for i, p := range params {
			if i > 0 {
				out.Write(", ")
			}
			ct, ok := g.ctype(mt.Params[i], out)
			if !ok {
				g.fail(p, "bad parameter type: %s", p.Name)
			}
			out.Write(ct, " ", p.Name)
		}
	}
	out.Write(")")
}

func (g *CodeGen) localDecls(n ast.Node, out Sink) {
	locals, ok := g.tc.LocalVars(n)
	if !ok {
		g.fail(n, "bad function definition or block")
		return
	}
	for _, v := range locals {
		ct, ok := g.ctype(v.Type, out)
		if !ok {
			g.fail(n, "bad type of local variable: %s", v.Name)
			continue
		}
		out.Write(ct, " ", v.Name, ";")
		out.NL()
	}
}

// statementBlock reports whether n prints as a braced statement that
// needs no semicolon, or prints nothing at all.
func (g *CodeGen) statementBlock(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Conditional:
		return n.Op != "ifop"
	case *ast.Loop, *ast.ForLoop:
		return true
	case *ast.Call:
		if n.Name.Name == types.Times && n.Block != nil {
			return true
		}
	}
	switch n.Tag() {
	case "typedecl", "return_type":
		return true
	}
	return false
}

// body prints the statements of a function, loop or branch.
func (g *CodeGen) body(n ast.Node, out Sink) {
	if n == nil {
		return
	}
	g.gen(n, out)
	if _, ok := n.(*ast.Exprs); !ok && !g.statementBlock(n) {
		out.Write(";")
	}
}

func (g *CodeGen) skip(ast.Node, Sink) (none, error) { return none{}, nil }

func (g *CodeGen) genNumber(n ast.Node, out Sink) (none, error) {
	out.Write(n.String())
	return none{}, nil
}

func (g *CodeGen) genName(n ast.Node, out Sink) (none, error) {
	out.Write(n.(*ast.Name).Name)
	return none{}, nil
}

// cLiteral spells a captured value as a C constant.
func cLiteral(v any) (string, bool) {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return ast.Float(v).String(), true
	case float32:
		return ast.Float(float64(v)).String() + "f", true
	case string:
		return cQuote(v), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

var cEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

func cQuote(s string) string {
	return `"` + cEscaper.Replace(s) + `"`
}

// genIdentifier prints a variable, a captured value, or a call to a
// method without arguments.
func (g *CodeGen) genIdentifier(n ast.Node, out Sink) (none, error) {
	name := n.(*ast.Name)
	t := g.typeOf(n)
	if def, ok := types.ResultDef(t); ok {
		if def == nil {
			out.Write(name.Name, "()")
		} else {
			out.Write(g.FunctionName(def), "()")
		}
		return none{}, nil
	}
	if inst, ok := types.As[*types.Instance](t); ok {
		if s, ok := cLiteral(inst.Value); ok {
			out.Write(s)
			return none{}, nil
		}
	}
	out.Write(name.Name)
	return none{}, nil
}

func (g *CodeGen) genConst(n ast.Node, out Sink) (none, error) {
	inst, ok := types.As[*types.Instance](g.typeOf(n))
	if !ok {
		return g.fail(n, "unknown constant")
	}
	s, ok := cLiteral(inst.Value)
	if !ok {
		return g.fail(n, "bad constant: %v", inst.Value)
	}
	out.Write(s)
	return none{}, nil
}

func (g *CodeGen) genIvar(n ast.Node, out Sink) (none, error) {
	if inst, ok := types.As[*types.Instance](g.typeOf(n)); ok {
		if obj, ok := inst.Value.(ArrayObject); ok {
			if name, ok := g.globals[obj]; ok {
				out.Write(name)
				return none{}, nil
			}
		}
	}
	return g.fail(n, "unknown instance variable")
}

func (g *CodeGen) genExprs(n ast.Node, out Sink) (none, error) {
	for _, e := range n.(*ast.Exprs).Expressions {
		g.gen(e, out)
		if !g.statementBlock(e) {
			out.Write(";")
			out.NL()
		}
	}
	return none{}, nil
}

func (g *CodeGen) genArrayLiteral(n ast.Node, out Sink) (none, error) {
	out.Write("{ ")
	for i, e := range n.(*ast.ArrayLiteral).Elements {
		if i > 0 {
			out.Write(", ")
		}
		g.gen(e, out)
	}
	out.Write(" }")
	return none{}, nil
}

func (g *CodeGen) genString(n ast.Node, out Sink) (none, error) {
	out.Write(cQuote(n.(*ast.StringLiteral).Value))
	return none{}, nil
}

func (g *CodeGen) genParen(n ast.Node, out Sink) (none, error) {
	out.Write("(")
	g.gen(n.(*ast.Paren).Expression, out)
	out.Write(")")
	return none{}, nil
}

// genUnary parenthesizes an operand that would otherwise fuse with the
// operator into -- or ++, or bind looser than it.
func (g *CodeGen) genUnary(n ast.Node, out Sink) (none, error) {
	u := n.(*ast.Unary)
	operand := g.render(u.Operand)
	out.Write(strings.TrimSuffix(u.Op, "@"))
	_, binary := u.Operand.(*ast.Binary)
	if binary || strings.HasPrefix(operand, "-") || strings.HasPrefix(operand, "+") {
		out.Write("(", operand, ")")
	} else {
		out.Write(operand)
	}
	return none{}, nil
}

func (g *CodeGen) genBinary(n ast.Node, out Sink) (none, error) {
	b := n.(*ast.Binary)
	g.gen(b.Left, out)
	out.Write(" ", b.Op, " ")
	g.gen(b.Right, out)
	return none{}, nil
}

func (g *CodeGen) genDots(n ast.Node, _ Sink) (none, error) {
	return g.fail(n, "a range object is not available")
}

func (g *CodeGen) genArrayRef(n ast.Node, out Sink) (none, error) {
	a := n.(*ast.ArrayRef)
	g.gen(a.Array, out)
	for _, i := range a.Indexes {
		out.Write("[")
		g.gen(i, out)
		out.Write("]")
	}
	return none{}, nil
}

func (g *CodeGen) genCall(n ast.Node, out Sink) (none, error) {
	c := n.(*ast.Call)
	name := c.Name.Name
	if name == types.Times && c.Block != nil {
		return g.genTimes(c, out)
	}
	if c.Receiver != nil {
		if b, ok := LookupBuiltin(g.typeOf(c.Receiver).Exact(), name); ok {
			if b.C == "" {
				return g.fail(n, "bad call to: %s", name)
			}
			args := make([]string, len(c.Args))
			for i, a := range c.Args {
				args[i] = g.render(a)
			}
			out.Write(b.Expand(g.render(c.Receiver), args...))
			return none{}, nil
		}
	}
	def, ok := types.ResultDef(g.typeOf(n))
	if !ok {
		return g.fail(n, "bad call to: %s", name)
	}
	if def == nil {
		out.Write(name, "(")
	} else {
		out.Write(g.FunctionName(def), "(")
	}
	for i, a := range c.Args {
		if i > 0 {
			out.Write(", ")
		}
		g.gen(a, out)
	}
	out.Write(")")
	return none{}, nil
}

// genTimes prints n.times { |i| ... } as a loop counting i down from n-1.
func (g *CodeGen) genTimes(c *ast.Call, out Sink) (none, error) {
	i := c.Block.Params[0].Name
	it, _ := g.ctype(types.Integer, out)
	out.Write("for (", it, " ", i, " = (")
	g.gen(c.Receiver, out)
	out.Write(") - 1; ", i, " >= 0; ", i, "--) {")
	out.Down()
	g.localDecls(c.Block, out)
	g.body(c.Block.Body, out)
	out.Up()
	out.Write("}")
	out.NL()
	return none{}, nil
}

func (g *CodeGen) genConditional(n ast.Node, out Sink) (none, error) {
	c := n.(*ast.Conditional)
	switch c.Op {
	case "unless", "unless_mod":
		return g.fail(n, "a bad control statement")
	case "ifop":
		out.Write("(")
		g.gen(c.Cond, out)
		out.Write(") ? (")
		g.gen(c.Then, out)
		out.Write(") : (")
		g.gen(c.Else, out)
		out.Write(")")
		return none{}, nil
	}
	out.Write("if (")
	g.gen(c.Cond, out)
	out.Write(") {")
	out.Down()
	g.body(c.Then, out)
	out.Up()
	for _, p := range c.Elsif {
		out.Write("} else if (")
		g.gen(p.Key, out)
		out.Write(") {")
		out.Down()
		g.body(p.Value, out)
		out.Up()
	}
	if c.Else != nil {
		out.Write("} else {")
		out.Down()
		g.body(c.Else, out)
		out.Up()
	}
	out.Write("}")
	out.NL()
	return none{}, nil
}

func (g *CodeGen) genLoop(n ast.Node, out Sink) (none, error) {
	l := n.(*ast.Loop)
	if l.Op != "while" {
		return g.fail(n, "%s is not available", l.Op)
	}
	out.Write("while (")
	g.gen(l.Cond, out)
	out.Write(") {")
	out.Down()
	g.body(l.Body, out)
	out.Up()
	out.Write("}")
	out.NL()
	return none{}, nil
}

func (g *CodeGen) genForLoop(n ast.Node, out Sink) (none, error) {
	f := n.(*ast.ForLoop)
	dots, ok := f.Set.(*ast.Binary)
	if !ok || dots.Kind() != ast.DotsKind || len(f.Vars) != 1 {
		return g.fail(n, "bad for-range")
	}
	v := f.Vars[0].Name
	cmp := " <= "
	if dots.Op == "..." {
		cmp = " < "
	}
	out.Write("for (", v, " = ")
	g.gen(dots.Left, out)
	out.Write("; ", v, cmp)
	g.gen(dots.Right, out)
	out.Write("; ++", v, ") {")
	out.Down()
	g.body(f.Body, out)
	out.Up()
	out.Write("}")
	out.NL()
	return none{}, nil
}

func (g *CodeGen) genReturn(n ast.Node, out Sink) (none, error) {
	r := n.(*ast.Return)
	if len(r.Values) == 0 {
		out.Write("return")
		return none{}, nil
	}
	out.Write("return ")
	g.gen(r.Values[0], out)
	return none{}, nil
}

func (g *CodeGen) genBreak(n ast.Node, out Sink) (none, error) {
	switch b := n.(*ast.Break); b.Op {
	case "break":
		out.Write("break")
	case "next":
		out.Write("continue")
	default:
		return g.fail(n, "%s is not available", b.Op)
	}
	return none{}, nil
}

// genFunction prints the definition of a def or block. Foreign methods
// print nothing and native ones print their body text.
func (g *CodeGen) genFunction(n ast.Node, out Sink) (none, error) {
	t := g.typeOf(n)
	if types.HasRole(t, types.ForeignRole) {
		return none{}, nil
	}
	mt, ok := types.As[*types.Method](t)
	if !ok {
		return g.fail(n, "not a function")
	}
	if !g.public[n] {
		out.Write("static ")
	}
	g.signature(n, g.FunctionName(n), mt, out)
	out.Write(" {")
	out.Down()
	if text, ok := types.NativeBody(t); ok {
		lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
		for i, line := range lines {
			if i > 0 {
				out.NL()
			}
			out.Write(line)
		}
	} else {
		g.localDecls(n, out)
		g.body(bodyOf(n), out)
	}
	out.Up()
	out.Write("}")
	out.NL()
	return none{}, nil
}

// Export is a function of the generated unit callable from the host.
type Export struct {
	Name      string
	Type      *types.Method
	Signature string
}

// Exports returns the public functions, plus the OpenCL runtime entry
// points when generating OpenCL.
func (g *CodeGen) Exports(roots []ast.Node) []Export {
	var out []Export
	for _, n := range roots {
		mt, ok := types.As[*types.Method](g.typeOf(n))
		if !ok {
			g.fail(n, "not a function")
			continue
		}
		out = append(out, g.export(n, g.FunctionName(n), mt))
	}
	if g.opencl {
		out = append(out,
			g.export(nil, "ocl_init", types.NewMethod(nil, []types.Type{types.Integer}, types.Void)),
			g.export(nil, "ocl_finish", types.NewMethod(nil, nil, types.Void)))
	}
	return out
}

func (g *CodeGen) export(n ast.Node, name string, mt *types.Method) Export {
	sig, err := Mangle(name, mt)
	if err != nil {
		g.fail(n, "%s", err)
	}
	return Export{Name: name, Type: mt, Signature: sig}
}
