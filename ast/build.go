package ast

import (
	"strconv"

	"github.com/thiremani/clift/token"
)

func tok(t token.TokenType, lit string) base {
	return base{Token: token.Token{Type: t, Literal: lit}}
}

func opTok(op string) base {
	return base{Token: token.Token{Type: token.LookupOperator(op), Literal: op}}
}

// At places n at file:line:col and returns it.
func At[T Node](n T, file string, line, col int) T {
	t := n.Tok()
	t.FileName, t.Line, t.Column = file, line, col
	n.SetTok(t)
	return n
}

// NewName returns a name node of the given name kind.
func NewName(kind Kind, name string) *Name {
	tt := token.IDENT
	switch kind {
	case ConstKind:
		tt = token.CONST
	case LabelKind:
		tt = token.LABEL
	case InstanceVariableKind:
		tt = token.IVAR
	case GlobalVariableKind:
		tt = token.GVAR
	}
	return &Name{base: tok(tt, name), kind: kind, Name: name}
}

func Ident(name string) *Name        { return NewName(IdentifierKind, name) }
func VCall(name string) *Name        { return NewName(VariableCallKind, name) }
func ConstName(name string) *Name    { return NewName(ConstKind, name) }
func ReservedWord(name string) *Name { return NewName(ReservedKind, name) }
func NewLabel(name string) *Name     { return NewName(LabelKind, name) }
func IVar(name string) *Name         { return NewName(InstanceVariableKind, name) }
func GVar(name string) *Name         { return NewName(GlobalVariableKind, name) }

func Int(v int64) *Number {
	return &Number{base: tok(token.INT, strconv.FormatInt(v, 10)), Value: v}
}

func Float(v float64) *Number {
	return &Number{base: tok(token.FLOAT, strconv.FormatFloat(v, 'g', -1, 64)), Value: v}
}

func Str(s string) *StringLiteral { return &StringLiteral{base: tok(token.STRING, s), Value: s} }
func Sym(s string) *SymbolLiteral { return &SymbolLiteral{base: tok(token.SYMBOL, s), Name: s} }
func NewSuper() *Super            { return &Super{base: tok(token.IDENT, "super")} }

func NewBinary(left Node, op string, right Node) *Binary {
	return &Binary{base: opTok(op), kind: BinaryKind, Left: left, Op: op, Right: right}
}

// NewDots builds a range; op is ".." or "...".
func NewDots(left Node, op string, right Node) *Binary {
	return &Binary{base: opTok(op), kind: DotsKind, Left: left, Op: op, Right: right}
}

// NewAssign builds a plain ("=") or compound ("+=", ...) assignment.
func NewAssign(left Node, op string, right Node) *Binary {
	return &Binary{base: opTok(op), kind: AssignKind, Left: left, Op: op, Right: right}
}

func NewUnary(op string, operand Node) *Unary {
	return &Unary{base: opTok(op), Op: op, Operand: operand}
}

func NewParen(e Node) *Paren { return &Paren{base: opTok("("), Expression: e} }

func NewArray(elems ...Node) *ArrayLiteral {
	return &ArrayLiteral{base: opTok("["), Elements: elems}
}

func NewHash(pairs ...Pair) *HashLiteral {
	return &HashLiteral{base: opTok("{"), Pairs: pairs}
}

func NewConstPath(scope Node, name string) *ConstPathRef {
	return &ConstPathRef{base: opTok("::"), Scope: scope, Name: ConstName(name)}
}

func NewArrayRef(array Node, indexes ...Node) *ArrayRef {
	return &ArrayRef{base: opTok("["), Array: array, Indexes: indexes}
}

// NewCall builds recv.name(args...), or name(args...) when recv is nil.
func NewCall(recv Node, name string, args ...Node) *Call {
	c := &Call{base: tok(token.IDENT, name), kind: CallKind, Receiver: recv, Name: Ident(name), Args: args}
	if recv != nil {
		c.Op = "."
	}
	return c
}

// NewCommand builds a call written without parentheses.
func NewCommand(recv Node, name string, args ...Node) *Call {
	c := NewCall(recv, name, args...)
	c.kind = CommandKind
	return c
}

// WithBlock attaches a block to the call.
func (c *Call) WithBlock(b *Block) *Call {
	c.Block = b
	return c
}

func NewConditional(op string, cond, then Node, elsif []Pair, els Node) *Conditional {
	return &Conditional{base: tok(token.IF, op), Op: op, Cond: cond, Then: then, Elsif: elsif, Else: els}
}

func NewIf(cond, then, els Node) *Conditional { return NewConditional("if", cond, then, nil, els) }

// NewIfop builds the ternary cond ? then : els.
func NewIfop(cond, then, els Node) *Conditional {
	c := NewConditional("ifop", cond, then, nil, els)
	c.Token.Type = token.TERNARY
	return c
}

// AddElsif appends an else-if clause.
func (c *Conditional) AddElsif(cond, body Node) *Conditional {
	c.Elsif = append(c.Elsif, Pair{Key: cond, Value: body})
	return c
}

func NewLoop(op string, cond, body Node) *Loop {
	return &Loop{base: tok(token.WHILE, op), Op: op, Cond: cond, Body: body}
}

func NewWhile(cond, body Node) *Loop { return NewLoop("while", cond, body) }

func NewFor(vars []*Name, set, body Node) *ForLoop {
	return &ForLoop{base: tok(token.FOR, "for"), Vars: vars, Set: set, Body: body}
}

func NewReturn(values ...Node) *Return {
	return &Return{base: tok(token.RETURN, "return"), Values: values}
}

func NewBreak(op string, values ...Node) *Break {
	return &Break{base: tok(token.BREAK, op), Op: op, Values: values}
}

func NewExprs(es ...Node) *Exprs { return &Exprs{base: tok(token.NEWLINE, ""), Expressions: es} }

// Body returns the single expression when there is only one, or an Exprs.
func Body(es ...Node) Node {
	if len(es) == 1 {
		return es[0]
	}
	return NewExprs(es...)
}

func params(ps []string) []*Name {
	out := make([]*Name, len(ps))
	for i, p := range ps {
		out[i] = Ident(p)
	}
	return out
}

func NewBlock(ps []string, body Node) *Block {
	return &Block{base: tok(token.DO, "do"), kind: BlockKind, Parameters: Parameters{Params: params(ps)}, Body: body}
}

func NewLambda(ps []string, body Node) *Block {
	b := NewBlock(ps, body)
	b.kind = LambdaKind
	b.Token = token.Token{Type: token.LAMBDA, Literal: "->"}
	return b
}

func NewDef(name string, ps []string, body Node) *Def {
	return &Def{base: tok(token.DEF, "def"), Name: Ident(name), Parameters: Parameters{Params: params(ps)}, Body: body}
}

func NewRescue(types []Node, param *Name, body Node) *Rescue {
	return &Rescue{base: tok(token.RESCUE, "rescue"), Types: types, Parameter: param, Body: body}
}

func NewBeginEnd(body Node, rescue *Rescue) *BeginEnd {
	return &BeginEnd{base: tok(token.BEGIN, "begin"), Body: body, Rescue: rescue}
}

func NewModule(name Node, body Node) *ModuleDef {
	return &ModuleDef{base: tok(token.MODULE, "module"), kind: ModuleDefKind, Name: name, Body: body}
}

func NewClass(name, superclass, body Node) *ModuleDef {
	return &ModuleDef{base: tok(token.CLASS, "class"), kind: ClassDefKind, Name: name, Superclass: superclass, Body: body}
}

func NewProgram(elems ...Node) *Program {
	return &Program{base: tok(token.EOF, ""), Elements: elems}
}
