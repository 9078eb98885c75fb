package bundle

import (
	"github.com/pkg/errors"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/compiler"
	"github.com/thiremani/clift/types"
)

// Node is the wire form of a tree node. Kids are positional per kind:
//
//	Binary, Dots, Assign   left, right
//	Unary, Paren           operand
//	ConstPathRef           scope, name
//	ArrayRef               array, indexes...
//	Call, Command          receiver, args...
//	Conditional            cond, then, else (elsif clauses in Pairs)
//	Loop                   cond, body
//	ForLoop, Block, Def    set (for only), body
//	ArrayLiteral, Return, Break, Exprs   elements
//
// A missing child is nil.
type Node struct {
	Kind   string   `cbor:"kind"`
	Name   string   `cbor:"name,omitempty"`
	Op     string   `cbor:"op,omitempty"`
	Int    *int64   `cbor:"int,omitempty"`
	Float  *float64 `cbor:"float,omitempty"`
	Kids   []*Node  `cbor:"kids,omitempty"`
	Pairs  []Pair   `cbor:"pairs,omitempty"`
	Params []string `cbor:"params,omitempty"`
	Block  *Node    `cbor:"block,omitempty"`
	Pos    *Pos     `cbor:"pos,omitempty"`
	// Value is the captured value of the name this node denotes.
	Value *Value `cbor:"value,omitempty"`
}

type Pair struct {
	Key   *Node `cbor:"key"`
	Value *Node `cbor:"value"`
}

// Pos is a source position.
type Pos struct {
	File string `cbor:"file,omitempty"`
	Line int    `cbor:"line"`
	Col  int    `cbor:"col,omitempty"`
}

// encoder numbers the captured arrays of a bundle so that nodes sharing
// one keep sharing it after decoding.
type encoder struct {
	values compiler.Values
	refs   map[compiler.ArrayObject]int
}

func (e *encoder) node(n ast.Node) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	w := &Node{Kind: n.Kind().String()}
	if tok := n.Tok(); tok.Line != 0 || tok.FileName != "" {
		w.Pos = &Pos{File: tok.FileName, Line: tok.Line, Col: tok.Column}
	}
	if v, ok := e.values[n]; ok {
		val, err := e.value(v)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		w.Value = val
	}

	var kids []ast.Node
	switch n := n.(type) {
	case *ast.Name:
		w.Name = n.Name
	case *ast.Number:
		switch v := n.Value.(type) {
		case int64:
			w.Int = &v
		case float64:
			w.Float = &v
		}
	case *ast.StringLiteral:
		w.Name = n.Value
	case *ast.SymbolLiteral:
		w.Name = n.Name
	case *ast.Binary:
		w.Op = n.Op
		kids = []ast.Node{n.Left, n.Right}
	case *ast.Unary:
		w.Op = n.Op
		kids = []ast.Node{n.Operand}
	case *ast.Paren:
		kids = []ast.Node{n.Expression}
	case *ast.ArrayLiteral:
		kids = n.Elements
	case *ast.HashLiteral:
		return w, e.pairs(w, n.Pairs)
	case *ast.ConstPathRef:
		if n.Name == nil {
			return nil, errors.Errorf("unsupported node: %s without a name", n.Kind())
		}
		kids = []ast.Node{n.Scope, n.Name}
	case *ast.ArrayRef:
		kids = append([]ast.Node{n.Array}, n.Indexes...)
	case *ast.Call:
		if n.BlockArg != nil {
			return nil, errors.Errorf("unsupported node: block argument of %s", n.Name.Name)
		}
		w.Name = n.Name.Name
		kids = append([]ast.Node{n.Receiver}, n.Args...)
		if n.Block != nil {
			b, err := e.node(n.Block)
			if err != nil {
				return nil, err
			}
			w.Block = b
		}
	case *ast.Conditional:
		w.Op = n.Op
		kids = []ast.Node{n.Cond, n.Then, n.Else}
		if err := e.pairs(w, n.Elsif); err != nil {
			return nil, err
		}
	case *ast.Loop:
		w.Op = n.Op
		kids = []ast.Node{n.Cond, n.Body}
	case *ast.ForLoop:
		w.Params = paramNames(n.Vars)
		kids = []ast.Node{n.Set, n.Body}
	case *ast.Return:
		kids = n.Values
	case *ast.Break:
		w.Op = n.Op
		kids = n.Values
	case *ast.Exprs:
		kids = n.Expressions
	case *ast.Block:
		if err := plainParams(&n.Parameters); err != nil {
			return nil, err
		}
		w.Params = paramNames(n.Params)
		kids = []ast.Node{n.Body}
	case *ast.Def:
		if err := plainParams(&n.Parameters); err != nil {
			return nil, err
		}
		if n.Singular != nil {
			return nil, errors.Errorf("unsupported node: singleton def %s", n.Name.Name)
		}
		w.Name = n.Name.Name
		w.Params = paramNames(n.Params)
		kids = []ast.Node{n.Body}
	default:
		return nil, errors.Errorf("unsupported node: %s", n.Kind())
	}

	for _, k := range kids {
		enc, err := e.node(k)
		if err != nil {
			return nil, err
		}
		w.Kids = append(w.Kids, enc)
	}
	return w, nil
}

func (e *encoder) pairs(w *Node, ps []ast.Pair) error {
	for _, p := range ps {
		k, err := e.node(p.Key)
		if err != nil {
			return err
		}
		v, err := e.node(p.Value)
		if err != nil {
			return err
		}
		w.Pairs = append(w.Pairs, Pair{Key: k, Value: v})
	}
	return nil
}

func plainParams(p *ast.Parameters) error {
	if len(p.Optionals) > 0 || p.RestOfParams != nil || len(p.ParamsAfterRest) > 0 ||
		len(p.Keywords) > 0 || p.RestOfKeywords != nil || p.BlockParam != nil {
		return errors.New("unsupported node: parameters other than plain ones")
	}
	return nil
}

func paramNames(ns []*ast.Name) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Name
	}
	return out
}

type decoder struct {
	classes map[string]*types.Class
	values  compiler.Values
	objects map[int]compiler.ArrayObject
}

// node rebuilds an ast node with the constructors of package ast.
func (d *decoder) node(w *Node) (ast.Node, error) {
	if w == nil {
		return nil, nil
	}
	kind, ok := ast.KindByName(w.Kind)
	if !ok {
		return nil, errors.Errorf("unknown node kind %q", w.Kind)
	}
	kids := make([]ast.Node, len(w.Kids))
	for i, k := range w.Kids {
		n, err := d.node(k)
		if err != nil {
			return nil, err
		}
		kids[i] = n
	}
	kid := func(i int) ast.Node {
		if i < len(kids) {
			return kids[i]
		}
		return nil
	}

	var n ast.Node
	switch kind {
	case ast.IdentifierKind, ast.VariableCallKind, ast.ConstKind, ast.ReservedKind,
		ast.LabelKind, ast.InstanceVariableKind, ast.GlobalVariableKind:
		n = ast.NewName(kind, w.Name)
	case ast.NumberKind:
		switch {
		case w.Int != nil:
			n = ast.Int(*w.Int)
		case w.Float != nil:
			n = ast.Float(*w.Float)
		default:
			return nil, errors.New("number without a value")
		}
	case ast.StringLiteralKind:
		n = ast.Str(w.Name)
	case ast.SymbolLiteralKind:
		n = ast.Sym(w.Name)
	case ast.BinaryKind:
		n = ast.NewBinary(kid(0), w.Op, kid(1))
	case ast.DotsKind:
		n = ast.NewDots(kid(0), w.Op, kid(1))
	case ast.AssignKind:
		n = ast.NewAssign(kid(0), w.Op, kid(1))
	case ast.UnaryKind:
		n = ast.NewUnary(w.Op, kid(0))
	case ast.ParenKind:
		n = ast.NewParen(kid(0))
	case ast.ArrayLiteralKind:
		n = ast.NewArray(kids...)
	case ast.HashLiteralKind:
		pairs, err := d.pairs(w.Pairs)
		if err != nil {
			return nil, err
		}
		n = ast.NewHash(pairs...)
	case ast.ConstPathRefKind:
		name, ok := kid(1).(*ast.Name)
		if !ok {
			return nil, errors.Errorf("%s without a name", kind)
		}
		n = ast.NewConstPath(kid(0), name.Name)
	case ast.ArrayRefKind:
		if len(kids) == 0 {
			return nil, errors.Errorf("%s without an array", kind)
		}
		n = ast.NewArrayRef(kids[0], kids[1:]...)
	case ast.CallKind, ast.CommandKind:
		var args []ast.Node
		if len(kids) > 1 {
			args = kids[1:]
		}
		newCall := ast.NewCall
		if kind == ast.CommandKind {
			newCall = ast.NewCommand
		}
		c := newCall(kid(0), w.Name, args...)
		if w.Block != nil {
			b, err := d.node(w.Block)
			if err != nil {
				return nil, err
			}
			blk, ok := b.(*ast.Block)
			if !ok {
				return nil, errors.Errorf("block of %s is a %s", w.Name, b.Kind())
			}
			c.WithBlock(blk)
		}
		n = c
	case ast.ConditionalKind:
		elsif, err := d.pairs(w.Pairs)
		if err != nil {
			return nil, err
		}
		if w.Op == "ifop" {
			n = ast.NewIfop(kid(0), kid(1), kid(2))
		} else {
			n = ast.NewConditional(w.Op, kid(0), kid(1), elsif, kid(2))
		}
	case ast.LoopKind:
		n = ast.NewLoop(w.Op, kid(0), kid(1))
	case ast.ForLoopKind:
		vars := make([]*ast.Name, len(w.Params))
		for i, p := range w.Params {
			vars[i] = ast.Ident(p)
		}
		n = ast.NewFor(vars, kid(0), kid(1))
	case ast.ReturnKind:
		n = ast.NewReturn(kids...)
	case ast.BreakKind:
		n = ast.NewBreak(w.Op, kids...)
	case ast.ExprsKind:
		n = ast.NewExprs(kids...)
	case ast.BlockKind:
		n = ast.NewBlock(w.Params, kid(0))
	case ast.LambdaKind:
		n = ast.NewLambda(w.Params, kid(0))
	case ast.DefKind:
		n = ast.NewDef(w.Name, w.Params, kid(0))
	default:
		return nil, errors.Errorf("unsupported node: %s", kind)
	}

	if w.Pos != nil {
		tok := n.Tok()
		tok.FileName, tok.Line, tok.Column = w.Pos.File, w.Pos.Line, w.Pos.Col
		n.SetTok(tok)
	}
	if w.Value != nil {
		v, err := d.value(w.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		d.values[n] = v
	}
	return n, nil
}

func (d *decoder) pairs(ps []Pair) ([]ast.Pair, error) {
	var out []ast.Pair
	for _, p := range ps {
		k, err := d.node(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := d.node(p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Pair{Key: k, Value: v})
	}
	return out, nil
}
