package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/token"
	"github.com/thiremani/clift/types"
)

func object(name string) Entry { return Entry{Class: "Object", Name: name} }

func decl(pairs ...ast.Pair) *ast.Call { return typedeclCall(pairs...) }

func intConst() *ast.Name { return ast.ConstName("Int") }

// capture maps every node to the same captured value.
func capture(values Values, v any, nodes ...ast.Node) Values {
	if values == nil {
		values = Values{}
	}
	for _, n := range nodes {
		values[n] = v
	}
	return values
}

func typecheck(t *testing.T, backend Backend, trees Trees, values Values, e Entry) (*TypeChecker, *types.Method) {
	t.Helper()
	tc := NewTypeChecker(backend, trees, values)
	mt, err := tc.Typecheck(e)
	require.NoError(t, err)
	return tc, mt
}

func typecheckErr(t *testing.T, backend Backend, trees Trees, values Values, e Entry) error {
	t.Helper()
	tc := NewTypeChecker(backend, trees, values)
	_, err := tc.Typecheck(e)
	require.Error(t, err)
	return err
}

// def fact(n)
//
//	typedecl n: Int, return: Int
//	if n > 1 then return n * fact(n - 1) else return 1 end
func factTree() *ast.Def {
	cond := ast.NewIf(ast.NewBinary(ast.Ident("n"), ">", ast.Int(1)),
		ast.NewReturn(ast.NewBinary(ast.Ident("n"), "*",
			ast.NewCall(nil, "fact", ast.NewBinary(ast.Ident("n"), "-", ast.Int(1))))),
		ast.NewReturn(ast.Int(1)))
	return ast.NewDef("fact", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst()), label("return", intConst())),
		cond))
}

func TestTypedeclParamsAndResult(t *testing.T) {
	foo := ast.NewDef("foo", []string{"a", "b"}, ast.NewExprs(
		decl(label("a", intConst()), label("b", ast.ConstName("Float")), label("return", ast.ConstName("Float"))),
		ast.NewReturn(ast.NewBinary(ast.Ident("a"), "+", ast.Ident("b")))))

	_, mt := typecheck(t, C, Trees{object("foo"): foo}, nil, object("foo"))
	require.Len(t, mt.Params, 2)
	assert.True(t, mt.Params[0].Equal(types.Integer))
	assert.True(t, mt.Params[1].Equal(types.Float))
	assert.True(t, mt.Ret.Equal(types.Float))
	assert.Equal(t, "(Integer,Float)->Float", mt.Name())
}

func TestRecursiveMethod(t *testing.T) {
	fact := factTree()
	tc, mt := typecheck(t, C, Trees{object("fact"): fact}, nil, object("fact"))
	assert.True(t, mt.Ret.Equal(types.Integer))
	assert.Len(t, tc.Trees(), 1)

	locals, ok := tc.LocalVars(fact)
	require.True(t, ok)
	assert.Empty(t, locals)
}

func TestLocalVariables(t *testing.T) {
	assign := ast.NewAssign(ast.Ident("b"), "=", ast.NewBinary(ast.Ident("a"), "+", ast.Int(1)))
	baz := ast.NewDef("baz", []string{"a"}, ast.NewExprs(
		decl(label("a", intConst()), label("return", intConst())),
		assign,
		ast.NewReturn(ast.Ident("b"))))

	tc, mt := typecheck(t, C, Trees{object("baz"): baz}, nil, object("baz"))
	assert.True(t, mt.Ret.Equal(types.Integer))

	locals, ok := tc.LocalVars(baz)
	require.True(t, ok)
	require.Len(t, locals, 1)
	assert.Equal(t, "b", locals[0].Name)
	assert.True(t, locals[0].Type.Equal(types.Integer))

	d, ok := types.LocalVarOf(locals[0].Type)
	require.True(t, ok)
	assert.Same(t, assign.Left, d.Site())
	assert.False(t, d.Undef())
}

func TestReassignedVariableIsUndef(t *testing.T) {
	twice := ast.NewDef("twice", []string{"a"}, ast.NewExprs(
		decl(label("a", intConst()), label("return", intConst())),
		ast.NewAssign(ast.Ident("b"), "=", ast.Ident("a")),
		ast.NewAssign(ast.Ident("b"), "=", ast.NewBinary(ast.Ident("b"), "+", ast.Int(1))),
		ast.NewReturn(ast.Ident("b"))))

	tc, _ := typecheck(t, C, Trees{object("twice"): twice}, nil, object("twice"))
	locals, _ := tc.LocalVars(twice)
	require.Len(t, locals, 1)
	d, ok := types.LocalVarOf(locals[0].Type)
	require.True(t, ok)
	assert.True(t, d.Undef())
	assert.Nil(t, d.Site())
}

func TestCalledMethodIsTyped(t *testing.T) {
	foo := ast.NewDef("foo", []string{"a", "b"}, ast.NewExprs(
		decl(label("a", intConst()), label("b", intConst()), label("return", intConst())),
		ast.NewReturn(ast.NewBinary(ast.Ident("a"), "+", ast.Ident("b")))))
	call := ast.NewCall(nil, "foo", ast.Ident("x"), ast.NewBinary(ast.Ident("x"), "+", ast.Int(1)))
	bar := ast.NewDef("bar", []string{"x"}, ast.NewExprs(
		decl(label("x", intConst()), label("return", intConst())),
		ast.NewReturn(call)))

	tc, mt := typecheck(t, C, Trees{object("foo"): foo, object("bar"): bar}, nil, object("bar"))
	assert.True(t, mt.Ret.Equal(types.Integer))
	assert.Len(t, tc.Trees(), 2)

	ct, ok := tc.TypeOf(call)
	require.True(t, ok)
	def, ok := types.ResultDef(ct)
	require.True(t, ok)
	assert.Same(t, ast.Node(foo), def)

	_, ok = tc.LocalVars(foo)
	assert.True(t, ok, "callee body is checked")
}

func TestCalleeParamsBoundOnce(t *testing.T) {
	foo := ast.NewDef("foo", []string{"a"}, ast.NewExprs(
		decl(label("a", intConst()), label("return", intConst())),
		ast.NewReturn(ast.Ident("a"))))
	bar := ast.NewDef("bar", []string{"x"}, ast.NewExprs(
		decl(label("x", intConst()), label("return", intConst())),
		ast.NewReturn(ast.NewCall(nil, "foo", ast.Ident("x")))))
	baz := ast.NewDef("baz", nil, ast.NewExprs(
		decl(label("return", intConst())),
		ast.NewReturn(ast.NewCall(nil, "foo", ast.Int(2)))))

	tc := NewTypeChecker(C, Trees{object("foo"): foo, object("bar"): bar, object("baz"): baz}, nil)
	_, err := tc.Typecheck(object("bar"))
	require.NoError(t, err)
	first, ok := tc.TypeOf(foo.Params[0])
	require.True(t, ok)

	_, err = tc.Typecheck(object("baz"))
	require.NoError(t, err)
	second, ok := tc.TypeOf(foo.Params[0])
	require.True(t, ok)
	assert.Same(t, first, second)
}

func TestArgumentTypeMismatch(t *testing.T) {
	foo := ast.NewDef("foo", []string{"a"}, ast.NewExprs(
		decl(label("a", intConst()), label("return", intConst())),
		ast.NewReturn(ast.Ident("a"))))
	bar2 := ast.NewDef("bar2", nil, ast.NewExprs(
		decl(label("return", intConst())),
		ast.NewReturn(ast.NewCall(nil, "foo", ast.Float(1.5)))))

	err := typecheckErr(t, C, Trees{object("foo"): foo, object("bar2"): bar2}, nil, object("bar2"))
	assert.ErrorContains(t, err, "argument type mismatch")
}

func TestCallsResolveThroughClass(t *testing.T) {
	foo := ast.NewDef("foo", nil, ast.NewExprs(
		decl(label("return", intConst())),
		ast.NewReturn(ast.Int(3))))
	bar := ast.NewDef("bar", nil, ast.NewExprs(
		decl(label("return", intConst())),
		ast.NewReturn(ast.NewCall(nil, "foo"))))
	trees := Trees{{Class: "Foo", Name: "foo"}: foo, {Class: "Foo", Name: "bar"}: bar}

	tc, _ := typecheck(t, C, trees, nil, Entry{Class: "Foo", Name: "bar"})
	tree, ok := tc.Tree(Entry{Class: "Foo", Name: "foo"})
	require.True(t, ok)
	assert.Equal(t, "Foo", tree.Context.Name())

	// the method is not visible from another class
	err := typecheckErr(t, C, Trees{{Class: "Bar", Name: "bar"}: bar}, nil, Entry{Class: "Bar", Name: "bar"})
	assert.ErrorContains(t, err, "no source code: for Bar#foo")
}

func TestCArrayInstanceVariable(t *testing.T) {
	ivars := []*ast.Name{ast.IVar("@array"), ast.IVar("@array"), ast.IVar("@array")}
	foo := ast.NewDef("foo", nil, ast.NewExprs(
		decl(label("return", intConst())),
		ast.NewAssign(ast.NewArrayRef(ivars[0], ast.Int(1), ast.Int(1)), "=", ast.Int(7)),
		ast.NewAssign(ast.NewArrayRef(ivars[1], ast.Int(1), ast.Int(1)), "+=", ast.Int(10)),
		ast.NewReturn(ast.NewArrayRef(ivars[2], ast.Int(1), ast.Int(1)))))
	arr := NewCArray(types.Integer, 2, 3)
	values := capture(nil, arr, ivars[0], ivars[1], ivars[2])

	tc, mt := typecheck(t, C, Trees{object("foo"): foo}, values, object("foo"))
	assert.True(t, mt.Ret.Equal(types.Integer))
	assert.Equal(t, []ArrayObject{arr}, tc.Ivars())
}

func TestTypeErrors(t *testing.T) {
	src := ast.IVar("@array")
	copyArray := ast.NewAssign(ast.IVar("@array2"), "=", src)

	tests := []struct {
		name   string
		params []string
		body   []ast.Node
		values Values
		errMsg string
	}{
		{
			name:   "array ivar assigned",
			body:   []ast.Node{copyArray},
			values: capture(nil, NewCArray(types.Integer, 4), src),
			errMsg: "bad assigned value",
		},
		{
			name:   "compound assignment to array",
			params: []string{"a"},
			body: []ast.Node{
				decl(label("a", ast.ConstName("IntArray"))),
				ast.NewAssign(ast.Ident("a"), "+=", ast.Int(3)),
			},
			errMsg: "incompatible assignment type",
		},
		{
			name:   "float modulo",
			params: []string{"a"},
			body: []ast.Node{
				decl(label("a", ast.ConstName("Float"))),
				ast.NewBinary(ast.Ident("a"), "%", ast.Int(3)),
			},
			errMsg: "bad operand type",
		},
		{
			name:   "value returned from void",
			params: []string{"a"},
			body: []ast.Node{
				decl(label("a", intConst()), label("return", ast.ConstName("Void"))),
				ast.NewReturn(ast.Ident("a")),
			},
			errMsg: "bad return",
		},
		{
			name:   "no return statement",
			params: []string{"a"},
			body: []ast.Node{
				decl(label("a", intConst()), label("return", intConst())),
				ast.NewBinary(ast.Ident("a"), "+", ast.Int(1)),
			},
			errMsg: "no return statement",
		},
		{
			name:   "duplicate declaration",
			params: []string{"a"},
			body: []ast.Node{
				decl(label("a", intConst()), label("a", ast.ConstName("Float"))),
			},
			errMsg: "incompatible or duplicate declaration: a",
		},
		{
			name:   "missing parameter type",
			params: []string{"a"},
			body: []ast.Node{
				decl(label("return", intConst())),
				ast.NewReturn(ast.Int(1)),
			},
			errMsg: "missing parameter type: a",
		},
		{
			name:   "unbound compound assignment",
			body:   []ast.Node{ast.NewAssign(ast.Ident("x"), "+=", ast.Int(1))},
			errMsg: "undefined variable: x",
		},
		{
			name:   "times without block parameter",
			params: []string{"n"},
			body: []ast.Node{
				decl(label("n", intConst())),
				ast.NewCall(ast.Ident("n"), "times").WithBlock(ast.NewBlock(nil, ast.Int(1))),
			},
			errMsg: "wrong number of block parameters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := ast.NewDef("f", tt.params, ast.NewExprs(tt.body...))
			err := typecheckErr(t, C, Trees{object("f"): def}, tt.values, object("f"))
			assert.ErrorContains(t, err, tt.errMsg)
			var ce *token.CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "type", ce.Group)
		})
	}
}

func TestIntModuloAndCompoundAssign(t *testing.T) {
	foo := ast.NewDef("foo", []string{"a"}, ast.NewExprs(
		decl(label("a", intConst())),
		ast.NewAssign(ast.Ident("a"), "+=", ast.Int(3)),
		ast.NewBinary(ast.Ident("a"), "%", ast.Int(3))))
	_, mt := typecheck(t, C, Trees{object("foo"): foo}, nil, object("foo"))
	assert.True(t, types.Void.Equal(mt.Ret))
}

func TestGrammarErrorStopsTyping(t *testing.T) {
	bad := ast.NewDef("f", nil, ast.Sym("x"))
	err := typecheckErr(t, C, Trees{object("f"): bad}, nil, object("f"))
	var ce *token.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "syntax", ce.Group)
}

func TestDeviceArrayRejectedInC(t *testing.T) {
	buf := ast.IVar("@buf")
	f := ast.NewDef("f", nil, ast.NewExprs(
		decl(label("return", ast.ConstName("Float32"))),
		ast.NewReturn(ast.NewArrayRef(buf, ast.Int(0)))))
	err := typecheckErr(t, C, Trees{object("f"): f}, capture(nil, NewOclArray(8), buf), object("f"))
	assert.ErrorContains(t, err, "badly typed instance variable")
}

func TestBlockFreeVariable(t *testing.T) {
	n := ast.Ident("n")
	blk := ast.NewBlock(nil, ast.NewReturn(n))
	_, mt := typecheck(t, C, Trees{{Name: "blk"}: blk}, capture(nil, 7, n), Entry{Name: "blk"})
	assert.True(t, mt.Ret.Equal(types.Integer))
	assert.Empty(t, mt.Params)
}

func TestBlockWithReturnAnnotation(t *testing.T) {
	n := ast.Ident("n")
	blk := ast.NewBlock(nil, ast.NewExprs(
		ast.NewUnary("!", ast.ConstName("Integer")),
		ast.NewAssign(ast.Ident("m"), "=", n),
		ast.NewReturn(ast.NewBinary(ast.Ident("m"), "+", ast.Int(1)))))

	tc, mt := typecheck(t, C, Trees{{Name: "blk"}: blk}, capture(nil, 7, n), Entry{Name: "blk"})
	assert.True(t, mt.Ret.Equal(types.Integer))
	locals, ok := tc.LocalVars(blk)
	require.True(t, ok)
	require.Len(t, locals, 1)
	assert.Equal(t, "m", locals[0].Name)
}

func TestNativeAndForeignPrelude(t *testing.T) {
	now := ast.VCall("current_time")
	hello := ast.NewDef("hello", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst()), label("return", intConst())),
		ast.NewCall(nil, "printf", ast.Str("%d\n"), ast.Ident("n")),
		ast.NewReturn(now)))

	tc, _ := typecheck(t, C, Trees{object("hello"): hello}, nil, object("hello"))
	require.Len(t, tc.Trees(), 3)

	nt, ok := tc.TypeOf(now)
	require.True(t, ok)
	def, ok := types.ResultDef(nt)
	require.True(t, ok)
	dt, ok := tc.TypeOf(def)
	require.True(t, ok)
	body, ok := types.NativeBody(dt)
	require.True(t, ok)
	assert.Contains(t, body, "clock_gettime")

	pf, ok := tc.Tree(object("printf"))
	require.True(t, ok)
	ft, _ := tc.TypeOf(pf.Root)
	assert.True(t, types.HasRole(ft, types.ForeignRole))
}

func TestInferHostTypes(t *testing.T) {
	tc := NewTypeChecker(Infer, nil, nil)
	env := NewBaseEnv(types.Object)

	tests := []struct {
		name     string
		node     ast.Node
		expected types.Type
	}{
		{"int plus float", ast.NewBinary(ast.Int(1), "+", ast.Float(2)), types.Float},
		{"comparison", ast.NewBinary(ast.Int(1), "<", ast.Int(2)), types.Boolean},
		{"string concat", ast.NewBinary(ast.Str("a"), "+", ast.Str("b")), types.String},
		{"int array", ast.NewArray(ast.Int(1), ast.Int(2)), types.ArrayOf(types.Integer)},
		{"mixed array", ast.NewArray(ast.Int(1), ast.Str("x")), types.Array},
		{"range", ast.NewDots(ast.Int(0), "..", ast.Int(3)), &types.Composite{Class: types.Range, Args: []types.Type{types.Integer}}},
		{"negation", ast.NewUnary("!", ast.Int(1)), types.Boolean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tc.Type(ast.Link(tt.node), env)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}
}

func TestInferDef(t *testing.T) {
	add := ast.NewDef("add", []string{"a", "b"}, ast.NewBinary(ast.Ident("a"), "+", ast.Ident("b")))
	_, mt := typecheck(t, Infer, Trees{object("add"): add}, nil, object("add"))
	require.Len(t, mt.Params, 2)
	assert.True(t, types.Dynamic.Equal(mt.Ret))
}
