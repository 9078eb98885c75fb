package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

func compile(t *testing.T, backend Backend, trees Trees, values Values, entries ...Entry) *Unit {
	t.Helper()
	unit, err := NewSession(backend, trees, values, DefaultOptions()).Compile(entries...)
	require.NoError(t, err)
	return unit
}

func compileClean(t *testing.T, backend Backend, trees Trees, values Values, entries ...Entry) *Unit {
	t.Helper()
	unit := compile(t, backend, trees, values, entries...)
	require.Empty(t, unit.Errors)
	return unit
}

func TestGenerateRecursiveFunction(t *testing.T) {
	unit := compileClean(t, C, Trees{object("fact"): factTree()}, nil, object("fact"))

	assert.True(t, strings.HasPrefix(unit.Source, "#include <stdint.h>\n"))
	assert.Contains(t, unit.Source, "int32_t fact(int32_t n);\n")
	expected := `int32_t fact(int32_t n) {
  if (n > 1) {
    return n * fact(n - 1);
  } else {
    return 1;
  }
}
`
	assert.Contains(t, unit.Source, expected)

	require.Len(t, unit.Exports, 1)
	assert.Equal(t, "fact", unit.Exports[0].Name)
	assert.Equal(t, "$fact$P1$I32$O1$I32", unit.Exports[0].Signature)
}

func TestGenerateTimesLoop(t *testing.T) {
	sum := ast.NewDef("sum", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst()), label("return", intConst())),
		ast.NewAssign(ast.Ident("s"), "=", ast.Int(0)),
		ast.NewCall(ast.Ident("n"), "times").WithBlock(ast.NewBlock([]string{"i"},
			ast.NewAssign(ast.Ident("s"), "+=", ast.Ident("i")))),
		ast.NewReturn(ast.Ident("s"))))

	unit := compileClean(t, C, Trees{object("sum"): sum}, nil, object("sum"))
	expected := `int32_t sum(int32_t n) {
  int32_t s;
  s = 0;
  for (int32_t i = (n) - 1; i >= 0; i--) {
    s += i;
  }
  return s;
}
`
	assert.Contains(t, unit.Source, expected)
}

func TestGenerateLoops(t *testing.T) {
	rng := ast.NewDots(ast.Int(0), "...", ast.Ident("n"))
	loops := ast.NewDef("loops", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst()), label("return", intConst())),
		ast.NewAssign(ast.Ident("s"), "=", ast.Int(0)),
		ast.NewFor([]*ast.Name{ast.Ident("i")}, rng, ast.NewAssign(ast.Ident("s"), "+=", ast.Ident("i"))),
		ast.NewAssign(ast.Ident("j"), "=", ast.Int(0)),
		ast.NewWhile(ast.NewBinary(ast.Ident("j"), "<", ast.Ident("n")),
			ast.NewAssign(ast.Ident("j"), "+=", ast.Int(1))),
		ast.NewReturn(ast.NewBinary(ast.Ident("s"), "+", ast.Ident("j")))))

	unit := compileClean(t, C, Trees{object("loops"): loops}, nil, object("loops"))
	expected := `int32_t loops(int32_t n) {
  int32_t s;
  int32_t i;
  int32_t j;
  s = 0;
  for (i = 0; i < n; ++i) {
    s += i;
  }
  j = 0;
  while (j < n) {
    j += 1;
  }
  return s + j;
}
`
	assert.Contains(t, unit.Source, expected)
}

func TestGenerateElsifAndTernary(t *testing.T) {
	sign := ast.NewDef("sign", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst()), label("return", intConst())),
		ast.NewIfop(ast.NewBinary(ast.Ident("n"), ">", ast.Int(0)),
			ast.NewCall(nil, "printf", ast.Str("pos")),
			ast.NewCall(nil, "printf", ast.Str("neg"))),
		ast.NewIf(ast.NewBinary(ast.Ident("n"), ">", ast.Int(0)),
			ast.NewReturn(ast.Int(1)),
			ast.NewReturn(ast.Int(0))).
			AddElsif(ast.NewBinary(ast.Ident("n"), "<", ast.Int(0)), ast.NewReturn(ast.NewUnary("-@", ast.Int(1))))))

	unit := compileClean(t, C, Trees{object("sign"): sign}, nil, object("sign"))
	expected := `int32_t sign(int32_t n) {
  (n > 0) ? (printf("pos")) : (printf("neg"));
  if (n > 0) {
    return 1;
  } else if (n < 0) {
    return -1;
  } else {
    return 0;
  }
}
`
	assert.Contains(t, unit.Source, expected)
	assert.NotContains(t, unit.Source, "printf(char*", "foreign functions have no prototype")
}

func TestGenerateArrayGlobal(t *testing.T) {
	ivars := []*ast.Name{ast.IVar("@array"), ast.IVar("@array"), ast.IVar("@array")}
	foo := ast.NewDef("foo", nil, ast.NewExprs(
		decl(label("return", intConst())),
		ast.NewAssign(ast.NewArrayRef(ivars[0], ast.Int(1), ast.Int(1)), "=", ast.Int(7)),
		ast.NewAssign(ast.NewArrayRef(ivars[1], ast.Int(1), ast.Int(1)), "+=", ast.Int(10)),
		ast.NewReturn(ast.NewArrayRef(ivars[2], ast.Int(1), ast.Int(1)))))
	values := capture(nil, NewCArray(types.Integer, 2, 3), ivars[0], ivars[1], ivars[2])

	unit := compileClean(t, C, Trees{object("foo"): foo}, values, object("foo"))
	assert.Contains(t, unit.Source, "static int32_t _gvar_0_[2][3];\n")
	expected := `int32_t foo() {
  _gvar_0_[1][1] = 7;
  _gvar_0_[1][1] += 10;
  return _gvar_0_[1][1];
}
`
	assert.Contains(t, unit.Source, expected)
	assert.Equal(t, "$foo$P0$O1$I32", unit.Exports[0].Signature)
}

func TestGenerateCallees(t *testing.T) {
	now := ast.VCall("current_time")
	foo := ast.NewDef("foo", []string{"a"}, ast.NewExprs(
		decl(label("a", ast.ConstName("Float")), label("return", ast.ConstName("Float"))),
		ast.NewReturn(ast.NewCall(nil, "sqrt", ast.Ident("a")))))
	bar := ast.NewDef("bar", []string{"x"}, ast.NewExprs(
		decl(label("x", ast.ConstName("Float")), label("return", intConst())),
		ast.NewCall(nil, "printf", ast.Str("%f\n"), ast.NewCall(nil, "foo", ast.Ident("x"))),
		ast.NewReturn(now)))

	unit := compileClean(t, C, Trees{object("foo"): foo, object("bar"): bar}, nil, object("bar"))
	src := unit.Source

	assert.Contains(t, src, "int32_t bar(double x);\n")
	assert.Contains(t, src, "static double foo_1(double a);\n")
	assert.Contains(t, src, "static int32_t current_time_2();\n")
	assert.Contains(t, src, `  printf("%f\n", foo_1(x));`)
	assert.Contains(t, src, "  return current_time_2();\n")
	assert.Contains(t, src, "static double foo_1(double a) {\n  return sqrt(a);\n}\n")

	native := `static int32_t current_time_2() {
  struct timespec time;
  clock_gettime(CLOCK_MONOTONIC, &time);
  return time.tv_sec * 1000000 + time.tv_nsec / 1000;
}
`
	assert.Contains(t, src, native)

	require.Len(t, unit.Exports, 1)
	assert.Equal(t, "$bar$P1$F64$O1$I32", unit.Exports[0].Signature)
}

func TestGenerateBuiltinMethods(t *testing.T) {
	f := ast.NewDef("f", []string{"x"}, ast.NewExprs(
		decl(label("x", ast.ConstName("Float")), label("return", intConst())),
		ast.NewReturn(ast.NewBinary(ast.NewCall(ast.Ident("x"), "floor"), "+",
			ast.NewCall(ast.NewUnary("-@", ast.Int(3)), "abs")))))

	unit := compileClean(t, C, Trees{object("f"): f}, nil, object("f"))
	assert.Contains(t, unit.Source, "return ((int32_t)floor(x)) + abs(-3);")
}

func TestGenerateNestedUnary(t *testing.T) {
	n := func() ast.Node { return ast.Ident("n") }
	f := ast.NewDef("f", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst()), label("return", intConst())),
		ast.NewReturn(ast.NewBinary(
			ast.NewBinary(ast.NewUnary("-@", ast.NewUnary("-@", n())), "+", ast.NewUnary("+@", ast.NewUnary("+@", n()))),
			"+", ast.NewUnary("-@", ast.NewBinary(n(), "-", ast.Int(1)))))))

	unit := compileClean(t, C, Trees{object("f"): f}, nil, object("f"))
	assert.Contains(t, unit.Source, "return -(-n) + +(+n) + -(n - 1);")
	assert.NotContains(t, unit.Source, "--")
	assert.NotContains(t, unit.Source, "++")
}

func TestGenerateBlock(t *testing.T) {
	n := ast.Ident("n")
	blk := ast.NewBlock(nil, ast.NewExprs(
		ast.NewUnary("!", intConst()),
		ast.NewAssign(ast.Ident("m"), "=", n),
		ast.NewReturn(ast.NewBinary(ast.Ident("m"), "+", ast.Int(1)))))

	unit := compileClean(t, C, Trees{{Name: "blk"}: blk}, capture(nil, 7, n), Entry{Name: "blk"})
	expected := `int32_t clift_blk1() {
  int32_t m;
  m = 7;
  return m + 1;
}
`
	assert.Contains(t, unit.Source, expected)
	require.Len(t, unit.Exports, 1)
	assert.Equal(t, "clift_blk1", unit.Exports[0].Name)
}

func TestGenerateErrorsAccumulate(t *testing.T) {
	f := ast.NewDef("f", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst())),
		ast.NewConditional("unless", ast.NewBinary(ast.Ident("n"), ">", ast.Int(0)),
			ast.NewAssign(ast.Ident("n"), "=", ast.Int(0)), nil, nil),
		ast.NewLoop("until", ast.NewBinary(ast.Ident("n"), ">", ast.Int(9)),
			ast.NewAssign(ast.Ident("n"), "+=", ast.Int(1)))))

	unit := compile(t, C, Trees{object("f"): f}, nil, object("f"))
	require.Len(t, unit.Errors, 2)
	assert.Equal(t, "a bad control statement", unit.Errors[0].Msg)
	assert.Equal(t, "until is not available", unit.Errors[1].Msg)
	assert.Equal(t, "codegen", unit.Errors[0].Group)
}

func TestCompileWithoutEntries(t *testing.T) {
	_, err := NewSession(C, Trees{}, nil, DefaultOptions()).Compile()
	assert.EqualError(t, err, "no methods specified")
}

func TestCompileTypeErrorFailsFast(t *testing.T) {
	f := ast.NewDef("f", []string{"a"}, ast.NewExprs(
		decl(label("a", ast.ConstName("Float"))),
		ast.NewBinary(ast.Ident("a"), "%", ast.Int(3))))
	unit, err := NewSession(C, Trees{object("f"): f}, nil, DefaultOptions()).Compile(object("f"))
	assert.Nil(t, unit)
	assert.ErrorContains(t, err, "bad operand type")
}

func TestPrinter(t *testing.T) {
	p := NewPrinter()
	p.Write("a {")
	p.Down()
	p.Write("b;")
	p.NL()
	p.Write("c;")
	p.Up()
	p.Write("}")
	p.NL()
	p.NL()
	p.Write("d")
	assert.Equal(t, "a {\n  b;\n  c;\n}\n\nd", p.String())

	k := NewKernelPrinter(p)
	k.Write(`s = "x";`)
	k.NL()
	assert.True(t, strings.HasSuffix(p.String(), "d"+`s = \"x\";"\`+"\n\""))
}

func TestCLiteral(t *testing.T) {
	tests := []struct {
		value    any
		expected string
	}{
		{int64(3), "3"},
		{2.5, "2.5"},
		{float64(2), "2.0"},
		{float32(1.5), "1.5f"},
		{"a\"b\n", `"a\"b\n"`},
		{true, "1"},
	}
	for _, tt := range tests {
		got, ok := cLiteral(tt.value)
		require.True(t, ok)
		assert.Equal(t, tt.expected, got)
	}
	_, ok := cLiteral(struct{}{})
	assert.False(t, ok)
}
