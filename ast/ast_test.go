package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindChain(t *testing.T) {
	require.True(t, IdentifierKind.IsA(NameKind))
	require.True(t, IdentifierKind.IsA(IdentifierOrCallKind))
	require.True(t, LambdaKind.IsA(ParametersKind))
	require.True(t, AssignKind.IsA(BinaryKind))
	require.True(t, CommandKind.IsA(CallKind))
	require.False(t, ConstKind.IsA(IdentifierOrCallKind))
	require.True(t, NumberKind.IsA(NodeKind))

	p, ok := DefKind.Parent()
	require.True(t, ok)
	require.Equal(t, ParametersKind, p)
	_, ok = NodeKind.Parent()
	require.False(t, ok)

	k, ok := KindByName("ClassDef")
	require.True(t, ok)
	require.Equal(t, ClassDefKind, k)
	_, ok = KindByName("Nope")
	require.False(t, ok)
}

func TestFields(t *testing.T) {
	call := NewCall(Ident("a"), "foo", Int(1))
	v, ok := call.Field("receiver")
	require.True(t, ok)
	require.Equal(t, "a", v.(*Name).Name)

	v, ok = call.Field("block")
	require.True(t, ok)
	require.Nil(t, v, "absent block must be a nil interface")

	v, ok = call.Field("args")
	require.True(t, ok)
	require.Len(t, v.([]Node), 1)

	_, ok = call.Field("nope")
	require.False(t, ok)

	def := NewDef("f", []string{"x", "y"}, Ident("x"))
	v, _ = def.Field("params")
	require.Len(t, v.([]Node), 2)
	v, _ = def.Field("rest_of_params")
	require.Nil(t, v)

	cond := NewIf(Ident("c"), Int(1), nil).AddElsif(Ident("d"), Int(2))
	v, _ = cond.Field("all_elsif")
	require.Len(t, v.([]Pair), 1)
	v, _ = cond.Field("else")
	require.Nil(t, v)
}

func TestLinkAndEnclosing(t *testing.T) {
	x := Ident("x")
	ret := NewReturn(NewBinary(x, "+", Int(1)))
	def := NewDef("inc", []string{"x"}, ret)
	Link(def)

	require.Equal(t, Node(def), ret.Parent())
	require.Equal(t, Node(def), Enclosing(x, DefKind))
	require.Equal(t, Node(ret), Enclosing(x, ReturnKind))
	require.Nil(t, Enclosing(x, BlockKind))
	require.Equal(t, Node(def), Root(x))
}

func TestString(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{NewBinary(Ident("a"), "+", Int(2)), "(a + 2)"},
		{NewAssign(Ident("a"), "+=", Float(2)), "a += 2.0"},
		{NewUnary("-@", Ident("x")), "(-x)"},
		{NewArrayRef(Ident("a"), Int(0)), "a[0]"},
		{NewCall(Ident("n"), "times").WithBlock(NewBlock([]string{"i"}, Ident("i"))), "n.times {|i| i }"},
		{NewIfop(Ident("c"), Int(1), Int(2)), "(c ? 1 : 2)"},
		{NewReturn(), "return"},
		{NewDots(Int(0), "...", Ident("n")), "(0...n)"},
		{NewLabel("return"), "return:"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.node.String())
	}
}

func TestInspectAndTags(t *testing.T) {
	body := Body(NewAssign(Ident("a"), "=", Int(1)), NewReturn(Ident("a")))
	def := Link(NewDef("f", nil, body))

	count := 0
	Inspect(def, func(n Node) bool {
		n.SetTag("seen")
		count++
		return true
	})
	// def, name, exprs, assign, a, 1, return, a
	require.Equal(t, 8, count)

	ClearTags(def)
	Inspect(def, func(n Node) bool {
		require.Empty(t, n.Tag())
		return true
	})
}

func TestAt(t *testing.T) {
	n := At(Ident("x"), "f.rb", 3, 5)
	require.Equal(t, "f.rb", n.Tok().FileName)
	require.Equal(t, 3, n.Tok().Line)
	require.Equal(t, "x", n.Tok().Literal)
	require.Equal(t, "f.rb:3:5", n.Tok().Position())
}
