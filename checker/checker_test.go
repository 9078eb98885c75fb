package checker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/token"
)

type env = map[string]int64

type calc struct {
	*Engine[*calc, env, int64]
	trail []string
}

func newCalc(r *Rules[*calc, env, int64]) *calc {
	c := &calc{}
	c.Engine = New(r, c, "calc")
	return c
}

func baseRules() *Rules[*calc, env, int64] {
	return NewRules[*calc, env, int64]("base").
		On(ast.NumberKind, func(c *calc, n ast.Node, _ env) (int64, error) {
			return n.(*ast.Number).Value.(int64), nil
		}).
		On(ast.NameKind, func(c *calc, n ast.Node, e env) (int64, error) {
			name := n.(*ast.Name).Name
			v, ok := e[name]
			if !ok {
				return 0, c.Errorf(n, "unbound %s", name)
			}
			return v, nil
		}).
		On(ast.BinaryKind, func(c *calc, n ast.Node, e env) (int64, error) {
			b := n.(*ast.Binary)
			r, err := c.Check(b.Right, e)
			if err != nil || b.Op == "=" {
				return r, err
			}
			l, err := c.Check(b.Left, e)
			if err != nil {
				return 0, err
			}
			if b.Op == "-" {
				return l - r, nil
			}
			return l + r, nil
		}).
		OnTag("twice", func(c *calc, n ast.Node, e env) (int64, error) {
			return 2 * e[n.(*ast.Name).Name], nil
		})
}

func TestKindChain(t *testing.T) {
	c := newCalc(baseRules())
	v, err := c.Check(ast.NewAssign(ast.Ident("x"), "=", ast.NewBinary(ast.Ident("y"), "-", ast.Int(1))), env{"y": 5})
	require.NoError(t, err)
	require.Equal(t, int64(4), v)

	v, err = c.Check(nil, nil)
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestTagWinsOverKind(t *testing.T) {
	c := newCalc(baseRules())
	x := ast.Ident("x")
	x.SetTag("twice")
	v, err := c.Check(ast.NewBinary(x, "+", ast.Ident("x")), env{"x": 3})
	require.NoError(t, err)
	require.Equal(t, int64(9), v)

	// an unknown tag falls back to the kind
	x.SetTag("other")
	v, err = c.Check(x, env{"x": 3})
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
}

func TestProceedUsesDeclaringLayer(t *testing.T) {
	loud := baseRules().Extend("loud").On(ast.NumberKind, func(c *calc, n ast.Node, e env) (int64, error) {
		v, err := c.Proceed(n, e)
		return v * 10, err
	})
	louder := loud.Extend("louder").On(ast.NumberKind, func(c *calc, n ast.Node, e env) (int64, error) {
		v, err := c.Proceed(n, e)
		return v + 1, err
	})
	require.Equal(t, "louder", louder.Name())
	require.Same(t, loud, louder.Parent())

	sum := ast.NewBinary(ast.Int(1), "+", ast.Int(2))
	v, err := newCalc(loud).Check(sum, nil)
	require.NoError(t, err)
	require.Equal(t, int64(30), v)

	v, err = newCalc(louder).Check(sum, nil)
	require.NoError(t, err)
	require.Equal(t, int64(32), v)
}

func TestProceedPastRoot(t *testing.T) {
	r := NewRules[*calc, env, int64]("root").On(ast.NumberKind, func(c *calc, n ast.Node, e env) (int64, error) {
		return c.Proceed(n, e)
	})
	_, err := newCalc(r).Check(ast.Int(1), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot proceed")
}

func TestNoRule(t *testing.T) {
	c := newCalc(baseRules())
	s := ast.At(ast.Str("s"), "a.rb", 3, 7)
	_, err := c.Check(ast.NewBinary(ast.Int(1), "+", s), nil)
	require.Error(t, err)
	ce, ok := err.(*token.CompileError)
	require.True(t, ok)
	require.Equal(t, "calc", ce.Group)
	require.Equal(t, 3, ce.Token.Line)
	require.Equal(t, "a.rb:3:7: calc error: no rule for StringLiteral", err.Error())
}

func TestDeferIsFIFO(t *testing.T) {
	r := baseRules().Extend("later").On(ast.NumberKind, func(c *calc, n ast.Node, e env) (int64, error) {
		v, err := c.Proceed(n, e)
		c.Defer(func() error {
			require.Same(t, n, c.Current())
			c.trail = append(c.trail, fmt.Sprint(v))
			if v == 1 {
				c.Defer(func() error {
					c.trail = append(c.trail, "nested")
					return nil
				})
			}
			return nil
		})
		return v, err
	})
	c := newCalc(r)
	v, err := c.CheckAll(ast.NewBinary(ast.Int(1), "+", ast.Int(2)), env{})
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
	// the right operand is checked first
	require.Equal(t, []string{"2", "1", "nested"}, c.trail)
	require.Zero(t, c.Pending())
	require.Nil(t, c.Current())
}

func TestDeferredErrorAborts(t *testing.T) {
	r := baseRules().Extend("fail").On(ast.NumberKind, func(c *calc, n ast.Node, e env) (int64, error) {
		c.Defer(func() error { return c.Errorf(c.Current(), "late failure") })
		c.Defer(func() error {
			c.trail = append(c.trail, "unreachable")
			return nil
		})
		return 0, nil
	})
	c := newCalc(r)
	_, err := c.CheckAll(ast.Int(1), env{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "late failure")
	require.Empty(t, c.trail)
	require.Zero(t, c.Pending())
}

func TestEnvRestored(t *testing.T) {
	var seen []env
	r := baseRules().Extend("env").On(ast.BinaryKind, func(c *calc, n ast.Node, e env) (int64, error) {
		b := n.(*ast.Binary)
		inner := env{"x": e["x"] + 1}
		l, err := c.Check(b.Left, inner)
		if err != nil {
			return 0, err
		}
		seen = append(seen, c.Env())
		return l, nil
	})
	c := newCalc(r)
	outer := env{"x": 1}
	v, err := c.Check(ast.NewBinary(ast.Ident("x"), "+", ast.Int(0)), outer)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
	require.Equal(t, []env{outer}, seen)
}
