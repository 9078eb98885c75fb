package compiler

import (
	"strconv"
	"strings"

	"github.com/thiremani/clift/types"
)

// BuiltinMethod is a method of a host class that compiles to an inline
// C expression. In the template $0 is the receiver and $1, $2, ... are the
// arguments.
type BuiltinMethod struct {
	Type *types.Method
	C    string
}

type builtinKey struct {
	class *types.Class
	name  string
}

func fn(ret types.Type, params ...types.Type) *types.Method {
	return types.NewMethod(nil, params, ret)
}

// Builtins maps receiver classes and method names to builtin methods.
var Builtins = map[builtinKey]*BuiltinMethod{
	{types.Integer, "abs"}:  {fn(types.Integer), "abs($0)"},
	{types.Integer, "to_f"}: {fn(types.Float), "((double)$0)"},
	{types.Integer, "to_i"}: {fn(types.Integer), "$0"},
	{types.Float, "abs"}:    {fn(types.Float), "fabs($0)"},
	{types.Float, "floor"}:  {fn(types.Integer), "((int32_t)floor($0))"},
	{types.Float, "ceil"}:   {fn(types.Integer), "((int32_t)ceil($0))"},
	{types.Float, "to_i"}:   {fn(types.Integer), "((int32_t)$0)"},
	{types.Float, "to_f"}:   {fn(types.Float), "$0"},

	{OclArrayClass, "copyfrom"}: {fn(types.Integer, types.ArrayOf(types.Float32), types.Integer), ""},
	{OclArrayClass, "copyto"}:   {fn(types.Integer, types.ArrayOf(types.Float32), types.Integer), ""},
}

// LookupBuiltin returns the builtin method name of class c.
func LookupBuiltin(c *types.Class, name string) (*BuiltinMethod, bool) {
	if c == nil {
		return nil, false
	}
	b, ok := Builtins[builtinKey{c, name}]
	return b, ok
}

// Expand fills the template with the receiver and argument code.
func (b *BuiltinMethod) Expand(recv string, args ...string) string {
	pairs := make([]string, 0, 2*(len(args)+1))
	// replace from the highest index so that $1 does not clobber $10
	for i := len(args); i >= 1; i-- {
		pairs = append(pairs, "$"+strconv.Itoa(i), args[i-1])
	}
	pairs = append(pairs, "$0", recv)
	out := b.C
	for i := 0; i < len(pairs); i += 2 {
		out = strings.ReplaceAll(out, pairs[i], pairs[i+1])
	}
	return out
}
