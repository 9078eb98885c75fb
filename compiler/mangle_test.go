package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/clift/types"
)

func TestMangle(t *testing.T) {
	tests := []struct {
		name     string
		fn       string
		mt       *types.Method
		expected string
	}{
		{"no params void", "tick", types.NewMethod(nil, nil, types.Void), "$tick$P0$O0"},
		{"int to int", "fact", types.NewMethod(nil, []types.Type{types.Integer}, types.Integer), "$fact$P1$I32$O1$I32"},
		{
			name:     "mixed scalars",
			fn:       "mix",
			mt:       types.NewMethod(nil, []types.Type{types.Float, types.Float32, types.String}, types.Float),
			expected: "$mix$P3$F64$F32$Str$O1$F64",
		},
		{
			name:     "array param",
			fn:       "sum",
			mt:       types.NewMethod(nil, []types.Type{types.ArrayOf(types.Integer), types.Integer}, types.Integer),
			expected: "$sum$P2$Ptr$1$I32$I32$O1$I32",
		},
		{
			name:     "local var roles are ignored",
			fn:       "id",
			mt:       types.NewMethod(nil, []types.Type{types.AsLocalVar(types.Float, types.NewDefinition(nil))}, types.Float),
			expected: "$id$P1$F64$O1$F64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Mangle(tt.fn, tt.mt)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMangleErrors(t *testing.T) {
	_, err := Mangle("printf", types.NewDynMethod(nil, types.Void))
	assert.ErrorContains(t, err, "dynamic parameters")

	_, err = Mangle("sym", types.NewMethod(nil, []types.Type{types.Symbol}, types.Void))
	assert.ErrorContains(t, err, "no C type for Symbol")
}

func TestUnmangleErrors(t *testing.T) {
	tests := []struct {
		name    string
		mangled string
		errMsg  string
	}{
		{"empty", "", "missing leading '$'"},
		{"no params tag", "$f", "missing P<count>"},
		{"wrong tag", "$f$Q1", "expected P token"},
		{"unknown type", "$f$P1$U8$O0", "unknown type tag"},
		{"bad ptr count", "$f$P1$Ptr$2$I32$O0", "Ptr count must be 1"},
		{"two results", "$f$P0$O2$I32$I32", "O count must be 0 or 1"},
		{"trailing", "$f$P0$O0$I32", "trailing characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Unmangle(tt.mangled)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMangleUnmangleRoundTrip(t *testing.T) {
	methods := []*types.Method{
		types.NewMethod(nil, nil, types.Void),
		types.NewMethod(nil, []types.Type{types.Integer, types.Integer}, types.Integer),
		types.NewMethod(nil, []types.Type{types.ArrayOf(types.Float32), types.Integer}, types.Void),
		types.NewMethod(nil, []types.Type{types.ArrayOf(types.Float)}, types.Float),
		types.NewMethod(nil, []types.Type{types.String}, types.String),
	}
	for _, mt := range methods {
		t.Run(mt.Name(), func(t *testing.T) {
			s, err := Mangle("f", mt)
			require.NoError(t, err)
			name, got, err := Unmangle(s)
			require.NoError(t, err)
			assert.Equal(t, "f", name)
			assert.True(t, mt.Equal(got), "round-trip failed for %s -> %s -> %s", mt, s, got)
		})
	}
}
