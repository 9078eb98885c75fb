package compiler

import (
	"github.com/thiremani/clift/types"
)

var scalarCTypes = map[*types.Class]string{
	types.Integer: "int32_t",
	types.Float:   "double",
	types.Float32: "float",
	types.String:  "char*",
}

// CTypeName returns the C spelling of t. Arrays decay to pointers.
func CTypeName(t types.Type) (string, bool) {
	if types.Void.Equal(t) {
		return "void", true
	}
	if c, ok := types.As[*types.Composite](t); ok {
		if c.Class != types.Array {
			return "", false
		}
		elem, ok := CTypeName(c.ElementType())
		if !ok || elem == "void" {
			return "", false
		}
		return elem + "*", true
	}
	name, ok := scalarCTypes[t.Exact()]
	return name, ok
}

// kernelCTypeName is CTypeName inside OpenCL C, where an Integer is an int
// and a device array is a global float pointer.
func kernelCTypeName(t types.Type) (string, bool) {
	if t.SubtypeOf(OclArrayClass) {
		return "__global float*", true
	}
	if t.Exact() == types.Integer {
		return "int", true
	}
	return CTypeName(t)
}
