package types

// Host-side names that denote C types inside typedecl and return
// annotations.
var reservedTypeNames = []string{
	"Int",
	"Float",
	"Float32",
	"String",
	"Void",
	"IntArray",
	"FloatArray",
	"Float32Array",
}

var reservedTypes = map[string]Type{
	"Int":          Integer,
	"Float":        Float,
	"Float32":      Float32,
	"String":       String,
	"Void":         Void,
	"IntArray":     ArrayOf(Integer),
	"FloatArray":   ArrayOf(Float),
	"Float32Array": ArrayOf(Float32),
}

// Directive vocabulary recognized in method bodies.
const (
	Typedecl = "typedecl"
	Arrayof  = "arrayof"

	// keys of a typedecl hash
	ReturnKey  = "return"
	NativeKey  = "native"
	ForeignKey = "foreign"

	// methods taking a block
	Times    = "times"
	OclTimes = "ocl_times"
)

var reservedTypeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(reservedTypeNames))
	for _, t := range reservedTypeNames {
		m[t] = struct{}{}
	}
	return m
}()

// ReservedTypeNames returns a copy of the reserved type names.
func ReservedTypeNames() []string {
	return append([]string(nil), reservedTypeNames...)
}

// IsReservedTypeName reports whether name denotes a built-in C type.
func IsReservedTypeName(name string) bool {
	_, ok := reservedTypeSet[name]
	return ok
}

// LookupReserved returns the type a reserved type name denotes.
func LookupReserved(name string) (Type, bool) {
	t, ok := reservedTypes[name]
	return t, ok
}

// IsDirectiveKey reports whether a typedecl key is reserved rather than a
// parameter name.
func IsDirectiveKey(key string) bool {
	return key == ReturnKey || key == NativeKey || key == ForeignKey
}
