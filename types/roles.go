package types

import (
	"strings"

	"github.com/thiremani/clift/ast"
)

// Role is a modifier carried alongside a base type. Roles never affect
// equality or subtyping.
type Role uint8

const (
	// ResultRole marks the value returned by a call; it remembers the
	// callee's definition.
	ResultRole Role = 1 << iota
	// LocalVarRole marks the type of a local variable; it shares the
	// variable's Definition.
	LocalVarRole
	// NativeRole marks a method whose body is literal target-language text.
	NativeRole
	// ForeignRole marks a method implemented by an external symbol.
	ForeignRole
	// WithReturnRole marks a statement whose every path returns.
	WithReturnRole
)

var roleNames = []struct {
	role Role
	name string
}{
	{ResultRole, "result"},
	{LocalVarRole, "local"},
	{NativeRole, "native"},
	{ForeignRole, "foreign"},
	{WithReturnRole, "return"},
}

func (r Role) String() string {
	var parts []string
	for _, rn := range roleNames {
		if r&rn.role != 0 {
			parts = append(parts, rn.name)
		}
	}
	return strings.Join(parts, "+")
}

// Roled is a base type with one or more roles attached.
type Roled struct {
	base   Type
	roles  Role
	def    ast.Node
	local  *Definition
	native string
}

func (r *Roled) Name() string          { return r.base.Name() }
func (r *Roled) String() string        { return r.base.Name() + "{" + r.roles.String() + "}" }
func (r *Roled) Equal(t Type) bool     { return r.base.Equal(t) }
func (r *Roled) SubtypeOf(t Type) bool { return r.base.SubtypeOf(t) }
func (r *Roled) Supertype() Type       { return r.base.Supertype() }
func (r *Roled) Exact() *Class         { return r.base.Exact() }
func (r *Roled) superOf(t Type) bool   { return r.base.superOf(t) }

// Roles returns the attached role set.
func (r *Roled) Roles() Role { return r.roles }

// Base strips every role from t.
func Base(t Type) Type {
	if r, ok := t.(*Roled); ok {
		return r.base
	}
	return t
}

func addRole(t Type, role Role, set func(*Roled)) Type {
	var n Roled
	if r, ok := t.(*Roled); ok {
		n = *r
	} else {
		n.base = t
	}
	n.roles |= role
	set(&n)
	return &n
}

// AsResult tags t as the result of calling def.
func AsResult(t Type, def ast.Node) Type {
	return addRole(t, ResultRole, func(r *Roled) { r.def = def })
}

// AsLocalVar tags t as the type of a local variable defined by d.
func AsLocalVar(t Type, d *Definition) Type {
	return addRole(t, LocalVarRole, func(r *Roled) { r.local = d })
}

// AsNative tags a method type whose body is the given text.
func AsNative(t Type, body string) Type {
	return addRole(t, NativeRole, func(r *Roled) { r.native = body })
}

// AsForeign tags a method type implemented outside the generated code.
func AsForeign(t Type) Type {
	return addRole(t, ForeignRole, func(*Roled) {})
}

// AsWithReturn tags the type of a statement that always returns.
func AsWithReturn(t Type) Type {
	return addRole(t, WithReturnRole, func(*Roled) {})
}

// HasRole reports whether t carries role.
func HasRole(t Type, role Role) bool {
	r, ok := t.(*Roled)
	return ok && r.roles&role != 0
}

// ResultDef returns the definition of the method whose result t is.
// The definition is nil for builtin and foreign methods.
func ResultDef(t Type) (ast.Node, bool) {
	if !HasRole(t, ResultRole) {
		return nil, false
	}
	return t.(*Roled).def, true
}

// LocalVarOf returns the definition cell of a local variable type.
func LocalVarOf(t Type) (*Definition, bool) {
	if !HasRole(t, LocalVarRole) {
		return nil, false
	}
	return t.(*Roled).local, true
}

// NativeBody returns the target-language body of a native method type.
func NativeBody(t Type) (string, bool) {
	if !HasRole(t, NativeRole) {
		return "", false
	}
	return t.(*Roled).native, true
}

// Strip removes the given roles from t.
func Strip(t Type, roles Role) Type {
	r, ok := t.(*Roled)
	if !ok || r.roles&roles == 0 {
		return t
	}
	n := *r
	n.roles &^= roles
	if n.roles == 0 {
		return n.base
	}
	return &n
}

// Definition records where a local variable received its value. A variable
// assigned at more than one site is ambiguous (Undef).
type Definition struct {
	site  ast.Node
	undef bool
}

// NewDefinition returns a definition at site; nil means no initial value.
func NewDefinition(site ast.Node) *Definition {
	return &Definition{site: site}
}

// Assign records another assignment. The first one fixes the site, any
// later one makes the definition ambiguous.
func (d *Definition) Assign(site ast.Node) {
	if d.site == nil && !d.undef {
		d.site = site
		return
	}
	d.site = nil
	d.undef = true
}

// Site returns the defining node, nil when unset or ambiguous.
func (d *Definition) Site() ast.Node { return d.site }

// Undef reports whether the variable was assigned more than once.
func (d *Definition) Undef() bool { return d.undef }
