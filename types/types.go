package types

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/thiremani/clift/ast"
)

// Type is a point of the type lattice. Equality and subtyping ignore roles
// (see Roled).
type Type interface {
	Name() string
	String() string
	Equal(t Type) bool
	// SubtypeOf reports t <= self's supertype chain, i.e. self <= t.
	SubtypeOf(t Type) bool
	// Supertype returns the next type up, or nil.
	Supertype() Type
	// Exact returns the exact host class this type denotes, or nil.
	Exact() *Class
	superOf(t Type) bool
}

// As strips roles from t and converts the result to T.
func As[T Type](t Type) (T, bool) {
	v, ok := Base(t).(T)
	return v, ok
}

type special struct {
	name string
	top  bool
}

func (s *special) Name() string    { return s.name }
func (s *special) String() string  { return s.name }
func (s *special) Supertype() Type { return nil }
func (s *special) Exact() *Class   { return nil }
func (s *special) Equal(t Type) bool {
	b, ok := As[*special](t)
	return ok && b == s
}
func (s *special) SubtypeOf(t Type) bool { return s.Equal(t) || t.superOf(s) }
func (s *special) superOf(t Type) bool   { return s.top }

var (
	// Dynamic is the top of the lattice: the static type is unknown.
	Dynamic Type = &special{name: "DynType", top: true}
	// Void is the type of statements that yield no value.
	Void Type = &special{name: "Void"}
)

// Class is the exact type of immediate instances of one host class.
// Subclasses are excluded; use CommonSuper to include them.
type Class struct {
	name  string
	super *Class
}

// NewClass registers a host class below super (nil means Object).
func NewClass(name string, super *Class) *Class {
	if super == nil {
		super = Object
	}
	return &Class{name: name, super: super}
}

// Superclass returns the parent class, nil for Object.
func (c *Class) Superclass() *Class { return c.super }

// IsSubclassOf reports whether c is o or below it.
func (c *Class) IsSubclassOf(o *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == o {
			return true
		}
	}
	return false
}

func (c *Class) Name() string   { return c.name }
func (c *Class) String() string { return c.name }
func (c *Class) Exact() *Class  { return c }
func (c *Class) Equal(t Type) bool {
	o, ok := As[*Class](t)
	return ok && o == c
}
func (c *Class) SubtypeOf(t Type) bool {
	if t.superOf(c) {
		return true
	}
	if o, ok := As[*Class](t); ok {
		return o == c || c == NilClass
	}
	return (&CommonSuper{Class: c}).SubtypeOf(t)
}
func (c *Class) superOf(Type) bool { return false }
func (c *Class) Supertype() Type   { return &CommonSuper{Class: c} }

var (
	Object       = &Class{name: "Object"}
	Module       = &Class{name: "Module", super: Object}
	NumericClass = &Class{name: "Numeric", super: Object}
	Integer      = &Class{name: "Integer", super: NumericClass}
	Float        = &Class{name: "Float", super: NumericClass}
	Float32      = &Class{name: "Float32", super: NumericClass}
	String       = &Class{name: "String", super: Object}
	Symbol       = &Class{name: "Symbol", super: Object}
	NilClass     = &Class{name: "NilClass", super: Object}
	TrueClass    = &Class{name: "TrueClass", super: Object}
	FalseClass   = &Class{name: "FalseClass", super: Object}
	Array        = &Class{name: "Array", super: Object}
	Range        = &Class{name: "Range", super: Object}
	Hash         = &Class{name: "Hash", super: Object}
	Proc         = &Class{name: "Proc", super: Object}
	Exception    = &Class{name: "Exception", super: Object}

	// Boolean is either TrueClass or FalseClass.
	Boolean Type = NewUnion(TrueClass, FalseClass)
	// Numeric is any subclass of Numeric.
	Numeric Type = &CommonSuper{Class: NumericClass}
)

// CommonSuper is the type of instances of Class or any of its subclasses.
type CommonSuper struct {
	Class *Class
}

func (c *CommonSuper) Name() string   { return c.Class.name + "+" }
func (c *CommonSuper) String() string { return c.Name() }
func (c *CommonSuper) Exact() *Class  { return nil }
func (c *CommonSuper) Equal(t Type) bool {
	o, ok := As[*CommonSuper](t)
	return ok && o.Class == c.Class
}
func (c *CommonSuper) SubtypeOf(t Type) bool {
	if t.superOf(c) {
		return true
	}
	o, ok := As[*CommonSuper](t)
	return ok && (c.Class.IsSubclassOf(o.Class) || c.Class == NilClass)
}
func (c *CommonSuper) superOf(Type) bool { return false }
func (c *CommonSuper) Supertype() Type {
	if c.Class.super == nil {
		return nil
	}
	return &CommonSuper{Class: c.Class.super}
}

// Sym is a symbol value.
type Sym string

// HostObject is implemented by captured values that know their host class.
type HostObject interface {
	Class() *Class
}

// ClassOf returns the host class of a captured value.
func ClassOf(v any) *Class {
	switch v := v.(type) {
	case nil:
		return NilClass
	case bool:
		if v {
			return TrueClass
		}
		return FalseClass
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer
	case float64:
		return Float
	case float32:
		return Float32
	case string:
		return String
	case Sym:
		return Symbol
	case HostObject:
		return v.Class()
	case Type:
		return Module
	case []any:
		return Array
	}
	return Object
}

// Instance is the type of one specific captured value.
type Instance struct {
	Value any
}

// NewInstance normalizes integer values to int64.
func NewInstance(v any) *Instance {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		v = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v = int64(rv.Uint())
	}
	return &Instance{Value: v}
}

func (i *Instance) Name() string   { return fmt.Sprint(i.Value) }
func (i *Instance) String() string { return i.Name() }
func (i *Instance) Exact() *Class  { return ClassOf(i.Value) }
func (i *Instance) Equal(t Type) bool {
	o, ok := As[*Instance](t)
	return ok && sameValue(o.Value, i.Value)
}
func (i *Instance) SubtypeOf(t Type) bool {
	if t.superOf(i) {
		return true
	}
	if o, ok := As[*Instance](t); ok && sameValue(o.Value, i.Value) {
		return true
	}
	return ClassOf(i.Value).SubtypeOf(t)
}
func (i *Instance) superOf(Type) bool { return false }
func (i *Instance) Supertype() Type   { return ClassOf(i.Value) }

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	switch ta.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// Union is a value of one of several types. Build with MakeUnion.
type Union struct {
	types []Type
}

// NewUnion builds a union without collapsing a single member.
func NewUnion(ts ...Type) *Union {
	var flat []Type
	for _, t := range ts {
		if u, ok := As[*Union](t); ok {
			flat = append(flat, u.types...)
		} else {
			flat = append(flat, Base(t))
		}
	}
	u := &Union{}
	for _, t := range flat {
		if !u.has(t) {
			u.types = append(u.types, t)
		}
	}
	return u
}

// MakeUnion flattens nested unions, removes duplicates, returns Dynamic
// when any member is Dynamic, and collapses a single member to itself.
func MakeUnion(ts ...Type) Type {
	for _, t := range ts {
		if Dynamic.Equal(t) {
			return Dynamic
		}
	}
	u := NewUnion(ts...)
	if len(u.types) == 1 {
		return u.types[0]
	}
	return u
}

// Types returns the members.
func (u *Union) Types() []Type { return append([]Type(nil), u.types...) }

func (u *Union) has(t Type) bool {
	for _, e := range u.types {
		if e.Equal(t) {
			return true
		}
	}
	return false
}

func (u *Union) Name() string {
	parts := make([]string, len(u.types))
	for i, e := range u.types {
		parts[i] = e.Name()
	}
	return "(" + strings.Join(parts, "|") + ")"
}
func (u *Union) String() string  { return u.Name() }
func (u *Union) Exact() *Class   { return nil }
func (u *Union) Supertype() Type { return nil }
func (u *Union) Equal(t Type) bool {
	o, ok := As[*Union](t)
	if !ok || len(o.types) != len(u.types) {
		return false
	}
	for _, e := range o.types {
		if !u.has(e) {
			return false
		}
	}
	return true
}
func (u *Union) SubtypeOf(t Type) bool {
	if Dynamic.Equal(t) {
		return true
	}
	for _, e := range u.types {
		if !e.SubtypeOf(t) {
			return false
		}
	}
	return true
}
func (u *Union) superOf(t Type) bool {
	for _, e := range u.types {
		if t.SubtypeOf(e) {
			return true
		}
	}
	return false
}

// Composite is a parametric type such as Array<Integer>.
type Composite struct {
	Class *Class
	Args  []Type
}

// ArrayOf returns the type of arrays whose elements are elem.
func ArrayOf(elem Type) *Composite {
	return &Composite{Class: Array, Args: []Type{elem}}
}

// ElementType returns the first type argument, or Dynamic.
func (c *Composite) ElementType() Type {
	if len(c.Args) == 0 {
		return Dynamic
	}
	return c.Args[0]
}

func (c *Composite) Name() string {
	parts := make([]string, len(c.Args))
	for i, e := range c.Args {
		parts[i] = e.Name()
	}
	return c.Class.name + "<" + strings.Join(parts, ",") + ">"
}
func (c *Composite) String() string  { return c.Name() }
func (c *Composite) Exact() *Class   { return c.Class }
func (c *Composite) Supertype() Type { return c.Class }
func (c *Composite) Equal(t Type) bool {
	o, ok := As[*Composite](t)
	return ok && o.Class == c.Class && equalTypes(o.Args, c.Args)
}
func (c *Composite) SubtypeOf(t Type) bool {
	if t.superOf(c) {
		return true
	}
	o, ok := As[*Composite](t)
	if !ok {
		return c.Class.SubtypeOf(t)
	}
	if o.Class != c.Class || len(o.Args) != len(c.Args) {
		return false
	}
	for i := range c.Args {
		if !c.Args[i].SubtypeOf(o.Args[i]) {
			return false
		}
	}
	return true
}
func (c *Composite) superOf(Type) bool { return false }

func equalTypes(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Method is the type of a method or block. Params is ignored when
// DynParams is set.
type Method struct {
	Params    []Type
	DynParams bool
	Ret       Type
	Def       ast.Node
}

// NewMethod returns the type of def taking params and returning result.
func NewMethod(def ast.Node, params []Type, result Type) *Method {
	return &Method{Params: params, Ret: result, Def: def}
}

// NewDynMethod returns a method type accepting any arguments.
func NewDynMethod(def ast.Node, result Type) *Method {
	return &Method{DynParams: true, Ret: result, Def: def}
}

// Result returns the result type tagged with the defining method.
func (m *Method) Result() Type { return AsResult(m.Ret, m.Def) }

func (m *Method) Name() string {
	var b strings.Builder
	if m.DynParams {
		b.WriteString(Dynamic.Name())
	} else {
		parts := make([]string, len(m.Params))
		for i, p := range m.Params {
			parts[i] = p.Name()
		}
		b.WriteString("(" + strings.Join(parts, ",") + ")")
	}
	b.WriteString("->")
	b.WriteString(m.Ret.Name())
	return b.String()
}
func (m *Method) String() string  { return m.Name() }
func (m *Method) Exact() *Class   { return nil }
func (m *Method) Supertype() Type { return nil }
func (m *Method) Equal(t Type) bool {
	o, ok := As[*Method](t)
	if !ok || !o.Ret.Equal(m.Ret) || o.DynParams != m.DynParams {
		return false
	}
	return m.DynParams || equalTypes(o.Params, m.Params)
}
func (m *Method) SubtypeOf(t Type) bool {
	if t.superOf(m) {
		return true
	}
	o, ok := As[*Method](t)
	if !ok || !m.Ret.SubtypeOf(o.Ret) {
		return false
	}
	if o.DynParams || m.DynParams {
		return m.DynParams
	}
	if len(o.Params) != len(m.Params) {
		return false
	}
	for i := range o.Params {
		if !o.Params[i].SubtypeOf(m.Params[i]) {
			return false
		}
	}
	return true
}
func (m *Method) superOf(Type) bool { return false }
