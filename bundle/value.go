package bundle

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/thiremani/clift/compiler"
	"github.com/thiremani/clift/types"
)

// Value kinds.
const (
	IntValue      = "int"
	FloatValue    = "float"
	Float32Value  = "float32"
	StringValue   = "string"
	BoolValue     = "bool"
	NilValue      = "nil"
	SymbolValue   = "symbol"
	TypeValue     = "type"
	CArrayValue   = "carray"
	OclArrayValue = "oclarray"
)

// Value is a captured value. Text holds the string, symbol or type name,
// or the element class of a CArray. Dims is the shape of an array, and Ref
// numbers it within the bundle.
type Value struct {
	Kind  string  `cbor:"kind"`
	Ref   int     `cbor:"ref,omitempty"`
	Int   int64   `cbor:"int,omitempty"`
	Float float64 `cbor:"float,omitempty"`
	Text  string  `cbor:"text,omitempty"`
	Bool  bool    `cbor:"bool,omitempty"`
	Dims  []int   `cbor:"dims,omitempty"`
}

var builtinClasses = []*types.Class{
	types.Object, types.Module, types.NumericClass, types.Integer, types.Float, types.Float32,
	types.String, types.Symbol, types.NilClass, types.TrueClass, types.FalseClass, types.Array,
	types.Range, types.Hash, types.Proc, types.Exception, compiler.CArrayClass, compiler.OclArrayClass,
}

func (e *encoder) value(v any) (*Value, error) {
	if obj, ok := v.(compiler.ArrayObject); ok {
		ref, seen := e.refs[obj]
		if !seen {
			ref = len(e.refs) + 1
			e.refs[obj] = ref
		}
		val, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		val.Ref = ref
		return val, nil
	}
	return encodeValue(v)
}

func encodeValue(v any) (*Value, error) {
	switch v := v.(type) {
	case nil:
		return &Value{Kind: NilValue}, nil
	case bool:
		return &Value{Kind: BoolValue, Bool: v}, nil
	case float64:
		return &Value{Kind: FloatValue, Float: v}, nil
	case float32:
		return &Value{Kind: Float32Value, Float: float64(v)}, nil
	case string:
		return &Value{Kind: StringValue, Text: v}, nil
	case types.Sym:
		return &Value{Kind: SymbolValue, Text: string(v)}, nil
	case *types.Class:
		return &Value{Kind: TypeValue, Text: v.Name()}, nil
	case *compiler.CArray:
		return &Value{Kind: CArrayValue, Text: v.Elem.Name(), Dims: v.Dims}, nil
	case *compiler.OclArray:
		return &Value{Kind: OclArrayValue, Dims: []int{v.Size}}, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Value{Kind: IntValue, Int: rv.Int()}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return &Value{Kind: IntValue, Int: int64(rv.Uint())}, nil
	}
	return nil, errors.Errorf("cannot encode a captured %T", v)
}

// value decodes v. Arrays with the same Ref decode to the same object.
func (d *decoder) value(v *Value) (any, error) {
	if obj, ok := d.objects[v.Ref]; ok && v.Ref != 0 {
		return obj, nil
	}
	x, err := d.decodeValue(v)
	if err != nil {
		return nil, err
	}
	if obj, ok := x.(compiler.ArrayObject); ok && v.Ref != 0 {
		if d.objects == nil {
			d.objects = map[int]compiler.ArrayObject{}
		}
		d.objects[v.Ref] = obj
	}
	return x, nil
}

func (d *decoder) decodeValue(v *Value) (any, error) {
	switch v.Kind {
	case NilValue:
		return nil, nil
	case BoolValue:
		return v.Bool, nil
	case IntValue:
		return v.Int, nil
	case FloatValue:
		return v.Float, nil
	case Float32Value:
		return float32(v.Float), nil
	case StringValue:
		return v.Text, nil
	case SymbolValue:
		return types.Sym(v.Text), nil
	case TypeValue:
		if t, ok := types.LookupReserved(v.Text); ok {
			return t, nil
		}
		if c, ok := d.classes[v.Text]; ok {
			return c, nil
		}
		return nil, errors.Errorf("unknown type %s", v.Text)
	case CArrayValue:
		elem, ok := d.classes[v.Text]
		if !ok || (elem != types.Integer && elem != types.Float && elem != types.Float32) {
			return nil, errors.Errorf("bad CArray element type %q", v.Text)
		}
		if len(v.Dims) == 0 {
			return nil, errors.New("CArray without dimensions")
		}
		return compiler.NewCArray(elem, v.Dims...), nil
	case OclArrayValue:
		if len(v.Dims) != 1 {
			return nil, errors.Errorf("OclArray needs one dimension, got %d", len(v.Dims))
		}
		return compiler.NewOclArray(v.Dims[0]), nil
	}
	return nil, errors.Errorf("unknown value kind %q", v.Kind)
}
