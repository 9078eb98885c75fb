package build

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/thiremani/clift/compiler"
	"github.com/thiremani/clift/types"
)

// Library is a loaded artifact.
type Library struct {
	Manifest *Manifest
	Symbols  map[string]*Symbol

	handle uintptr
}

// Lookup returns the symbol exported under name.
func (l *Library) Lookup(name string) (*Symbol, bool) {
	s, ok := l.Symbols[name]
	return s, ok
}

// Symbol is an exported function bound to a Go function value.
type Symbol struct {
	Name string
	Type *types.Method

	fn reflect.Value
}

var (
	int32Type   = reflect.TypeOf(int32(0))
	float64Type = reflect.TypeOf(float64(0))
	float32Type = reflect.TypeOf(float32(0))
	stringType  = reflect.TypeOf("")
	pointerType = reflect.TypeOf(unsafe.Pointer(nil))
)

// goType returns the Go type a C parameter or result of type t is passed as.
// Arrays are passed as a pointer to their first element.
func goType(t types.Type) (reflect.Type, error) {
	if c, ok := types.As[*types.Composite](t); ok && c.Class == types.Array {
		return pointerType, nil
	}
	switch t.Exact() {
	case types.Integer:
		return int32Type, nil
	case types.Float:
		return float64Type, nil
	case types.Float32:
		return float32Type, nil
	case types.String:
		return stringType, nil
	}
	return nil, fmt.Errorf("no Go type for %s", t.Name())
}

// funcType returns the Go function type of mt.
func funcType(mt *types.Method) (reflect.Type, error) {
	in := make([]reflect.Type, len(mt.Params))
	for i, p := range mt.Params {
		t, err := goType(p)
		if err != nil {
			return nil, err
		}
		in[i] = t
	}
	var out []reflect.Type
	if !types.Void.Equal(mt.Ret) {
		t, err := goType(mt.Ret)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return reflect.FuncOf(in, out, false), nil
}

// signatureType decodes an export's signature and checks its name.
func signatureType(x ManifestExport) (*types.Method, error) {
	name, mt, err := compiler.Unmangle(x.Signature)
	if err != nil {
		return nil, errors.Wrapf(err, "bad signature for %s", x.Name)
	}
	if name != x.Name {
		return nil, errors.Errorf("signature %s does not name %s", x.Signature, x.Name)
	}
	return mt, nil
}

// Call calls the function. Numbers are converted to the parameter type,
// and an array parameter takes a non-empty slice of its element type.
// The result is nil for a Void function.
func (s *Symbol) Call(args ...any) (any, error) {
	ft := s.fn.Type()
	if len(args) != ft.NumIn() {
		return nil, errors.Errorf("%s: wrong number of arguments: %d for %d", s.Name, len(args), ft.NumIn())
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := argValue(s.Type.Params[i], ft.In(i), a)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: argument %d", s.Name, i+1)
		}
		in[i] = v
	}
	out := s.fn.Call(in)
	runtime.KeepAlive(args)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func argValue(param types.Type, t reflect.Type, a any) (reflect.Value, error) {
	v := reflect.ValueOf(a)
	if t == pointerType {
		c, _ := types.As[*types.Composite](param)
		elem, err := goType(c.ElementType())
		if err != nil {
			return reflect.Value{}, err
		}
		if v.Kind() != reflect.Slice || v.Type().Elem() != elem {
			return reflect.Value{}, errors.Errorf("want []%s, got %T", elem, a)
		}
		if v.Len() == 0 {
			return reflect.Value{}, errors.New("empty array")
		}
		return reflect.ValueOf(v.Index(0).Addr().UnsafePointer()), nil
	}
	if !v.IsValid() || !v.Type().ConvertibleTo(t) || (t == stringType) != (v.Kind() == reflect.String) {
		return reflect.Value{}, errors.Errorf("want %s, got %T", t, a)
	}
	return v.Convert(t), nil
}
