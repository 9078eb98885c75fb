package compiler

import (
	"fmt"

	"github.com/thiremani/clift/types"
)

// Host classes of captured arrays.
var (
	CArrayClass   = types.NewClass("CArray", nil)
	OclArrayClass = types.NewClass("OclArray", nil)
)

// ArrayObject is a captured fixed-size array referenced as an instance
// variable. It becomes a global of the generated code.
type ArrayObject interface {
	types.HostObject
	ElemType() types.Type
	Sizes() []int
}

// CArray is a host-side multi-dimensional array of Integer or Float.
type CArray struct {
	Elem *types.Class
	Dims []int
}

// NewCArray returns an array of the given element class and shape.
func NewCArray(elem *types.Class, dims ...int) *CArray {
	return &CArray{Elem: elem, Dims: dims}
}

func (a *CArray) Class() *types.Class   { return CArrayClass }
func (a *CArray) ElemType() types.Type { return a.Elem }
func (a *CArray) Sizes() []int         { return a.Dims }
func (a *CArray) String() string       { return fmt.Sprintf("CArray<%s>%v", a.Elem, a.Dims) }

// OclArray is a device buffer of Float32 values.
type OclArray struct {
	Size int
}

func NewOclArray(size int) *OclArray { return &OclArray{Size: size} }

func (a *OclArray) Class() *types.Class   { return OclArrayClass }
func (a *OclArray) ElemType() types.Type { return types.Float32 }
func (a *OclArray) Sizes() []int         { return []int{a.Size} }
func (a *OclArray) String() string       { return fmt.Sprintf("OclArray[%d]", a.Size) }
