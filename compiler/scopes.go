package compiler

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/thiremani/clift/types"
)

// Keys of bindings that are not variables.
const (
	returnKey  = "#return"
	foreignKey = "#foreign"
	nativeKey  = "#native"
)

func internalKey(name string) bool {
	return name == returnKey || name == foreignKey || name == nativeKey
}

// FreeVar is a variable a block reads from an enclosing scope.
type FreeVar struct {
	Name string
	Type types.Type
}

type freeVars struct {
	seen  *set.Set[string]
	order []FreeVar
}

// TypeEnv maps names to types. Lookup walks the parent chain, binding only
// touches the receiver. A base environment has no parent and starts the
// scope chain of a method body.
type TypeEnv struct {
	parent  *TypeEnv
	names   map[string]types.Type
	order   []string
	context *types.Class
	free    *freeVars
}

// NewBaseEnv returns a root environment whose self is an instance of ctx.
func NewBaseEnv(ctx *types.Class) *TypeEnv {
	return &TypeEnv{names: map[string]types.Type{}, context: ctx}
}

// Child returns a nested scope sharing e's context.
func (e *TypeEnv) Child() *TypeEnv {
	return &TypeEnv{parent: e, names: map[string]types.Type{}, context: e.context}
}

// NewBase returns an unchained scope for a callee body. A nil ctx keeps
// e's context.
func (e *TypeEnv) NewBase(ctx *types.Class) *TypeEnv {
	if ctx == nil {
		ctx = e.context
	}
	return NewBaseEnv(ctx)
}

// FreeVarFinder returns a child scope that records every variable resolved
// through its parent.
func (e *TypeEnv) FreeVarFinder() *TypeEnv {
	c := e.Child()
	c.free = &freeVars{seen: set.New[string](4)}
	return c
}

// Context returns the class of self.
func (e *TypeEnv) Context() *types.Class { return e.context }

// Bind sets name in this scope.
func (e *TypeEnv) Bind(name string, t types.Type) {
	if _, ok := e.names[name]; !ok {
		e.order = append(e.order, name)
	}
	e.names[name] = t
}

// LookupLocal consults this scope only.
func (e *TypeEnv) LookupLocal(name string) (types.Type, bool) {
	t, ok := e.names[name]
	return t, ok
}

// Lookup searches this scope and then the enclosing ones.
func (e *TypeEnv) Lookup(name string) (types.Type, bool) {
	if t, ok := e.names[name]; ok {
		return t, true
	}
	if e.parent == nil {
		return nil, false
	}
	t, ok := e.parent.Lookup(name)
	if ok && e.free != nil {
		e.recordFree(name, t)
	}
	return t, ok
}

// results of calls and internal keys are not captured
func (e *TypeEnv) recordFree(name string, t types.Type) {
	if internalKey(name) || types.HasRole(t, types.ResultRole) {
		return
	}
	if e.free.seen.Insert(name) {
		e.free.order = append(e.free.order, FreeVar{Name: name, Type: t})
	}
}

// FreeVars returns the captured variables in first-use order.
func (e *TypeEnv) FreeVars() []FreeVar {
	if e.free == nil {
		return nil
	}
	return append([]FreeVar(nil), e.free.order...)
}

// Each visits this scope's bindings in insertion order, skipping internal
// keys.
func (e *TypeEnv) Each(fn func(name string, t types.Type)) {
	for _, name := range e.order {
		if !internalKey(name) {
			fn(name, e.names[name])
		}
	}
}
