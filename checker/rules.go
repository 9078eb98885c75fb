package checker

import "github.com/thiremani/clift/ast"

// Handler is a rule body. c is the concrete checker running the rule.
type Handler[C, E, R any] func(c C, n ast.Node, env E) (R, error)

type entry[C, E, R any] struct {
	handle Handler[C, E, R]
	layer  *Rules[C, E, R]
}

// Rules is one layer of handlers. A layer created by Extend sees every
// handler of its ancestors unless it registers its own for the same kind
// or tag.
type Rules[C, E, R any] struct {
	name   string
	parent *Rules[C, E, R]
	kinds  map[ast.Kind]entry[C, E, R]
	tags   map[string]entry[C, E, R]
}

// NewRules returns an empty root layer.
func NewRules[C, E, R any](name string) *Rules[C, E, R] {
	return &Rules[C, E, R]{
		name:  name,
		kinds: map[ast.Kind]entry[C, E, R]{},
		tags:  map[string]entry[C, E, R]{},
	}
}

// Extend returns a child layer of r.
func (r *Rules[C, E, R]) Extend(name string) *Rules[C, E, R] {
	child := NewRules[C, E, R](name)
	child.parent = r
	return child
}

// On registers h for nodes of kind k and the kinds below it.
func (r *Rules[C, E, R]) On(k ast.Kind, h Handler[C, E, R]) *Rules[C, E, R] {
	r.kinds[k] = entry[C, E, R]{h, r}
	return r
}

// OnTag registers h for nodes carrying the user tag.
func (r *Rules[C, E, R]) OnTag(tag string, h Handler[C, E, R]) *Rules[C, E, R] {
	r.tags[tag] = entry[C, E, R]{h, r}
	return r
}

func (r *Rules[C, E, R]) Name() string { return r.name }

// Parent returns the layer r extends, nil for a root layer.
func (r *Rules[C, E, R]) Parent() *Rules[C, E, R] { return r.parent }

func (r *Rules[C, E, R]) tag(tag string) (entry[C, E, R], bool) {
	for l := r; l != nil; l = l.parent {
		if e, ok := l.tags[tag]; ok {
			return e, true
		}
	}
	return entry[C, E, R]{}, false
}

func (r *Rules[C, E, R]) kind(k ast.Kind) (entry[C, E, R], bool) {
	for l := r; l != nil; l = l.parent {
		if e, ok := l.kinds[k]; ok {
			return e, true
		}
	}
	return entry[C, E, R]{}, false
}

// lookup tries the node's tag first, then its kind and the kind chain.
func (r *Rules[C, E, R]) lookup(n ast.Node) (entry[C, E, R], bool) {
	if t := n.Tag(); t != "" {
		if e, ok := r.tag(t); ok {
			return e, true
		}
	}
	k := n.Kind()
	for {
		if e, ok := r.kind(k); ok {
			return e, true
		}
		p, ok := k.Parent()
		if !ok {
			return entry[C, E, R]{}, false
		}
		k = p
	}
}
