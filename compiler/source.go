package compiler

import (
	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

// Entry names a method by its defining class and method name. The class of
// a standalone block is empty.
type Entry struct {
	Class string
	Name  string
}

func (e Entry) String() string {
	if e.Class == "" {
		return e.Name
	}
	return e.Class + "#" + e.Name
}

// Source supplies the tree of a method body. A tree must stay the same
// node for the same entry.
type Source interface {
	Resolve(e Entry) (ast.Node, bool)
}

// ClassSource is a Source that also defines the classes its methods
// belong to.
type ClassSource interface {
	Source
	Classes() []*types.Class
}

// Oracle reports the value a free name had when the tree was captured.
type Oracle interface {
	ValueOf(n ast.Node) (any, bool)
}

// Trees is a Source backed by a map.
type Trees map[Entry]ast.Node

func (t Trees) Resolve(e Entry) (ast.Node, bool) {
	n, ok := t[e]
	return n, ok
}

// Values is an Oracle backed by a map from nodes to captured values.
type Values map[ast.Node]any

func (v Values) ValueOf(n ast.Node) (any, bool) {
	x, ok := v[n]
	return x, ok
}

// Tree is a resolved, grammar-checked method body.
type Tree struct {
	Entry Entry
	Root  ast.Node
	// Context is the class whose instance is self in the body.
	Context *types.Class
}

// treeTable memoizes resolved trees per entry and per root node.
type treeTable struct {
	source Source
	byName map[Entry]*Tree
	byRoot map[ast.Node]*Tree
	order  []*Tree
}

func newTreeTable(src Source) *treeTable {
	return &treeTable{source: src, byName: map[Entry]*Tree{}, byRoot: map[ast.Node]*Tree{}}
}

// get returns the tree for e, asking the source and then the prelude.
// fresh is true the first time an entry is seen.
func (tt *treeTable) get(e Entry, ctx *types.Class) (t *Tree, fresh, found bool) {
	if t, ok := tt.byName[e]; ok {
		return t, false, true
	}
	var root ast.Node
	if tt.source != nil {
		root, found = tt.source.Resolve(e)
	}
	if !found {
		root, found = preludeTree(e.Name)
	}
	if !found {
		return nil, false, false
	}
	if t, ok := tt.byRoot[root]; ok {
		tt.byName[e] = t
		return t, false, true
	}
	t = &Tree{Entry: e, Root: ast.Link(root), Context: ctx}
	tt.byName[e] = t
	tt.byRoot[root] = t
	tt.order = append(tt.order, t)
	return t, true, true
}

// has reports whether e can be resolved without resolving it.
func (tt *treeTable) has(e Entry) bool {
	if _, ok := tt.byName[e]; ok {
		return true
	}
	if tt.source == nil {
		return false
	}
	_, ok := tt.source.Resolve(e)
	return ok
}
