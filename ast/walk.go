package ast

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children
// of node with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(n Node) (w Visitor)
}

// Walk traverses a tree in depth-first order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if v = v.Visit(n); v == nil {
		return
	}
	for _, c := range n.Children() {
		Walk(v, c)
	}
	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(n Node) Visitor {
	if n != nil && f(n) {
		return f
	}
	return nil
}

// Inspect calls f for every node of the tree in depth-first order until f
// returns false for a node, which skips that node's children.
func Inspect(n Node, f func(Node) bool) {
	Walk(inspector(f), n)
}

// Link sets the parent of every node below root. The root's own parent is
// left untouched so a subtree can be relinked in place.
func Link(root Node) Node {
	if root == nil {
		return nil
	}
	for _, c := range root.Children() {
		c.setParent(root)
		Link(c)
	}
	return root
}

// Enclosing returns the nearest ancestor of n whose kind is kind or below.
func Enclosing(n Node, kind Kind) Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind().IsA(kind) {
			return p
		}
	}
	return nil
}

// Root returns the topmost ancestor of n.
func Root(n Node) Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

// ClearTags removes every user tag in the tree.
func ClearTags(root Node) {
	Inspect(root, func(n Node) bool {
		n.SetTag("")
		return true
	})
}
