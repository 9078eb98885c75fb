package syntax

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/token"
)

var log = commonlog.GetLogger("clift.syntax")

// Rule binds a constraint to a kind name ("Binary") or a user type name
// ("expr").
type Rule struct {
	Name string
	Expr Expr
}

// Define returns a rule for the user type name.
func Define(name string, e Expr) Rule { return Rule{name, e} }

// ForKind returns a rule for nodes of kind k and, unless they have their
// own rule, the kinds below it.
func ForKind(k ast.Kind, e Expr) Rule { return Rule{k.String(), e} }

// Grammar is a set of rules. A subtree passes when no rule applies to it.
type Grammar struct {
	rules map[string]Expr
}

// New returns a grammar holding rules.
func New(rules ...Rule) *Grammar {
	g := &Grammar{rules: make(map[string]Expr, len(rules))}
	g.AddRules(rules...)
	return g
}

// AddRules adds or replaces rules. Tags already placed on trees are not
// affected.
func (g *Grammar) AddRules(rules ...Rule) *Grammar {
	for _, r := range rules {
		g.rules[r.Name] = r.Expr
	}
	return g
}

// Merge adds every rule of other.
func (g *Grammar) Merge(other *Grammar) *Grammar {
	for name, e := range other.rules {
		g.rules[name] = e
	}
	return g
}

// Clone returns an independent copy of the grammar.
func (g *Grammar) Clone() *Grammar {
	return New().Merge(g)
}

// Rule returns the constraint registered under name.
func (g *Grammar) Rule(name string) (Expr, bool) {
	e, ok := g.rules[name]
	return e, ok
}

func (g *Grammar) find(k ast.Kind) (string, Expr) {
	for {
		if e, ok := g.rules[k.String()]; ok {
			return k.String(), e
		}
		p, ok := k.Parent()
		if !ok {
			return "", nil
		}
		k = p
	}
}

// Check verifies tree against the rule for its kind and tags every node it
// matches. The error names the first location that did not match.
func (g *Grammar) Check(tree ast.Node) error {
	c := &checker{g: g}
	name, e := g.find(tree.Kind())
	switch {
	case e == nil:
		c.errorFound(tree, tree, "no rule for "+tree.Kind().String())
	case c.checkExpr(e, tree, false):
		if tree.Tag() == "" {
			tree.SetTag(name)
		}
		return nil
	default:
		c.errorFound(tree, tree, "")
	}
	return c.err()
}

// CheckTag verifies n against the rule for the user type tag.
func (g *Grammar) CheckTag(tag string, n ast.Node) error {
	c := &checker{g: g}
	if c.checkRuleTag(tag, n, false) {
		return nil
	}
	return c.err()
}

type checker struct {
	g   *Grammar
	loc *token.Token
	msg string

	// trail records every tag set so a failed alternative can be undone.
	trail []retag
}

type retag struct {
	n   ast.Node
	old string
}

func (c *checker) setTag(n ast.Node, tag string) {
	c.trail = append(c.trail, retag{n, n.Tag()})
	n.SetTag(tag)
}

// undo restores the tags set since mark, newest first.
func (c *checker) undo(mark int) {
	for i := len(c.trail) - 1; i >= mark; i-- {
		c.trail[i].n.SetTag(c.trail[i].old)
	}
	c.trail = c.trail[:mark]
}

func (c *checker) err() error {
	msg := strings.TrimPrefix(c.msg, ", ")
	if msg == "" {
		msg = "does not match the grammar"
	}
	var loc token.Token
	if c.loc != nil {
		loc = *c.loc
	}
	return &token.CompileError{Token: loc, Group: "syntax", Msg: msg}
}

func locOf(v any) (token.Token, bool) {
	switch v := v.(type) {
	case ast.Node:
		return v.Tok(), true
	case ast.Pair:
		if v.Key != nil {
			return v.Key.Tok(), true
		}
	case []ast.Node:
		if len(v) > 0 {
			return v[0].Tok(), true
		}
	}
	return token.Token{}, false
}

// errorFound latches the first failure location and prepends msg. It
// always returns false.
func (c *checker) errorFound(a, b any, msg string) bool {
	if c.loc == nil {
		loc, ok := locOf(a)
		if !ok {
			loc, _ = locOf(b)
		}
		c.loc = &loc
	}
	if msg != "" {
		c.msg = ", " + msg + c.msg
	}
	return false
}

func (c *checker) errorCleared() bool {
	c.loc = nil
	c.msg = ""
	return true
}

// checkRule checks n against the rule for k, or for n's own kind when the
// check is made on a field value.
func (c *checker) checkRule(k ast.Kind, n ast.Node, inFields bool) bool {
	if inFields {
		k = n.Kind()
	}
	name, e := c.g.find(k)
	if e == nil {
		return true
	}
	if c.checkExpr(e, n, false) {
		if n.Tag() == "" && k == n.Kind() {
			c.setTag(n, name)
		}
		return true
	}
	log.Debugf("rule %s failed at %s", name, n.Tok().Position())
	return c.errorFound(n, n, "")
}

func (c *checker) checkRuleTag(name string, v any, inFields bool) bool {
	e, ok := c.g.rules[name]
	if !ok {
		return c.errorFound(v, v, "no rule for "+name)
	}
	if c.tagAndCheck(name, e, v, inFields) {
		return true
	}
	return c.errorFound(v, v, "")
}

func (c *checker) tagAndCheck(name string, e Expr, v any, inFields bool) bool {
	switch v.(type) {
	case []ast.Node, []ast.Pair:
		return false
	}
	mark := len(c.trail)
	if n, ok := v.(ast.Node); ok {
		c.setTag(n, name)
	}
	if c.checkExpr(e, v, inFields) {
		return true
	}
	c.undo(mark)
	return false
}

func (c *checker) checkExpr(e Expr, v any, inFields bool) bool {
	o, ok := e.(orExpr)
	if !ok {
		return c.checkAdd(e, v, inFields)
	}
	mark := len(c.trail)
	if c.checkExpr(o.alts[0], v, inFields) {
		return true
	}
	c.undo(mark)
	for _, alt := range o.alts[1:] {
		if c.checkAdd(alt, v, inFields) {
			return c.errorCleared()
		}
		c.undo(mark)
	}
	return false
}

func (c *checker) checkAdd(e Expr, v any, inFields bool) bool {
	w, ok := e.(withExpr)
	if !ok {
		return c.checkOperand(e, v, inFields)
	}
	for _, p := range w.parts {
		if !c.checkOperand(p, v, inFields) {
			return false
		}
	}
	return true
}

func (c *checker) checkOperand(e Expr, v any, inFields bool) bool {
	switch e := e.(type) {
	case kindExpr:
		n, ok := v.(ast.Node)
		return ok && n.Kind().IsA(e.kind) && c.checkRule(e.kind, n, inFields)
	case nilExpr:
		return isEmpty(v)
	case tagExpr:
		return c.checkRuleTag(e.name, v, inFields)
	case fieldsExpr:
		return c.checkFields(e, v)
	case orExpr, withExpr:
		return c.checkExpr(e, v, inFields)
	}
	return false
}

func describe(n ast.Node) string {
	if n.Tag() != "" {
		return n.Tag()
	}
	return n.Kind().String()
}

func (c *checker) checkFields(e fieldsExpr, v any) bool {
	n, ok := v.(ast.Node)
	if !ok {
		return false
	}
	for _, f := range e.fields {
		fv, ok := n.Field(f.Name)
		if !ok {
			return c.errorFound(n, n, fmt.Sprintf("unknown field %s in %s (wrong grammar?)", f.Name, n.Kind()))
		}
		if !c.checkOr(f.Con, fv) {
			return c.errorFound(fv, n, fmt.Sprintf("%s in %s?", f.Name, describe(n)))
		}
	}
	return true
}

func (c *checker) checkOr(e Expr, v any) bool {
	o, ok := e.(orExpr)
	if !ok {
		return c.checkConstraint(e, v)
	}
	mark := len(c.trail)
	if c.checkOr(o.alts[0], v) {
		return true
	}
	c.undo(mark)
	for _, alt := range o.alts[1:] {
		if c.checkConstraint(alt, v) {
			return c.errorCleared()
		}
		c.undo(mark)
	}
	return false
}

func (c *checker) checkConstraint(e Expr, v any) bool {
	switch e := e.(type) {
	case litExpr:
		s, ok := v.(string)
		return ok && s == e.value
	case nilExpr:
		return isEmpty(v)
	case kindExpr:
		n, ok := oneElem(v).(ast.Node)
		return ok && n.Kind().IsA(e.kind) && c.checkRule(n.Kind(), n, true)
	case tagExpr:
		return c.checkRuleTag(e.name, oneElem(v), true)
	case classExpr:
		return e.match(oneElem(v))
	case optExpr:
		return v == nil || c.checkOr(e.x, v)
	case orExpr:
		return c.checkOr(e, v)
	case arrayExpr:
		return c.checkArray(e, v)
	}
	return false
}

func (c *checker) checkArray(e arrayExpr, v any) bool {
	list, ok := elements(v)
	if !ok {
		return false
	}
	switch len(e.elems) {
	case 0:
		return len(list) == 0
	case 1:
		for _, el := range list {
			if !c.checkOneElem(e.elems[0], el) {
				return c.errorFound(el, v, "")
			}
		}
		return true
	}
	return len(e.elems)-1 <= len(list) && c.checkElems(e.elems, list, v)
}

func (c *checker) checkElems(cons []Expr, list []any, v any) bool {
	at := func(i int) any {
		if i < len(list) {
			return list[i]
		}
		return nil
	}
	i := 0
	for _, con := range cons[:len(cons)-1] {
		mark := len(c.trail)
		if c.checkOneElem(con, at(i)) {
			i++
		} else if _, skip := con.(optExpr); !skip {
			return c.errorFound(at(i), v, "")
		} else {
			c.undo(mark)
		}
	}
	last := cons[len(cons)-1]
	for ; i < len(list); i++ {
		if !c.checkOneElem(last, list[i]) {
			return c.errorFound(list[i], v, "")
		}
	}
	return true
}

func (c *checker) checkOneElem(con Expr, el any) bool {
	p, ok := el.(ast.Pair)
	if !ok {
		return c.checkOr(con, el)
	}
	pc, ok := con.(pairExpr)
	return ok && c.checkOr(pc.value, optNode(p.Value)) && c.checkOr(pc.key, optNode(p.Key))
}

func optNode(n ast.Node) any {
	if n == nil {
		return nil
	}
	return n
}

func elements(v any) ([]any, bool) {
	switch v := v.(type) {
	case []ast.Node:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []ast.Pair:
		out := make([]any, len(v))
		for i, p := range v {
			out[i] = p
		}
		return out, true
	}
	return nil, false
}

// oneElem lets a single-element list match a scalar constraint.
func oneElem(v any) any {
	if l, ok := v.([]ast.Node); ok && len(l) == 1 {
		return l[0]
	}
	return v
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case []ast.Node:
		return len(v) == 0
	case []ast.Pair:
		return len(v) == 0
	}
	return false
}
