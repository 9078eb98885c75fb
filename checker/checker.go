package checker

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/token"
)

var log = commonlog.GetLogger("clift.checker")

type deferred[E any] struct {
	node ast.Node
	env  E
	fn   func() error
}

// Engine dispatches nodes to the handlers of a rule layer. It is not safe
// for concurrent use.
type Engine[C, E, R any] struct {
	rules *Rules[C, E, R]
	self  C
	group string

	current  ast.Node
	env      E
	declarer *Rules[C, E, R]
	queue    []deferred[E]
}

// New returns an engine running rules on behalf of self. Errors are
// reported under group ("type", "codegen").
func New[C, E, R any](rules *Rules[C, E, R], self C, group string) *Engine[C, E, R] {
	return &Engine[C, E, R]{rules: rules, self: self, group: group}
}

// Rules returns the layer the engine dispatches from.
func (e *Engine[C, E, R]) Rules() *Rules[C, E, R] { return e.rules }

// Group returns the error group.
func (e *Engine[C, E, R]) Group() string { return e.group }

// Current returns the node whose handler is running.
func (e *Engine[C, E, R]) Current() ast.Node { return e.current }

// Env returns the environment of the running handler.
func (e *Engine[C, E, R]) Env() E { return e.env }

// Check runs the handler for n. A nil node yields the zero result.
func (e *Engine[C, E, R]) Check(n ast.Node, env E) (R, error) {
	var zero R
	if n == nil {
		return zero, nil
	}
	ent, ok := e.rules.lookup(n)
	if !ok {
		return zero, e.Errorf(n, "no rule for %s", n.Kind())
	}
	return e.apply(ent, n, env)
}

// Proceed runs the handler the running handler's layer overrides.
func (e *Engine[C, E, R]) Proceed(n ast.Node, env E) (R, error) {
	var zero R
	if e.declarer == nil || e.declarer.parent == nil {
		return zero, e.Errorf(n, "no more rule, cannot proceed")
	}
	ent, ok := e.declarer.parent.lookup(n)
	if !ok {
		return zero, e.Errorf(n, "no more rule, cannot proceed")
	}
	return e.apply(ent, n, env)
}

func (e *Engine[C, E, R]) apply(ent entry[C, E, R], n ast.Node, env E) (R, error) {
	oldNode, oldEnv, oldDecl := e.current, e.env, e.declarer
	e.current, e.env, e.declarer = n, env, ent.layer
	defer func() {
		e.current, e.env, e.declarer = oldNode, oldEnv, oldDecl
	}()
	return ent.handle(e.self, n, env)
}

// Defer queues fn to run after the top-level check. fn sees the node and
// environment that were current when it was queued.
func (e *Engine[C, E, R]) Defer(fn func() error) {
	e.queue = append(e.queue, deferred[E]{e.current, e.env, fn})
}

// Pending returns the number of queued checks.
func (e *Engine[C, E, R]) Pending() int { return len(e.queue) }

// CheckAll checks n and then drains the deferred queue in order. Checks
// queued while draining run in the same pass.
func (e *Engine[C, E, R]) CheckAll(n ast.Node, env E) (R, error) {
	res, err := e.Check(n, env)
	if err != nil {
		e.queue = nil
		return res, err
	}
	if err := e.Drain(); err != nil {
		return res, err
	}
	return res, nil
}

// Discard drops the queued checks.
func (e *Engine[C, E, R]) Discard() { e.queue = nil }

// Drain runs every queued check once.
func (e *Engine[C, E, R]) Drain() error {
	for len(e.queue) > 0 {
		d := e.queue[0]
		e.queue = e.queue[1:]
		oldNode, oldEnv := e.current, e.env
		e.current, e.env = d.node, d.env
		err := d.fn()
		e.current, e.env = oldNode, oldEnv
		if err != nil {
			e.queue = nil
			return err
		}
	}
	return nil
}

// Errorf builds an error located at n.
func (e *Engine[C, E, R]) Errorf(n ast.Node, format string, args ...any) error {
	var tok token.Token
	if n != nil {
		tok = n.Tok()
	}
	ce := &token.CompileError{Token: tok, Group: e.group, Msg: fmt.Sprintf(format, args...)}
	log.Debugf("%s", ce)
	return ce
}
