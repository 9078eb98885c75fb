package compiler

import (
	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

// Typing layers. inferRules types the whole host language; clangRules
// narrows it to the C subset and openclRules adds device arrays and
// kernels.
var (
	inferRules  = newTypeRules("infer")
	clangRules  = inferRules.Extend("clang")
	openclRules = clangRules.Extend("opencl")
)

func init() {
	inferRules.
		On(ast.NameKind, (*TypeChecker).inferName).
		On(ast.VariableCallKind, (*TypeChecker).inferVariableCall).
		On(ast.ConstKind, (*TypeChecker).inferConst).
		On(ast.ReservedKind, (*TypeChecker).inferReserved).
		On(ast.InstanceVariableKind, (*TypeChecker).inferIvar).
		On(ast.GlobalVariableKind, (*TypeChecker).inferGvar).
		On(ast.NumberKind, (*TypeChecker).inferNumber).
		On(ast.StringLiteralKind, constant(types.String)).
		On(ast.SymbolLiteralKind, constant(types.Symbol)).
		On(ast.SuperKind, (*TypeChecker).inferSuper).
		On(ast.BinaryKind, (*TypeChecker).inferBinary).
		On(ast.DotsKind, (*TypeChecker).inferDots).
		On(ast.AssignKind, (*TypeChecker).inferAssign).
		On(ast.UnaryKind, (*TypeChecker).inferUnary).
		On(ast.ParenKind, (*TypeChecker).inferParen).
		On(ast.ArrayLiteralKind, (*TypeChecker).inferArrayLiteral).
		On(ast.HashLiteralKind, (*TypeChecker).inferHashLiteral).
		On(ast.ConstPathRefKind, (*TypeChecker).inferConstPathRef).
		On(ast.ArrayRefKind, (*TypeChecker).inferArrayRef).
		On(ast.CallKind, (*TypeChecker).inferCall).
		On(ast.ConditionalKind, (*TypeChecker).inferConditional).
		On(ast.LoopKind, (*TypeChecker).inferLoop).
		On(ast.ForLoopKind, (*TypeChecker).inferForLoop).
		On(ast.ReturnKind, (*TypeChecker).inferReturn).
		On(ast.BreakKind, (*TypeChecker).inferBreak).
		On(ast.ExprsKind, (*TypeChecker).inferExprs).
		On(ast.BlockKind, (*TypeChecker).inferBlock).
		On(ast.LambdaKind, (*TypeChecker).inferLambda).
		On(ast.DefKind, (*TypeChecker).inferDef).
		On(ast.RescueKind, (*TypeChecker).inferRescue).
		On(ast.BeginEndKind, (*TypeChecker).inferBeginEnd).
		On(ast.ModuleDefKind, (*TypeChecker).inferModuleDef).
		On(ast.ProgramKind, (*TypeChecker).inferProgram)
}

func constant(t types.Type) func(*TypeChecker, ast.Node, *TypeEnv) (types.Type, error) {
	return func(*TypeChecker, ast.Node, *TypeEnv) (types.Type, error) { return t, nil }
}

// inferName types a variable. A name that is not bound is a captured
// value or, when self has such a method, a call without arguments.
func (tc *TypeChecker) inferName(n ast.Node, env *TypeEnv) (types.Type, error) {
	name := n.(*ast.Name)
	if t, ok := env.Lookup(name.Name); ok {
		return t, nil
	}
	if ctx := env.Context(); ctx != nil && tc.trees.has(Entry{Class: ctx.Name(), Name: name.Name}) {
		return tc.callType(nil, name.Name, nil, env)
	}
	if v, ok := tc.value(n); ok {
		return types.NewInstance(v), nil
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferVariableCall(n ast.Node, env *TypeEnv) (types.Type, error) {
	name := n.(*ast.Name)
	if t, ok := env.Lookup(name.Name); ok {
		return t, nil
	}
	return tc.callType(nil, name.Name, nil, env)
}

func (tc *TypeChecker) inferConst(n ast.Node, _ *TypeEnv) (types.Type, error) {
	if v, ok := tc.value(n); ok {
		return types.NewInstance(v), nil
	}
	name := n.(*ast.Name).Name
	if t, ok := types.LookupReserved(name); ok {
		return types.NewInstance(t), nil
	}
	if c, ok := tc.classes[name]; ok {
		return types.NewInstance(c), nil
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferReserved(n ast.Node, env *TypeEnv) (types.Type, error) {
	switch n.(*ast.Name).Name {
	case "true":
		return types.TrueClass, nil
	case "false":
		return types.FalseClass, nil
	case "nil":
		return types.NilClass, nil
	case "self":
		if ctx := env.Context(); ctx != nil {
			return ctx, nil
		}
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferIvar(n ast.Node, env *TypeEnv) (types.Type, error) {
	if v, ok := tc.value(n); ok {
		return tc.ivarType(env.Context(), n.(*ast.Name), true, types.ClassOf(v))
	}
	return tc.ivarType(env.Context(), n.(*ast.Name), false, types.Dynamic)
}

func (tc *TypeChecker) inferGvar(n ast.Node, _ *TypeEnv) (types.Type, error) {
	if v, ok := tc.value(n); ok {
		return tc.ivarType(nil, n.(*ast.Name), true, types.ClassOf(v))
	}
	return tc.ivarType(nil, n.(*ast.Name), false, types.Dynamic)
}

func (tc *TypeChecker) inferNumber(n ast.Node, _ *TypeEnv) (types.Type, error) {
	return types.NewInstance(n.(*ast.Number).Value), nil
}

func (tc *TypeChecker) inferSuper(_ ast.Node, env *TypeEnv) (types.Type, error) {
	if ctx := env.Context(); ctx != nil && ctx.Superclass() != nil {
		return ctx.Superclass(), nil
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferBinary(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Binary)
	rt, err := tc.Type(b.Right, env)
	if err != nil {
		return nil, err
	}
	lt, err := tc.Type(b.Left, env)
	if err != nil {
		return nil, err
	}
	return tc.binaryType(b, rt, lt, env)
}

func (tc *TypeChecker) binaryType(b *ast.Binary, rt, lt types.Type, env *TypeEnv) (types.Type, error) {
	switch b.Op {
	case "&&", "||", "and", "or":
		return types.MakeUnion(rt, lt), nil
	case ">", ">=", "<", "<=", "==", "===", "!=":
		if lt.SubtypeOf(types.Numeric) {
			return types.Boolean, nil
		}
	case "**", "*", "/", "%", "+", "-":
		if lt.SubtypeOf(types.Numeric) {
			switch {
			case lt.SubtypeOf(types.Float) || rt.SubtypeOf(types.Float):
				return types.Float, nil
			case lt.SubtypeOf(types.Float32) || rt.SubtypeOf(types.Float32):
				return types.Float32, nil
			}
			return types.Integer, nil
		}
	case "<<", ">>", "&", "|", "^":
		if lt.SubtypeOf(types.Integer) {
			return types.Integer, nil
		}
	}
	if lt.SubtypeOf(types.String) {
		switch b.Op {
		case "%", "+", "<<":
			return types.String, nil
		case "=~", "<=>":
			return types.MakeUnion(types.Integer, types.NilClass), nil
		case "!~":
			return types.Boolean, nil
		}
	}
	return tc.callType(b.Left, b.Op, []ast.Node{b.Right}, env)
}

func (tc *TypeChecker) inferDots(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Binary)
	lt, err := tc.Type(b.Left, env)
	if err != nil {
		return nil, err
	}
	if _, err := tc.Type(b.Right, env); err != nil {
		return nil, err
	}
	return &types.Composite{Class: types.Range, Args: []types.Type{nonInstance(lt)}}, nil
}

func (tc *TypeChecker) inferAssign(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Binary)
	rt, err := tc.Type(b.Right, env)
	if err != nil {
		return nil, err
	}
	switch left := b.Left.(type) {
	case *ast.Name:
		switch {
		case left.Kind().IsA(ast.IdentifierOrCallKind) && b.Op == "=":
			vt, ok := env.Lookup(left.Name)
			if !ok {
				return tc.bindLocalVar(env, left, rt, true), nil
			}
			if !rt.SubtypeOf(vt) {
				return tc.fail("incompatible assignment type")
			}
			if d, ok := types.LocalVarOf(vt); ok {
				d.Assign(left)
			}
			tc.table[left] = vt
			return vt, nil
		case left.Kind() == ast.InstanceVariableKind:
			return tc.ivarType(env.Context(), left, true, nonInstance(rt))
		case left.Kind() == ast.GlobalVariableKind:
			return tc.ivarType(nil, left, true, nonInstance(rt))
		}
	case *ast.Call:
		if left.Op == "." {
			return tc.callType(left.Receiver, left.Name.Name+"=", []ast.Node{b.Right}, env)
		}
	}
	lt, err := tc.Type(b.Left, env)
	if err != nil {
		return nil, err
	}
	if d, ok := types.LocalVarOf(lt); ok && b.Op != "=" {
		d.Assign(b.Left)
	}
	return lt, nil
}

func (tc *TypeChecker) inferUnary(n ast.Node, env *TypeEnv) (types.Type, error) {
	u := n.(*ast.Unary)
	t, err := tc.Type(u.Operand, env)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "!", "not":
		return types.Boolean, nil
	case "~":
		if t.SubtypeOf(types.Integer) {
			return t, nil
		}
	case "+@", "-@":
		if t.SubtypeOf(types.Numeric) {
			return t, nil
		}
	}
	return tc.callType(u.Operand, u.Op, nil, env)
}

func (tc *TypeChecker) inferParen(n ast.Node, env *TypeEnv) (types.Type, error) {
	return tc.Type(n.(*ast.Paren).Expression, env)
}

// arrays longer than this are not scanned for a common element type
const maxScannedElements = 16

func (tc *TypeChecker) inferArrayLiteral(n ast.Node, env *TypeEnv) (types.Type, error) {
	elems := n.(*ast.ArrayLiteral).Elements
	ts, err := tc.typeAll(elems, env)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 || len(ts) > maxScannedElements {
		return types.Array, nil
	}
	et := nonInstance(ts[0])
	for _, t := range ts[1:] {
		if !t.SubtypeOf(et) {
			return types.Array, nil
		}
	}
	return types.ArrayOf(et), nil
}

func (tc *TypeChecker) inferHashLiteral(n ast.Node, env *TypeEnv) (types.Type, error) {
	for _, p := range n.(*ast.HashLiteral).Pairs {
		if _, err := tc.typeAll([]ast.Node{p.Key, p.Value}, env); err != nil {
			return nil, err
		}
	}
	return types.Hash, nil
}

func (tc *TypeChecker) inferConstPathRef(n ast.Node, _ *TypeEnv) (types.Type, error) {
	if v, ok := tc.value(n); ok {
		return types.NewInstance(v), nil
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferArrayRef(n ast.Node, env *TypeEnv) (types.Type, error) {
	a := n.(*ast.ArrayRef)
	if _, err := tc.typeAll(a.Indexes, env); err != nil {
		return nil, err
	}
	at, err := tc.Type(a.Array, env)
	if err != nil {
		return nil, err
	}
	if c, ok := types.As[*types.Composite](at); ok && c.Class == types.Array {
		return c.ElementType(), nil
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferCall(n ast.Node, env *TypeEnv) (types.Type, error) {
	c := n.(*ast.Call)
	switch c.Name.Name {
	case "lambda":
		return types.Proc, nil
	case "raise":
		return types.Exception, nil
	}
	if _, err := tc.Type(c.BlockArg, env); err != nil {
		return nil, err
	}
	if c.Block != nil {
		if _, err := tc.Type(c.Block, env); err != nil {
			return nil, err
		}
	}
	return tc.callType(c.Receiver, c.Name.Name, c.Args, env)
}

func (tc *TypeChecker) inferConditional(n ast.Node, env *TypeEnv) (types.Type, error) {
	c := n.(*ast.Conditional)
	if _, err := tc.Type(c.Cond, env); err != nil {
		return nil, err
	}
	var all []types.Type
	t, err := tc.Type(c.Then, env)
	if err != nil {
		return nil, err
	}
	all = append(all, t)
	for _, p := range c.Elsif {
		ts, err := tc.typeAll([]ast.Node{p.Key, p.Value}, env)
		if err != nil {
			return nil, err
		}
		all = append(all, ts[1])
	}
	if t, err = tc.Type(c.Else, env); err != nil {
		return nil, err
	}
	return types.MakeUnion(append(all, t)...), nil
}

func (tc *TypeChecker) inferLoop(n ast.Node, env *TypeEnv) (types.Type, error) {
	l := n.(*ast.Loop)
	if _, err := tc.typeAll([]ast.Node{l.Cond, l.Body}, env); err != nil {
		return nil, err
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) inferForLoop(n ast.Node, env *TypeEnv) (types.Type, error) {
	f := n.(*ast.ForLoop)
	st, err := tc.Type(f.Set, env)
	if err != nil {
		return nil, err
	}
	var vt types.Type = types.Dynamic
	if c, ok := types.As[*types.Composite](st); ok {
		vt = c.ElementType()
	}
	for _, v := range f.Vars {
		tc.bindLocalVar(env, v, vt, true)
	}
	if _, err := tc.Type(f.Body, env); err != nil {
		return nil, err
	}
	return types.Dynamic, nil
}

func (tc *TypeChecker) valuesType(values []ast.Node, env *TypeEnv) (types.Type, error) {
	ts, err := tc.typeAll(values, env)
	if err != nil {
		return nil, err
	}
	switch len(ts) {
	case 0:
		return types.Void, nil
	case 1:
		return ts[0], nil
	}
	return types.Array, nil
}

func (tc *TypeChecker) inferReturn(n ast.Node, env *TypeEnv) (types.Type, error) {
	return tc.valuesType(n.(*ast.Return).Values, env)
}

func (tc *TypeChecker) inferBreak(n ast.Node, env *TypeEnv) (types.Type, error) {
	return tc.valuesType(n.(*ast.Break).Values, env)
}

func (tc *TypeChecker) lastType(ns []ast.Node, env *TypeEnv) (types.Type, error) {
	ts, err := tc.typeAll(ns, env)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return types.Void, nil
	}
	return ts[len(ts)-1], nil
}

func (tc *TypeChecker) inferExprs(n ast.Node, env *TypeEnv) (types.Type, error) {
	return tc.lastType(n.(*ast.Exprs).Expressions, env)
}

func (tc *TypeChecker) inferProgram(n ast.Node, env *TypeEnv) (types.Type, error) {
	return tc.lastType(n.(*ast.Program).Elements, env)
}

// bindParams binds every parameter of p in env to Dynamic.
func (tc *TypeChecker) bindParams(p *ast.Parameters, env *TypeEnv) {
	for _, v := range p.Params {
		tc.bindLocalVar(env, v, types.Dynamic, false)
	}
	for _, o := range p.Optionals {
		if name, ok := o.Key.(*ast.Name); ok {
			tc.bindLocalVar(env, name, types.Dynamic, false)
		}
	}
	for _, v := range p.ParamsAfterRest {
		tc.bindLocalVar(env, v, types.Dynamic, false)
	}
	for _, k := range p.Keywords {
		if name, ok := k.Key.(*ast.Name); ok {
			tc.bindLocalVar(env, name, types.Dynamic, false)
		}
	}
	for _, v := range []*ast.Name{p.RestOfParams, p.RestOfKeywords, p.BlockParam} {
		if v != nil {
			tc.bindLocalVar(env, v, types.Dynamic, false)
		}
	}
}

func (tc *TypeChecker) bodyType(body ast.Node, rescue *ast.Rescue, env *TypeEnv) (types.Type, error) {
	bt, err := tc.Type(body, env)
	if err != nil || rescue == nil {
		return bt, err
	}
	rt, err := tc.Type(rescue, env)
	if err != nil {
		return nil, err
	}
	return types.MakeUnion(bt, rt), nil
}

func (tc *TypeChecker) inferBlock(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Block)
	s := env.Child()
	tc.bindParams(&b.Parameters, s)
	bt, err := tc.bodyType(b.Body, b.Rescue, s)
	if err != nil {
		return nil, err
	}
	return types.NewDynMethod(b, bt), nil
}

func (tc *TypeChecker) inferLambda(n ast.Node, env *TypeEnv) (types.Type, error) {
	if _, err := tc.inferBlock(n, env); err != nil {
		return nil, err
	}
	return types.Proc, nil
}

// inferDef returns the method type right away and types the body after
// the top-level check, so that recursive calls see the method type.
func (tc *TypeChecker) inferDef(n ast.Node, env *TypeEnv) (types.Type, error) {
	d := n.(*ast.Def)
	var ptypes []types.Type
	for _, p := range d.Params {
		t, ok := env.Lookup(p.Name)
		if !ok {
			t = types.Dynamic
		}
		ptypes = append(ptypes, t)
	}
	mt := types.NewMethod(d, ptypes, types.Dynamic)
	tc.Defer(func() error {
		s := env.Child()
		tc.bindParams(&d.Parameters, s)
		bt, err := tc.bodyType(d.Body, d.Rescue, s)
		if err != nil {
			return err
		}
		if !bt.SubtypeOf(mt.Ret) {
			return tc.Errorf(d, "bad result type")
		}
		return nil
	})
	return mt, nil
}

func (tc *TypeChecker) inferRescue(n ast.Node, env *TypeEnv) (types.Type, error) {
	r := n.(*ast.Rescue)
	if _, err := tc.typeAll(r.Types, env); err != nil {
		return nil, err
	}
	if r.Parameter != nil {
		tc.bindLocalVar(env, r.Parameter, types.Exception, true)
	}
	ts, err := tc.typeAll([]ast.Node{r.Body, r.Else, r.Ensure}, env)
	if err != nil {
		return nil, err
	}
	all := []types.Type{ts[0]}
	if r.Else != nil {
		all = append(all, ts[1])
	}
	if r.NestedRescue != nil {
		nt, err := tc.Type(r.NestedRescue, env)
		if err != nil {
			return nil, err
		}
		all = append(all, nt)
	}
	return types.MakeUnion(all...), nil
}

func (tc *TypeChecker) inferBeginEnd(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.BeginEnd)
	return tc.bodyType(b.Body, b.Rescue, env)
}

func (tc *TypeChecker) inferModuleDef(n ast.Node, env *TypeEnv) (types.Type, error) {
	m := n.(*ast.ModuleDef)
	if _, err := tc.Type(m.Superclass, env); err != nil {
		return nil, err
	}
	if _, err := tc.bodyType(m.Body, m.Rescue, env.Child()); err != nil {
		return nil, err
	}
	return types.Dynamic, nil
}
