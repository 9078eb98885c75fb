package compiler

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

func init() {
	clangRules.
		OnTag("typedecl", (*TypeChecker).typedecl).
		OnTag("typedecl_hash", (*TypeChecker).typedeclHash).
		OnTag("return_type", (*TypeChecker).returnType).
		On(ast.NumberKind, (*TypeChecker).clangNumber).
		On(ast.ConstKind, (*TypeChecker).clangConst).
		On(ast.ConstPathRefKind, (*TypeChecker).clangConstPathRef).
		On(ast.InstanceVariableKind, (*TypeChecker).clangIvar).
		On(ast.AssignKind, (*TypeChecker).clangAssign).
		On(ast.BinaryKind, (*TypeChecker).clangBinary).
		On(ast.ArrayRefKind, (*TypeChecker).clangArrayRef).
		On(ast.UnaryKind, (*TypeChecker).clangUnary).
		On(ast.ConditionalKind, (*TypeChecker).clangConditional).
		On(ast.LoopKind, (*TypeChecker).clangLoop).
		On(ast.ForLoopKind, (*TypeChecker).clangForLoop).
		On(ast.ReturnKind, (*TypeChecker).clangReturn).
		On(ast.CallKind, (*TypeChecker).clangCall).
		On(ast.BlockKind, (*TypeChecker).clangBlock).
		On(ast.DefKind, (*TypeChecker).clangDef)
}

// validVarType reports whether a variable of type t can be declared in C.
func validVarType(t types.Type) bool {
	switch t.Exact() {
	case types.Integer, types.Float, types.Float32, types.String:
		return true
	}
	return false
}

func validType(t types.Type) bool {
	if validVarType(t) {
		return true
	}
	c, ok := types.As[*types.Composite](t)
	return ok && c.Class == types.Array
}

// isSubsumedBy is sub <= super where numbers convert implicitly.
func isSubsumedBy(sub, super types.Type) bool {
	if sub.SubtypeOf(types.Numeric) && super.SubtypeOf(types.Numeric) {
		return true
	}
	return sub.SubtypeOf(super)
}

func (tc *TypeChecker) typedecl(n ast.Node, env *TypeEnv) (types.Type, error) {
	c := n.(*ast.Call)
	if len(c.Args) != 1 {
		return tc.fail("bad typedecl")
	}
	if _, err := tc.Type(c.Args[0], env); err != nil {
		return nil, err
	}
	return types.Void, nil
}

func (tc *TypeChecker) typedeclHash(n ast.Node, env *TypeEnv) (types.Type, error) {
	for _, p := range n.(*ast.HashLiteral).Pairs {
		key := p.Key.(*ast.Name)
		t, err := tc.typedeclType(p.Value)
		if err != nil {
			return nil, err
		}
		if err := tc.declareType(key, t, env); err != nil {
			return nil, err
		}
	}
	return types.Void, nil
}

func (tc *TypeChecker) returnType(n ast.Node, _ *TypeEnv) (types.Type, error) {
	return tc.typedeclType(n.(*ast.Unary).Operand)
}

// typeName resolves a type written as a constant: a captured type value,
// a reserved name such as Int or IntArray, or a known class.
func (tc *TypeChecker) typeName(n ast.Node) (types.Type, bool) {
	if v, ok := tc.value(n); ok {
		t, ok := v.(types.Type)
		return t, ok
	}
	var name string
	switch n := n.(type) {
	case *ast.Name:
		name = n.Name
	case *ast.ConstPathRef:
		name = n.Name.Name
	default:
		return nil, false
	}
	if t, ok := types.LookupReserved(name); ok {
		return t, true
	}
	c, ok := tc.classes[name]
	return c, ok
}

// typedeclType evaluates the value of a typedecl pair or a return
// annotation.
func (tc *TypeChecker) typedeclType(n ast.Node) (types.Type, error) {
	switch v := n.(type) {
	case *ast.Call:
		if len(v.Args) != 1 {
			return tc.fail("bad array type")
		}
		et, ok := tc.typeName(v.Args[0])
		if !ok {
			return tc.fail("cannot resolve a type name")
		}
		if !validVarType(et) {
			return tc.fail("bad array type: %s", et.Name())
		}
		return types.ArrayOf(et), nil
	case *ast.StringLiteral:
		return types.NewInstance(v.Value), nil
	}
	t, ok := tc.typeName(n)
	if !ok {
		return tc.fail("cannot resolve a type name")
	}
	return t, nil
}

var directiveKeys = map[string]string{
	types.ReturnKey:  returnKey,
	types.ForeignKey: foreignKey,
	types.NativeKey:  nativeKey,
}

func (tc *TypeChecker) declareType(key *ast.Name, t types.Type, env *TypeEnv) error {
	switch key.Name {
	case types.ReturnKey, types.ForeignKey:
		if !validType(t) && !types.Void.Equal(t) {
			return tc.errorf("bad return type: %s", t.Name())
		}
		if err := tc.checkDuplicate(directiveKeys[key.Name], key.Name, t, env); err != nil {
			return err
		}
		env.Bind(directiveKeys[key.Name], t)
	case types.NativeKey:
		inst, ok := types.As[*types.Instance](t)
		if !ok {
			return tc.errorf("bad native argument. not String.")
		}
		if _, ok := inst.Value.(string); !ok {
			return tc.errorf("bad native argument. not String.")
		}
		if _, ok := env.LookupLocal(nativeKey); ok {
			return tc.errorf("duplicate declaration: native")
		}
		env.Bind(nativeKey, t)
	default:
		if _, ok := types.As[*types.Instance](t); ok || !validType(t) {
			return tc.errorf("bad parameter type: %s", key.Name)
		}
		if err := tc.checkDuplicate(key.Name, key.Name, t, env); err != nil {
			return err
		}
		tc.bindLocalVar(env, key, t, false)
	}
	return nil
}

// checkDuplicate allows a name to be declared again only with the same
// type, and only within one scope.
func (tc *TypeChecker) checkDuplicate(binding, name string, t types.Type, env *TypeEnv) error {
	if old, ok := env.LookupLocal(binding); ok && !old.Equal(t) {
		return tc.errorf("incompatible or duplicate declaration: %s", name)
	}
	return nil
}

func (tc *TypeChecker) clangNumber(n ast.Node, _ *TypeEnv) (types.Type, error) {
	if n.(*ast.Number).IsFloat() {
		return types.Float, nil
	}
	return types.Integer, nil
}

func (tc *TypeChecker) clangConst(n ast.Node, env *TypeEnv) (types.Type, error) {
	t, err := tc.Proceed(n, env)
	if err != nil {
		return nil, err
	}
	if types.Dynamic.Equal(t) {
		return tc.fail("unknown constant")
	}
	if !validVarType(t) {
		return tc.fail("bad constant type")
	}
	return t, nil
}

func (tc *TypeChecker) clangConstPathRef(n ast.Node, _ *TypeEnv) (types.Type, error) {
	v, ok := tc.value(n)
	if !ok {
		return tc.fail("unknown constant")
	}
	t := types.NewInstance(v)
	if !validVarType(t) {
		return tc.fail("bad constant type")
	}
	return t, nil
}

func (tc *TypeChecker) clangIvar(n ast.Node, env *TypeEnv) (types.Type, error) {
	name := n.(*ast.Name)
	v, ok := tc.value(n)
	if !ok {
		return tc.ivarType(env.Context(), name, false, types.Dynamic)
	}
	obj, ok := v.(ArrayObject)
	if !ok {
		return tc.fail("badly typed instance variable")
	}
	if _, device := obj.(*OclArray); device && !tc.opencl {
		return tc.fail("badly typed instance variable")
	}
	tc.ivars.add(obj)
	return tc.ivarType(env.Context(), name, true, types.NewInstance(obj))
}

func (tc *TypeChecker) clangAssign(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Binary)
	rt, err := tc.Type(b.Right, env)
	if err != nil {
		return nil, err
	}
	if !validVarType(rt) {
		return tc.fail("bad assigned value")
	}
	if ref, ok := b.Left.(*ast.ArrayRef); ok {
		et, err := tc.Type(ref, env)
		if err != nil {
			return nil, err
		}
		if !isSubsumedBy(rt, et) {
			return tc.fail("incompatible assignment type")
		}
		return et, nil
	}
	left, ok := b.Left.(*ast.Name)
	if !ok || !left.Kind().IsA(ast.IdentifierOrCallKind) {
		return tc.fail("bad assignment")
	}
	lt, ok := env.Lookup(left.Name)
	if !ok {
		if b.Op != "=" {
			return tc.fail("undefined variable: %s", left.Name)
		}
		return tc.bindLocalVar(env, left, rt, true), nil
	}
	if !isSubsumedBy(rt, lt) {
		return tc.fail("incompatible assignment type")
	}
	if d, ok := types.LocalVarOf(lt); ok {
		d.Assign(left)
	}
	tc.table[left] = lt
	return lt, nil
}

func arithType(t1, t2 types.Type) types.Type {
	switch {
	case t1.SubtypeOf(types.Float) || t2.SubtypeOf(types.Float):
		return types.Float
	case t1.SubtypeOf(types.Float32) || t2.SubtypeOf(types.Float32):
		return types.Float32
	}
	return types.Integer
}

func (tc *TypeChecker) clangBinary(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Binary)
	t1, err := tc.Type(b.Left, env)
	if err != nil {
		return nil, err
	}
	t2, err := tc.Type(b.Right, env)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case "+", "-", "*", "/":
		if !t1.SubtypeOf(types.Numeric) || !t2.SubtypeOf(types.Numeric) {
			return tc.fail("bad operand type")
		}
		return arithType(t1, t2), nil
	case "%":
		if !t1.SubtypeOf(types.Integer) || !t2.SubtypeOf(types.Integer) {
			return tc.fail("bad operand type")
		}
		return types.Integer, nil
	case "<", ">", "<=", ">=", "==", "!=", "&&", "||":
		return types.Boolean, nil
	}
	return tc.fail("bad operator: %s", b.Op)
}

func (tc *TypeChecker) integerIndexes(idx []ast.Node, env *TypeEnv) error {
	for _, i := range idx {
		t, err := tc.Type(i, env)
		if err != nil {
			return err
		}
		if !t.SubtypeOf(types.Integer) {
			return tc.errorf("bad array index")
		}
	}
	return nil
}

func (tc *TypeChecker) clangArrayRef(n ast.Node, env *TypeEnv) (types.Type, error) {
	a := n.(*ast.ArrayRef)
	at, err := tc.Type(a.Array, env)
	if err != nil {
		return nil, err
	}
	if inst, ok := types.As[*types.Instance](at); ok {
		if obj, ok := inst.Value.(ArrayObject); ok {
			if len(a.Indexes) != len(obj.Sizes()) {
				return tc.fail("bad array index")
			}
			if err := tc.integerIndexes(a.Indexes, env); err != nil {
				return nil, err
			}
			return obj.ElemType(), nil
		}
	}
	if len(a.Indexes) != 1 {
		return tc.fail("bad array index")
	}
	if err := tc.integerIndexes(a.Indexes, env); err != nil {
		return nil, err
	}
	c, ok := types.As[*types.Composite](at)
	if !ok || c.Class != types.Array {
		return tc.fail("bad array access")
	}
	return c.ElementType(), nil
}

func (tc *TypeChecker) clangUnary(n ast.Node, env *TypeEnv) (types.Type, error) {
	u := n.(*ast.Unary)
	t, err := tc.Type(u.Operand, env)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "-@", "+@":
		if !t.SubtypeOf(types.Numeric) {
			return tc.fail("bad operand type")
		}
		return t, nil
	case "!":
		return types.Boolean, nil
	}
	return tc.fail("bad operator: %s", u.Op)
}

// clangConditional types an if statement as Void unless every branch
// returns. A ternary has the union of its branch types.
func (tc *TypeChecker) clangConditional(n ast.Node, env *TypeEnv) (types.Type, error) {
	c := n.(*ast.Conditional)
	if _, err := tc.Type(c.Cond, env); err != nil {
		return nil, err
	}
	t1, err := tc.Type(c.Then, env)
	if err != nil {
		return nil, err
	}
	all := []types.Type{t1}
	returns := types.HasRole(t1, types.WithReturnRole)
	for _, p := range c.Elsif {
		ts, err := tc.typeAll([]ast.Node{p.Key, p.Value}, env)
		if err != nil {
			return nil, err
		}
		all = append(all, ts[1])
		returns = returns && types.HasRole(ts[1], types.WithReturnRole)
	}
	t2, err := tc.Type(c.Else, env)
	if err != nil {
		return nil, err
	}
	returns = returns && c.Else != nil && types.HasRole(t2, types.WithReturnRole)
	switch {
	case returns:
		return types.AsWithReturn(types.MakeUnion(append(all, t2)...)), nil
	case c.Op == "ifop":
		return types.MakeUnion(t1, t2), nil
	}
	return types.Void, nil
}

func (tc *TypeChecker) clangLoop(n ast.Node, env *TypeEnv) (types.Type, error) {
	l := n.(*ast.Loop)
	if _, err := tc.typeAll([]ast.Node{l.Cond, l.Body}, env); err != nil {
		return nil, err
	}
	return types.Void, nil
}

func (tc *TypeChecker) clangForLoop(n ast.Node, env *TypeEnv) (types.Type, error) {
	f := n.(*ast.ForLoop)
	for _, v := range f.Vars {
		tc.bindLocalVar(env, v, types.Integer, true)
	}
	dots, ok := f.Set.(*ast.Binary)
	if !ok || dots.Kind() != ast.DotsKind {
		return tc.fail("bad for-range")
	}
	ends, err := tc.typeAll([]ast.Node{dots.Left, dots.Right}, env)
	if err != nil {
		return nil, err
	}
	for _, t := range ends {
		if !t.SubtypeOf(types.Integer) {
			return tc.fail("bad for-range")
		}
	}
	if _, err := tc.Type(f.Body, env); err != nil {
		return nil, err
	}
	return types.Void, nil
}

func (tc *TypeChecker) clangReturn(n ast.Node, env *TypeEnv) (types.Type, error) {
	t, err := tc.Proceed(n, env)
	if err != nil {
		return nil, err
	}
	rt, ok := env.Lookup(returnKey)
	switch {
	case !ok:
		return tc.fail("bad return type")
	case types.Void.Equal(rt):
		if len(n.(*ast.Return).Values) != 0 {
			return tc.fail("bad return")
		}
	case !isSubsumedBy(t, rt):
		return tc.fail("bad return type")
	}
	return types.AsWithReturn(t), nil
}

func (tc *TypeChecker) methodWithBlock(name string) bool {
	return name == types.Times || (tc.opencl && name == types.OclTimes)
}

func (tc *TypeChecker) clangCall(n ast.Node, env *TypeEnv) (types.Type, error) {
	c := n.(*ast.Call)
	name := c.Name.Name
	if tc.methodWithBlock(name) {
		if c.Block == nil {
			return tc.fail("no block given: %s", name)
		}
		if c.Receiver == nil {
			return tc.fail("no receiver given: %s", name)
		}
		if name == types.OclTimes {
			return tc.typeOclTimes(c, env)
		}
		return tc.typeTimes(c, env)
	}
	if c.Block != nil {
		return tc.fail("a block is not taken: %s", name)
	}
	t, err := tc.Proceed(n, env)
	if err != nil {
		return nil, err
	}
	if !types.HasRole(t, types.ResultRole) {
		return tc.fail("bad call to: %s", name)
	}
	return t, nil
}

// blockParam checks the receiver and the parameter of n.times { |i| ... }
// and records the parameter as an Integer.
func (tc *TypeChecker) blockParam(c *ast.Call, env *TypeEnv) (*ast.Name, error) {
	rt, err := tc.Type(c.Receiver, env)
	if err != nil {
		return nil, err
	}
	if !rt.SubtypeOf(types.Integer) {
		return nil, tc.errorf("the receiver must be an integer")
	}
	if len(c.Block.Params) != 1 {
		return nil, tc.errorf("wrong number of block parameters")
	}
	p := c.Block.Params[0]
	tc.table[p] = types.Integer
	return p, nil
}

func (tc *TypeChecker) typeTimes(c *ast.Call, env *TypeEnv) (types.Type, error) {
	p, err := tc.blockParam(c, env)
	if err != nil {
		return nil, err
	}
	tenv := env.Child()
	tenv.Bind(p.Name, types.Integer)
	tenv.Bind(returnKey, types.Void)
	if _, err := tc.Type(c.Block, tenv); err != nil {
		return nil, err
	}
	return types.Void, nil
}

// clangBlock types a block run by times, or a standalone block whose
// body is a single return and whose result type is that of the value.
func (tc *TypeChecker) clangBlock(n ast.Node, env *TypeEnv) (types.Type, error) {
	b := n.(*ast.Block)
	if _, bound := env.Lookup(returnKey); !bound && len(b.Params) == 0 {
		if r, ok := b.Body.(*ast.Return); ok && len(r.Values) > 0 {
			switch v := r.Values[0]; v.Tag() {
			case "expr", "method_call":
				t, err := tc.Type(v, env)
				if err != nil {
					return nil, err
				}
				env.Bind(returnKey, nonInstance(t))
			}
		}
	}
	return tc.defBlock(b, true, env, env)
}

func (tc *TypeChecker) clangDef(n ast.Node, env *TypeEnv) (types.Type, error) {
	return tc.defBlock(n, false, env, env.Child())
}

// defBlock builds the method type of a def or block from its typedecl.
// The body of a def is checked after the top-level check, the body of a
// block right away.
func (tc *TypeChecker) defBlock(n ast.Node, isBlock bool, env, inner *TypeEnv) (types.Type, error) {
	if err := tc.typeBlock(n, inner); err != nil {
		return nil, err
	}
	params := paramsOf(n).Params
	ptypes := make([]types.Type, len(params))
	names := set.New[string](len(params))
	for i, p := range params {
		t, ok := inner.Lookup(p.Name)
		if !ok {
			return tc.fail("missing parameter type: %s", p.Name)
		}
		ptypes[i] = t
		names.Insert(p.Name)
	}
	result, ok := inner.Lookup(returnKey)
	if !ok {
		if result, ok = inner.Lookup(foreignKey); !ok {
			return tc.fail("no return type specified")
		}
	}
	mt := types.NewMethod(n, ptypes, result)
	if d, ok := n.(*ast.Def); ok && !isBlock {
		env.Bind(d.Name.Name, mt.Result())
	}

	if code, ok := inner.Lookup(nativeKey); ok {
		inst, ok := types.As[*types.Instance](code)
		if !ok {
			return tc.fail("bad native declaration")
		}
		return types.AsNative(mt, inst.Value.(string)), nil
	}
	if _, ok := inner.Lookup(foreignKey); ok && !isBlock {
		return types.AsForeign(types.NewDynMethod(nil, result)), nil
	}

	check := func() error {
		bt, err := tc.Type(bodyOf(n), inner)
		if err != nil {
			return err
		}
		returns := types.HasRole(bt, types.WithReturnRole)
		if types.Void.Equal(result) {
			if returns && !types.Void.Equal(bt) {
				return tc.Errorf(n, "non-void return statement")
			}
		} else {
			if !returns {
				return tc.Errorf(n, "no return statement")
			}
			if !isSubsumedBy(result, bt) {
				return tc.Errorf(n, "bad result type")
			}
		}
		var locals []LocalVar
		inner.Each(func(name string, t types.Type) {
			if types.HasRole(t, types.LocalVarRole) && !names.Contains(name) {
				locals = append(locals, LocalVar{Name: name, Type: t})
			}
		})
		tc.localVars[n] = locals
		return nil
	}
	if isBlock {
		if err := check(); err != nil {
			return nil, err
		}
	} else {
		tc.Defer(check)
	}
	return mt, nil
}

// typeBlock applies a leading return annotation and the typedecl among
// the first two statements. The result defaults to Void.
func (tc *TypeChecker) typeBlock(n ast.Node, env *TypeEnv) error {
	stmts := statements(bodyOf(n))
	var e0, e1 ast.Node
	if len(stmts) > 0 {
		e0 = stmts[0]
	}
	if len(stmts) > 1 {
		e1 = stmts[1]
	}
	if e0 != nil && e0.Tag() == "return_type" {
		t, err := tc.Type(e0, env)
		if err != nil {
			return err
		}
		env.Bind(returnKey, t)
	}
	switch {
	case e0 != nil && e0.Tag() == "typedecl":
		if _, err := tc.Type(e0, env); err != nil {
			return err
		}
	case e1 != nil && e1.Tag() == "typedecl":
		if _, err := tc.Type(e1, env); err != nil {
			return err
		}
	}
	_, hasReturn := env.Lookup(returnKey)
	_, hasForeign := env.Lookup(foreignKey)
	if !hasReturn && !hasForeign {
		env.Bind(returnKey, types.Void)
	}
	return nil
}
