package compiler

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
	"github.com/tliron/commonlog"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/checker"
	"github.com/thiremani/clift/syntax"
	"github.com/thiremani/clift/types"
)

var log = commonlog.GetLogger("clift.compiler")

// Backend selects the typing rules and the code generator.
type Backend int

const (
	// Infer types host-language trees without restrictions.
	Infer Backend = iota
	// C checks the C subset.
	C
	// OpenCL is C plus ocl_times kernels and device arrays.
	OpenCL
)

func (b Backend) String() string {
	switch b {
	case Infer:
		return "infer"
	case C:
		return "c"
	case OpenCL:
		return "opencl"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// TypeRules is a layer of typing rules.
type TypeRules = checker.Rules[*TypeChecker, *TypeEnv, types.Type]

func newTypeRules(name string) *TypeRules {
	return checker.NewRules[*TypeChecker, *TypeEnv, types.Type](name)
}

// LocalVar is a variable declared in a method or block body.
type LocalVar struct {
	Name string
	Type types.Type
}

// KernelBlock is the body of an ocl_times call compiled to a kernel.
type KernelBlock struct {
	Name     string
	Block    *ast.Block
	FreeVars []FreeVar
	Ivars    []ArrayObject
}

type objects struct {
	seen  *set.Set[ArrayObject]
	order []ArrayObject
}

func newObjects() *objects {
	return &objects{seen: set.New[ArrayObject](4)}
}

func (o *objects) add(a ArrayObject) {
	if o.seen.Insert(a) {
		o.order = append(o.order, a)
	}
}

func (o *objects) merge(p *objects) {
	for _, a := range p.order {
		o.add(a)
	}
}

func (o *objects) items() []ArrayObject {
	return append([]ArrayObject(nil), o.order...)
}

// TypeChecker computes a type for every node of the trees it reaches from
// an entry method. Callees are resolved through the Source and typed once.
type TypeChecker struct {
	*checker.Engine[*TypeChecker, *TypeEnv, types.Type]

	backend Backend
	trees   *treeTable
	oracle  Oracle
	grammar *syntax.Grammar
	opencl  bool

	classes   map[string]*types.Class
	table     map[ast.Node]types.Type
	localVars map[ast.Node][]LocalVar
	// instance variable types per class of self
	typedefs map[*types.Class]map[string]types.Type
	ivars    *objects
	blocks   []*KernelBlock
}

// NewTypeChecker returns a checker for backend reading trees from src and
// captured values from oracle. Either may be nil.
func NewTypeChecker(backend Backend, src Source, oracle Oracle) *TypeChecker {
	tc := &TypeChecker{
		backend:   backend,
		trees:     newTreeTable(src),
		oracle:    oracle,
		classes:   map[string]*types.Class{},
		table:     map[ast.Node]types.Type{},
		localVars: map[ast.Node][]LocalVar{},
		typedefs:  map[*types.Class]map[string]types.Type{},
		ivars:     newObjects(),
	}
	for _, c := range []*types.Class{types.Object, types.Integer, types.Float, types.Float32,
		types.String, types.Symbol, types.Array, types.Range, types.Hash, CArrayClass, OclArrayClass} {
		tc.classes[c.Name()] = c
	}
	if cs, ok := src.(ClassSource); ok {
		for _, c := range cs.Classes() {
			tc.classes[c.Name()] = c
		}
	}
	rules := inferRules
	tc.grammar = syntax.Host()
	switch backend {
	case C:
		rules, tc.grammar = clangRules, syntax.C()
	case OpenCL:
		rules, tc.grammar = openclRules, syntax.C()
		tc.opencl = true
	}
	tc.Engine = checker.New(rules, tc, "type")
	return tc
}

// Grammar returns the grammar trees are checked against before typing.
func (tc *TypeChecker) Grammar() *syntax.Grammar { return tc.grammar }

// Type returns the type of n, computing it in env the first time. A nil
// env means the environment of the running rule.
func (tc *TypeChecker) Type(n ast.Node, env *TypeEnv) (types.Type, error) {
	if n == nil {
		return types.Dynamic, nil
	}
	if t, ok := tc.table[n]; ok {
		return t, nil
	}
	if env == nil {
		env = tc.Env()
	}
	t, err := tc.Check(n, env)
	if err != nil {
		return nil, err
	}
	tc.table[n] = t
	return t, nil
}

// Typecheck resolves e, checks its grammar and types it together with
// every method it calls.
func (tc *TypeChecker) Typecheck(e Entry) (*types.Method, error) {
	t, err := tc.resolve(nil, e, nil)
	if err != nil {
		return nil, err
	}
	log.Debugf("typecheck %s", e)
	res, err := tc.Type(t.Root, NewBaseEnv(t.Context))
	if err != nil {
		tc.Discard()
		return nil, err
	}
	if err := tc.Drain(); err != nil {
		return nil, err
	}
	mt, ok := types.As[*types.Method](res)
	if !ok {
		return nil, tc.Errorf(t.Root, "not a method type")
	}
	return mt, nil
}

// resolve fetches the tree of e and grammar-checks it when it is new. at
// locates the error when no tree is found.
func (tc *TypeChecker) resolve(at ast.Node, e Entry, ctx *types.Class) (*Tree, error) {
	if ctx == nil {
		ctx = tc.class(e.Class)
	}
	t, fresh, ok := tc.trees.get(e, ctx)
	if !ok {
		return nil, tc.Errorf(at, "no source code: for %s", e)
	}
	if fresh {
		if err := tc.grammar.Check(t.Root); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Tree returns the resolved tree of e.
func (tc *TypeChecker) Tree(e Entry) (*Tree, bool) {
	t, ok := tc.trees.byName[e]
	return t, ok
}

// TypeOf returns the recorded type of n.
func (tc *TypeChecker) TypeOf(n ast.Node) (types.Type, bool) {
	t, ok := tc.table[n]
	return t, ok
}

// LocalVars returns the variables declared in the body of a method or
// block, parameters excluded.
func (tc *TypeChecker) LocalVars(n ast.Node) ([]LocalVar, bool) {
	lv, ok := tc.localVars[n]
	return lv, ok
}

// Blocks returns the ocl_times blocks in the order they were typed.
func (tc *TypeChecker) Blocks() []*KernelBlock { return tc.blocks }

// Ivars returns the captured arrays referenced so far.
func (tc *TypeChecker) Ivars() []ArrayObject { return tc.ivars.items() }

// Trees returns the resolved trees in the order they were first reached.
func (tc *TypeChecker) Trees() []*Tree { return append([]*Tree(nil), tc.trees.order...) }

func (tc *TypeChecker) class(name string) *types.Class {
	if name == "" {
		return types.Object
	}
	if c, ok := tc.classes[name]; ok {
		return c
	}
	c := types.NewClass(name, nil)
	tc.classes[name] = c
	return c
}

func (tc *TypeChecker) errorf(format string, args ...any) error {
	return tc.Errorf(tc.Current(), format, args...)
}

// fail reports an error at the node being typed.
func (tc *TypeChecker) fail(format string, args ...any) (types.Type, error) {
	return nil, tc.errorf(format, args...)
}

func (tc *TypeChecker) value(n ast.Node) (any, bool) {
	if tc.oracle == nil || n == nil {
		return nil, false
	}
	return tc.oracle.ValueOf(n)
}

// nonInstance widens instance types to their classes so that a variable
// can hold other values of the same class.
func nonInstance(t types.Type) types.Type {
	if u, ok := types.As[*types.Union](t); ok {
		ts := u.Types()
		for i := range ts {
			ts[i] = nonInstance(ts[i])
		}
		return types.MakeUnion(ts...)
	}
	t = types.Base(t)
	if i, ok := t.(*types.Instance); ok {
		return i.Supertype()
	}
	return t
}

// bindLocalVar declares name in env. When isDef is set the name node is
// the defining site.
func (tc *TypeChecker) bindLocalVar(env *TypeEnv, name *ast.Name, t types.Type, isDef bool) types.Type {
	var site ast.Node
	if isDef {
		site = name
	}
	lt := types.AsLocalVar(nonInstance(t), types.NewDefinition(site))
	env.Bind(name.Name, lt)
	tc.table[name] = lt
	return lt
}

func paramsOf(n ast.Node) *ast.Parameters {
	switch n := n.(type) {
	case *ast.Def:
		return &n.Parameters
	case *ast.Block:
		return &n.Parameters
	}
	return &ast.Parameters{}
}

func bodyOf(n ast.Node) ast.Node {
	switch n := n.(type) {
	case *ast.Def:
		return n.Body
	case *ast.Block:
		return n.Body
	}
	return nil
}

func statements(body ast.Node) []ast.Node {
	if e, ok := body.(*ast.Exprs); ok {
		return e.Expressions
	}
	if body == nil {
		return nil
	}
	return []ast.Node{body}
}

func (tc *TypeChecker) typeAll(ns []ast.Node, env *TypeEnv) ([]types.Type, error) {
	out := make([]types.Type, len(ns))
	for i, n := range ns {
		t, err := tc.Type(n, env)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// callType types a call of name on recv with args. A nil recv calls a
// method of self unless name is bound in env.
func (tc *TypeChecker) callType(recv ast.Node, name string, args []ast.Node, env *TypeEnv) (types.Type, error) {
	argTypes, err := tc.typeAll(args, env)
	if err != nil {
		return nil, err
	}
	var recvType types.Type = types.Dynamic
	if recv == nil {
		if t, ok := env.Lookup(name); ok && types.HasRole(t, types.ResultRole) {
			return t, nil
		}
		if ctx := env.Context(); ctx != nil {
			recvType = ctx
		}
	} else if recvType, err = tc.Type(recv, env); err != nil {
		return nil, err
	}
	exact := recvType.Exact()
	if types.Dynamic.Equal(recvType) || exact == nil {
		return types.Dynamic, nil
	}
	if b, ok := LookupBuiltin(exact, name); ok {
		if err := tc.checkArgs(b.Type, argTypes); err != nil {
			return nil, err
		}
		return b.Type.Result(), nil
	}
	mt, err := tc.methodType(Entry{Class: exact.Name(), Name: name}, exact, argTypes, env)
	if err != nil {
		return nil, err
	}
	return mt.Result(), nil
}

// methodType types the callee e in a fresh environment whose parameters
// hold the argument types. The callee is typed only once; later calls
// are checked against the recorded method type.
func (tc *TypeChecker) methodType(e Entry, ctx *types.Class, argTypes []types.Type, env *TypeEnv) (*types.Method, error) {
	t, err := tc.resolve(tc.Current(), e, ctx)
	if err != nil {
		return nil, err
	}
	base := env.NewBase(t.Context)
	if _, typed := tc.table[t.Root]; !typed {
		for i, p := range paramsOf(t.Root).Params {
			var at types.Type = types.Dynamic
			if i < len(argTypes) {
				at = argTypes[i]
			}
			tc.bindLocalVar(base, p, at, false)
		}
	}
	rt, err := tc.Type(t.Root, base)
	if err != nil {
		return nil, err
	}
	mt, ok := types.As[*types.Method](rt)
	if !ok {
		return nil, tc.errorf("not a method type")
	}
	if err := tc.checkArgs(mt, argTypes); err != nil {
		return nil, err
	}
	return mt, nil
}

func (tc *TypeChecker) checkArgs(mt *types.Method, argTypes []types.Type) error {
	if mt.DynParams {
		return nil
	}
	if len(mt.Params) != len(argTypes) {
		return tc.errorf("argument type mismatch")
	}
	for i, p := range mt.Params {
		if !argTypes[i].SubtypeOf(p) {
			return tc.errorf("argument type mismatch")
		}
	}
	return nil
}

// ivarType returns the type recorded for an instance variable of key,
// recording valueType when the variable is new.
func (tc *TypeChecker) ivarType(key *types.Class, ivar *ast.Name, valid bool, valueType types.Type) (types.Type, error) {
	td, ok := tc.typedefs[key]
	if !ok {
		td = map[string]types.Type{}
		tc.typedefs[key] = td
	}
	t, ok := td[ivar.Name]
	if !ok {
		td[ivar.Name] = valueType
		return valueType, nil
	}
	if valid && !valueType.SubtypeOf(t) {
		return tc.fail("bad type value for %s", ivar.Name)
	}
	return t, nil
}
