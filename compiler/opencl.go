package compiler

import (
	"fmt"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

func init() {
	openclRules.On(ast.ArrayRefKind, (*TypeChecker).oclArrayRef)
}

// oclArrayRef types an element of a device buffer as Float32.
func (tc *TypeChecker) oclArrayRef(n ast.Node, env *TypeEnv) (types.Type, error) {
	a := n.(*ast.ArrayRef)
	at, err := tc.Type(a.Array, env)
	if err != nil {
		return nil, err
	}
	if !at.SubtypeOf(OclArrayClass) {
		return tc.Proceed(n, env)
	}
	if len(a.Indexes) != 1 {
		return tc.fail("bad array index")
	}
	if err := tc.integerIndexes(a.Indexes, env); err != nil {
		return nil, err
	}
	return types.Float32, nil
}

// typeOclTimes types the block of n.ocl_times { |i| ... } as a kernel. The
// variables it reads from the enclosing method become kernel arguments.
func (tc *TypeChecker) typeOclTimes(c *ast.Call, env *TypeEnv) (types.Type, error) {
	p, err := tc.blockParam(c, env)
	if err != nil {
		return nil, err
	}
	tenv := env.FreeVarFinder()
	tenv.Bind(p.Name, types.Integer)
	tenv.Bind(returnKey, types.Void)

	outer := tc.ivars
	tc.ivars = newObjects()
	_, err = tc.Type(c.Block, tenv)
	captured := tc.ivars
	tc.ivars = outer
	outer.merge(captured)
	if err != nil {
		return nil, err
	}

	kb := &KernelBlock{
		Name:     fmt.Sprintf("block%d", len(tc.blocks)),
		Block:    c.Block,
		FreeVars: tenv.FreeVars(),
		Ivars:    captured.items(),
	}
	tc.blocks = append(tc.blocks, kb)
	log.Debugf("kernel %s captures %d variables", kb.Name, len(kb.FreeVars))
	return types.Void, nil
}

// Kernel returns the kernel compiled from block b.
func (tc *TypeChecker) Kernel(b *ast.Block) (*KernelBlock, bool) {
	for _, kb := range tc.blocks {
		if kb.Block == b {
			return kb, true
		}
	}
	return nil, false
}
