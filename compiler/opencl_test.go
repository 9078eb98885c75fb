package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

// def run(a, n)
//
//	typedecl a: Float32Array, n: Int
//	@buf.copyfrom(a, n)
//	n.ocl_times {|i| @buf[i] = @buf[i] + n }
//	@buf.copyto(a, n)
func oclProgram() (*ast.Def, Values) {
	bufs := []*ast.Name{ast.IVar("@buf"), ast.IVar("@buf"), ast.IVar("@buf"), ast.IVar("@buf")}
	kernel := ast.NewBlock([]string{"i"}, ast.NewAssign(
		ast.NewArrayRef(bufs[1], ast.Ident("i")), "=",
		ast.NewBinary(ast.NewArrayRef(bufs[2], ast.Ident("i")), "+", ast.Ident("n"))))
	run := ast.NewDef("run", []string{"a", "n"}, ast.NewExprs(
		decl(label("a", ast.ConstName("Float32Array")), label("n", intConst())),
		ast.NewCall(bufs[0], "copyfrom", ast.Ident("a"), ast.Ident("n")),
		ast.NewCall(ast.Ident("n"), types.OclTimes).WithBlock(kernel),
		ast.NewCall(bufs[3], "copyto", ast.Ident("a"), ast.Ident("n"))))
	values := capture(nil, NewOclArray(16), bufs[0], bufs[1], bufs[2], bufs[3])
	return run, values
}

func TestTypeKernelBlock(t *testing.T) {
	run, values := oclProgram()
	tc, mt := typecheck(t, OpenCL, Trees{object("run"): run}, values, object("run"))
	assert.True(t, types.Void.Equal(mt.Ret))

	blocks := tc.Blocks()
	require.Len(t, blocks, 1)
	kb := blocks[0]
	assert.Equal(t, "block0", kb.Name)
	require.Len(t, kb.FreeVars, 1)
	assert.Equal(t, "n", kb.FreeVars[0].Name)
	assert.True(t, kb.FreeVars[0].Type.Equal(types.Integer))
	require.Len(t, kb.Ivars, 1)
	assert.IsType(t, &OclArray{}, kb.Ivars[0])

	got, ok := tc.Kernel(kb.Block)
	require.True(t, ok)
	assert.Same(t, kb, got)
}

func TestOclTimesNeedsOpenCL(t *testing.T) {
	// without the OpenCL rules ocl_times is an ordinary call taking a block
	n := ast.Ident("n")
	f := ast.NewDef("f", []string{"n"}, ast.NewExprs(
		decl(label("n", intConst())),
		ast.NewCall(n, types.OclTimes).WithBlock(ast.NewBlock([]string{"i"}, ast.Ident("i")))))
	err := typecheckErr(t, C, Trees{object("f"): f}, nil, object("f"))
	assert.ErrorContains(t, err, "a block is not taken: ocl_times")
}

func TestGenerateOpenCL(t *testing.T) {
	run, values := oclProgram()
	unit := compileClean(t, OpenCL, Trees{object("run"): run}, values, object("run"))
	src := unit.Source

	assert.Contains(t, src, "#include <")
	assert.Contains(t, src, "static cl_mem _gvar_0_;\n")
	assert.Contains(t, src, "static cl_kernel block0;\n")
	assert.Contains(t, src, "void run(float* a, int32_t n);\n")

	// kernel source is one C string
	assert.Contains(t, src, "static const char* kernelSource = \n")
	assert.Contains(t, src, "__kernel void block0(int n, __global float* _gvar_0_) {")
	assert.Contains(t, src, "int i = get_global_id(0);")
	assert.Contains(t, src, "_gvar_0_[i] = _gvar_0_[i] + n;")

	assert.Contains(t, src, `block0 = clCreateKernel(program, "block0", &err);`)
	assert.Contains(t, src, "_gvar_0_ = clCreateBuffer(context, CL_MEM_READ_WRITE, sizeof(float) * 16, NULL, NULL);")
	assert.Contains(t, src, "  clReleaseMemObject(_gvar_0_);\n")
	assert.Contains(t, src, "  clReleaseKernel(block0);\n")

	caller := `static void block0_call(size_t p0, int32_t p1) {
  size_t global;
  int err = 0;
  cl_mem p2 = _gvar_0_;
  err |= clSetKernelArg(block0, 0, sizeof(p1), &p1);
  err |= clSetKernelArg(block0, 1, sizeof(p2), &p2);
  ocl_err_check(err, "clSetKernelArg");
  global = p0;
  ocl_err_check(clEnqueueNDRangeKernel(commands, block0, 1, NULL, &global, NULL, 0, NULL, NULL), "clEnqueueNDRangeKernel");
  clFinish(commands);
}
`
	assert.Contains(t, src, caller)

	body := `void run(float* a, int32_t n) {
  ocl_err_check(clEnqueueWriteBuffer(commands, _gvar_0_, CL_TRUE, 0, sizeof(float) * n, a, 0, NULL, NULL), "copyfrom");
  block0_call(n, n);
  ocl_err_check(clEnqueueReadBuffer(commands, _gvar_0_, CL_TRUE, 0, sizeof(float) * n, a, 0, NULL, NULL), "copyto");
}
`
	assert.Contains(t, src, body)

	require.Len(t, unit.Exports, 3)
	assert.Equal(t, "$run$P2$Ptr$1$F32$I32$O0", unit.Exports[0].Signature)
	assert.Equal(t, "$ocl_init$P1$I32$O0", unit.Exports[1].Signature)
	assert.Equal(t, "$ocl_finish$P0$O0", unit.Exports[2].Signature)
}

func TestCopyNeedsDeviceArray(t *testing.T) {
	// copyfrom on a host array is an ordinary call and has no builtin
	ivar := ast.IVar("@array")
	f := ast.NewDef("f", []string{"a"}, ast.NewExprs(
		decl(label("a", ast.ConstName("Float32Array"))),
		ast.NewCall(ivar, "copyfrom", ast.Ident("a"), ast.Int(4))))
	values := capture(nil, NewCArray(types.Float32, 4), ivar)
	err := typecheckErr(t, OpenCL, Trees{object("f"): f}, values, object("f"))
	assert.ErrorContains(t, err, "no source code: for CArray#copyfrom")
}
