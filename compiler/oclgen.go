package compiler

import (
	"fmt"
	"strconv"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/types"
)

func init() {
	oclGenRules.On(ast.CallKind, (*CodeGen).oclCall)
}

// oclCall prints buffer transfers and kernel launches. Other calls are
// printed as in C.
func (g *CodeGen) oclCall(n ast.Node, out Sink) (none, error) {
	c := n.(*ast.Call)
	switch name := c.Name.Name; name {
	case "copyfrom", "copyto":
		if c.Receiver == nil || !g.typeOf(c.Receiver).SubtypeOf(OclArrayClass) || len(c.Args) != 2 {
			break
		}
		fn := "clEnqueueWriteBuffer"
		if name == "copyto" {
			fn = "clEnqueueReadBuffer"
		}
		out.Write("ocl_err_check(", fn, "(commands, ")
		g.gen(c.Receiver, out)
		out.Write(", CL_TRUE, 0, sizeof(float) * ")
		g.gen(c.Args[1], out)
		out.Write(", ")
		g.gen(c.Args[0], out)
		out.Write(`, 0, NULL, NULL), "`, name, `")`)
		return none{}, nil
	case types.OclTimes:
		kb, ok := g.tc.Kernel(c.Block)
		if !ok {
			return g.fail(n, "unknown kernel block")
		}
		out.Write(kb.Name, "_call(")
		g.gen(c.Receiver, out)
		for _, v := range kb.FreeVars {
			out.Write(", ", v.Name)
		}
		out.Write(")")
		return none{}, nil
	}
	return g.Proceed(n, out)
}

func (g *CodeGen) oclBuffers() []*OclArray {
	var bufs []*OclArray
	for _, obj := range g.tc.Ivars() {
		if a, ok := obj.(*OclArray); ok {
			bufs = append(bufs, a)
		}
	}
	return bufs
}

func (g *CodeGen) oclDeclarations(p *Printer) {
	for _, a := range g.oclBuffers() {
		p.Write("static cl_mem ", g.globals[a], ";")
		p.NL()
	}
	for _, kb := range g.tc.Blocks() {
		p.Write("static cl_kernel ", kb.Name, ";")
		p.NL()
	}
}

func (g *CodeGen) oclPreamble(p *Printer) {
	p.Write("int ocl_init(int);")
	p.NL()
	p.Write("void ocl_finish();")
	p.NL()
	p.NL()
	g.kernelSource(p)
	p.Write(oclHelperSource)
	g.oclInit(p)
	g.oclFinish(p)
	g.kernelCallers(p)
}

// kernelSource prints every ocl_times block as an OpenCL kernel inside
// one C string.
func (g *CodeGen) kernelSource(p *Printer) {
	p.Write("static const char* kernelSource = ")
	p.NL()
	p.Write(`"`)
	kp := NewKernelPrinter(p)
	for _, kb := range g.tc.Blocks() {
		kp.Write("__kernel void ", kb.Name, "(")
		first := true
		sep := func() {
			if !first {
				kp.Write(", ")
			}
			first = false
		}
		for _, v := range kb.FreeVars {
			sep()
			ct, ok := kernelCTypeName(v.Type)
			if !ok {
				g.fail(kb.Block, "bad kernel argument: %s", v.Name)
			}
			kp.Write(ct, " ", v.Name)
		}
		for _, obj := range kb.Ivars {
			sep()
			if _, ok := obj.(*OclArray); !ok {
				g.fail(kb.Block, "bad kernel argument: %s", obj)
			}
			kp.Write("__global float* ", g.globals[obj])
		}
		kp.Write(") {")
		kp.Down()
		g.localDecls(kb.Block, kp)
		kp.Write("int ", kb.Block.Params[0].Name, " = get_global_id(0);")
		kp.NL()
		g.body(kb.Block.Body, kp)
		kp.Up()
		kp.Write("}")
		kp.NL()
	}
	p.Write(` ";`)
	p.NL()
	p.NL()
}

func (g *CodeGen) oclInit(p *Printer) {
	p.Write(`int ocl_init(int is_gpu) {
  if (ocl_initialized) return 0;
  ocl_initialized = 1;
  if (ocl_init0(is_gpu)) return 1;

  int err;
`)
	for _, kb := range g.tc.Blocks() {
		fmt.Fprintf(printerWriter{p}, `  %s = clCreateKernel(program, "%s", &err);
  if (err != CL_SUCCESS) {
    fprintf(stderr, "error: clCreateKernel\n");
    return 1; }
`, kb.Name, kb.Name)
	}
	for _, a := range g.oclBuffers() {
		name := g.globals[a]
		fmt.Fprintf(printerWriter{p}, `  %s = clCreateBuffer(context, CL_MEM_READ_WRITE, sizeof(float) * %d, NULL, NULL);
  if (!%s) {
    fprintf(stderr, "error: clCreateBuffer\n"); return 1; }
`, name, a.Size, name)
	}
	p.Write("\n  return 0;\n}\n\n")
}

func (g *CodeGen) oclFinish(p *Printer) {
	p.Write(`void ocl_finish() {
  if (!ocl_initialized) return;
  ocl_initialized = 0;
`)
	for _, a := range g.oclBuffers() {
		p.Write("  clReleaseMemObject(", g.globals[a], ");\n")
	}
	for _, kb := range g.tc.Blocks() {
		p.Write("  clReleaseKernel(", kb.Name, ");\n")
	}
	p.Write(`  clReleaseProgram(program);
  clReleaseCommandQueue(commands);
  clReleaseContext(context);
}

`)
}

// kernelCallers prints blockN_call, which sets the kernel arguments and
// runs the kernel over p0 work items.
func (g *CodeGen) kernelCallers(p *Printer) {
	for _, kb := range g.tc.Blocks() {
		p.Write("static void ", kb.Name, "_call(size_t p0")
		for i, v := range kb.FreeVars {
			tname, ok := CTypeName(v.Type)
			if v.Type.SubtypeOf(OclArrayClass) {
				tname, ok = "cl_mem", true
			}
			if !ok {
				g.fail(kb.Block, "bad kernel argument: %s", v.Name)
			}
			p.Write(", ", tname, " p", strconv.Itoa(i+1))
		}
		p.Write(") {")
		p.Down()
		p.Write("size_t global;")
		p.NL()
		p.Write("int err = 0;")
		p.NL()
		i := len(kb.FreeVars)
		for _, obj := range kb.Ivars {
			i++
			p.Write(fmt.Sprintf("cl_mem p%d = %s;", i, g.globals[obj]))
			p.NL()
		}
		for j := 0; j < i; j++ {
			p.Write(fmt.Sprintf("err |= clSetKernelArg(%s, %d, sizeof(p%d), &p%d);", kb.Name, j, j+1, j+1))
			p.NL()
		}
		p.Write(`ocl_err_check(err, "clSetKernelArg");`)
		p.NL()
		p.Write("global = p0;")
		p.NL()
		p.Write("ocl_err_check(clEnqueueNDRangeKernel(commands, ", kb.Name,
			`, 1, NULL, &global, NULL, 0, NULL, NULL), "clEnqueueNDRangeKernel");`)
		p.NL()
		p.Write("clFinish(commands);")
		p.Up()
		p.Write("}")
		p.NL()
	}
}

// printerWriter lets fmt print to a Printer.
type printerWriter struct{ p *Printer }

func (w printerWriter) Write(b []byte) (int, error) {
	w.p.Write(string(b))
	return len(b), nil
}

const oclHelperSource = `static int ocl_initialized = 0;
static cl_device_id device_id;
static cl_context context;
static cl_command_queue commands;
static cl_program program;

static int ocl_err_check(int err, const char* msg) {
  if (err == CL_SUCCESS)
    return 0;
  else {
    fprintf(stderr, "OpenCL Error: %s, %d\n", msg, err);
    return 1;
  }
}

static int ocl_init0(int gpu) {
  cl_device_id devices[4];
  cl_uint num_devices;
  int err = clGetDeviceIDs(NULL,
                gpu > 0? CL_DEVICE_TYPE_GPU : CL_DEVICE_TYPE_CPU,
                sizeof(devices) / sizeof(devices[0]), devices, &num_devices);
  if (err != CL_SUCCESS) {
    fprintf(stderr, "error: clGetDeviceIDs\n");
    return 1;
  }

  int id = num_devices < gpu ? num_devices : gpu;
  device_id = devices[id < 1 ? 0 : id - 1];

  context = clCreateContext(0, 1, &device_id, NULL, NULL, &err);
  if (!context) {
    fprintf(stderr, "error: clCreateContext\n");
    return 1;
  }

  commands = clCreateCommandQueue(context, device_id, 0, &err);
  if (!commands) {
    fprintf(stderr, "error: clCreateCommandQueue\n");
    return 1;
  }

  program = clCreateProgramWithSource(context, 1,
                (const char **)&kernelSource, NULL, &err);
  if (!program) {
    fprintf(stderr, "error: clCreateProgramWithSource\n");
    return 1;
  }

  err = clBuildProgram(program, 0, NULL, NULL, NULL, NULL);
  if (err != CL_SUCCESS) {
    size_t len;
    char buffer[2048];
    fprintf(stderr, "error: clBuildProgram\n");
    clGetProgramBuildInfo(program, device_id, CL_PROGRAM_BUILD_LOG,
                          sizeof(buffer), buffer, &len);
    fprintf(stderr, "%s\n", buffer);
    return 1;
  }

  return 0;
}

`
