package compiler

import (
	"github.com/thiremani/clift/ast"
)

const currentTimeBody = `struct timespec time;
clock_gettime(CLOCK_MONOTONIC, &time);
return time.tv_sec * 1000000 + time.tv_nsec / 1000;`

func typedeclCall(pairs ...ast.Pair) *ast.Call {
	return ast.NewCommand(nil, "typedecl", ast.NewHash(pairs...))
}

func label(name string, v ast.Node) ast.Pair {
	return ast.Pair{Key: ast.NewLabel(name), Value: v}
}

// foreign functions of the C math library taking and returning a double
var mathFuncs = map[string]bool{
	"sqrt": true, "sqrtf": true, "exp": true, "expf": true, "log": true, "logf": true,
}

// preludeTree returns a fresh tree for a method every program can call.
func preludeTree(name string) (ast.Node, bool) {
	switch {
	case name == "printf":
		return ast.NewDef(name, []string{"s"}, typedeclCall(
			label("s", ast.ConstName("String")),
			label("foreign", ast.ConstName("Void")))), true
	case name == "current_time":
		return ast.NewDef(name, nil, ast.NewExprs(
			ast.NewUnary("!", ast.ConstName("Int")),
			typedeclCall(label("native", ast.Str(currentTimeBody))))), true
	case mathFuncs[name]:
		return ast.NewDef(name, []string{"f"}, typedeclCall(
			label("f", ast.ConstName("Float")),
			label("foreign", ast.ConstName("Float")))), true
	}
	return nil, false
}
