package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/build"
	"github.com/thiremani/clift/bundle"
)

func typedecl(pairs ...ast.Pair) *ast.Call {
	return ast.NewCommand(nil, "typedecl", ast.NewHash(pairs...))
}

func label(name string) ast.Pair {
	return ast.Pair{Key: ast.NewLabel(name), Value: ast.ConstName("Int")}
}

// writeBundle stores a bundle with the single entry Object#f.
func writeBundle(t *testing.T, dir string, f *ast.Def) string {
	t.Helper()
	b := &bundle.Bundle{}
	require.NoError(t, b.Add("Object", "f", f, nil))
	b.AddEntry("Object", "f")
	data, err := b.Marshal()
	require.NoError(t, err)
	path := filepath.Join(dir, "f.cbor")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunEmit(t *testing.T) {
	dir := t.TempDir()
	f := ast.NewDef("f", []string{"n"}, ast.NewExprs(
		typedecl(label("n"), label("return")),
		ast.NewReturn(ast.NewBinary(ast.Ident("n"), "+", ast.Int(1)))))
	out := filepath.Join(dir, "gen", "f.c")

	require.NoError(t, run(writeBundle(t, dir, f), options{emit: out}))
	src, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(src), "int32_t f(int32_t n) {\n  return n + 1;\n}\n")
}

func TestRunReportsGenerationErrors(t *testing.T) {
	dir := t.TempDir()
	f := ast.NewDef("f", []string{"n"}, ast.NewExprs(
		typedecl(label("n")),
		ast.NewConditional("unless", ast.NewBinary(ast.Ident("n"), ">", ast.Int(0)),
			ast.NewAssign(ast.Ident("n"), "=", ast.Int(0)), nil, nil)))
	out := filepath.Join(dir, "f.c")

	err := run(writeBundle(t, dir, f), options{emit: out})
	var be *build.Error
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Messages[0], "a bad control statement")
	assert.NoFileExists(t, out)
}

func TestRunTypeError(t *testing.T) {
	dir := t.TempDir()
	f := ast.NewDef("f", []string{"n"}, ast.NewExprs(
		typedecl(label("n"), label("return")),
		ast.NewBinary(ast.Ident("n"), "+", ast.Int(1))))

	err := run(writeBundle(t, dir, f), options{emit: filepath.Join(dir, "f.c")})
	assert.ErrorContains(t, err, "type error: no return statement")
}

func TestRunMissingBundle(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "none.cbor"), options{})
	assert.ErrorContains(t, err, "cannot read")
}

func TestLoadConfigOverrides(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clift.toml"), []byte("[compiler]\ncommand = \"clang\"\n"), 0644))
	nested := filepath.Join(root, "bundles")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := loadConfig(filepath.Join(nested, "x.cbor"), options{dir: "/tmp/out", keep: true})
	require.NoError(t, err)
	assert.Equal(t, "clang", cfg.Compiler.Command)
	assert.Equal(t, "/tmp/out", cfg.Output.WorkDir)
	assert.True(t, cfg.Output.Keep)

	_, err = loadConfig("x.cbor", options{config: filepath.Join(root, "missing.toml")})
	assert.ErrorContains(t, err, "cannot read")
}

func TestVersionString(t *testing.T) {
	assert.Contains(t, versionString(), "clift dev (")
	assert.NotContains(t, versionString(), "commit:")

	old := Commit
	Commit = "abc123"
	defer func() { Commit = old }()
	assert.Contains(t, versionString(), "  commit: abc123\n")
}
