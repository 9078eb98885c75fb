package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(text), 0644))
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[compiler]
command = "clang"
flags = ["-O3", "-shared", "-fPIC"]

[output]
work_dir = "out"
keep = true
`)
	c, err := Load(dir)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, "clang", c.Compiler.Command)
	assert.Equal(t, []string{"-O3", "-shared", "-fPIC"}, c.Compiler.Flags)
	assert.Equal(t, d.Compiler.OutputFlag, c.Compiler.OutputFlag)
	assert.Equal(t, d.Compiler.LibExtension, c.Compiler.LibExtension)
	assert.Equal(t, d.Compiler.Headers, c.Compiler.Headers)
	assert.Equal(t, d.OpenCL.Flags, c.OpenCL.Flags)
	assert.True(t, c.Output.Keep)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, c.Dir)
	assert.Equal(t, filepath.Join(abs, "out"), c.Output.WorkDir)
}

func TestLoadHeaders(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[compiler]
headers = ["#include <stdint.h>"]

[opencl]
headers = ["#include \"cl.h\""]
`)
	c, err := Load(dir)
	require.NoError(t, err)

	opts := c.Options()
	assert.Equal(t, []string{"#include <stdint.h>"}, opts.Headers)
	assert.Equal(t, []string{`#include "cl.h"`}, opts.OpenCLHeaders)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "cannot read")

	dir := t.TempDir()
	writeConfig(t, dir, "[compiler\n")
	_, err = Load(dir)
	assert.ErrorContains(t, err, "parse error in")
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[compiler]\ncommand = \"gcc-14\"\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, "gcc-14", c.Compiler.Command)

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, abs, c.Dir)
}

func TestFindAndLoadDefaults(t *testing.T) {
	t.Setenv("CLIFTCACHE", "/tmp/clift-cache")
	c, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	if c.Dir != "" {
		t.Skipf("found %s above the temp dir", filepath.Join(c.Dir, FileName))
	}
	assert.Equal(t, Default(), c)
	assert.Equal(t, "/tmp/clift-cache", c.Output.WorkDir)
}

func TestDefaultWorkDir(t *testing.T) {
	t.Setenv("CLIFTCACHE", "/custom")
	assert.Equal(t, "/custom", DefaultWorkDir())

	if runtime.GOOS != "linux" {
		t.Skip("XDG_CACHE_HOME applies to linux")
	}
	t.Setenv("CLIFTCACHE", "")
	t.Setenv("XDG_CACHE_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "clift"), DefaultWorkDir())
}

func TestDefaultPerOS(t *testing.T) {
	c := Default()
	assert.Equal(t, "-o", c.Compiler.OutputFlag)
	switch runtime.GOOS {
	case "darwin":
		assert.Equal(t, ".dylib", c.Compiler.LibExtension)
		assert.Contains(t, c.Compiler.Flags, "-dynamiclib")
	case "windows":
		assert.Equal(t, ".dll", c.Compiler.LibExtension)
	default:
		assert.Equal(t, ".so", c.Compiler.LibExtension)
		assert.Contains(t, c.Compiler.Flags, "-fPIC")
	}
}
