// Package config handles the clift.toml build configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/thiremani/clift/compiler"
)

// FileName is the name FindAndLoad looks for.
const FileName = "clift.toml"

// Config is a clift.toml build configuration.
type Config struct {
	Compiler Compiler `toml:"compiler"`
	OpenCL   OpenCL   `toml:"opencl"`
	Output   Output   `toml:"output"`

	// Dir is the directory containing the file, empty for defaults.
	Dir string `toml:"-"`
}

// Compiler configures the C compiler that turns a unit into a shared library.
type Compiler struct {
	Command      string   `toml:"command"`
	Flags        []string `toml:"flags"`
	OutputFlag   string   `toml:"output_flag"`
	LibExtension string   `toml:"lib_extension"`
	Headers      []string `toml:"headers"`
	// Libs follow the source and output on the command line.
	Libs []string `toml:"libs"`
}

// OpenCL holds what an OpenCL unit adds to the compile.
type OpenCL struct {
	Flags   []string `toml:"flags"`
	Headers []string `toml:"headers"`
}

// Output configures where artifacts go.
type Output struct {
	WorkDir string `toml:"work_dir"`
	// Keep leaves the generated source next to the library.
	Keep bool `toml:"keep"`
}

// Default returns the configuration for the host OS.
func Default() *Config {
	opts := compiler.DefaultOptions()
	c := &Config{
		Compiler: Compiler{
			Command:    "cc",
			Flags:      []string{"-O2", "-shared", "-fPIC"},
			OutputFlag: "-o",
			Headers:    opts.Headers,
			Libs:       []string{"-lm"},
		},
		OpenCL: OpenCL{
			Flags:   []string{"-lOpenCL"},
			Headers: opts.OpenCLHeaders,
		},
		Output: Output{WorkDir: DefaultWorkDir()},
	}
	switch runtime.GOOS {
	case "windows":
		c.Compiler.Command = "gcc"
		c.Compiler.Flags = []string{"-O2", "-shared"}
		c.Compiler.LibExtension = ".dll"
	case "darwin":
		c.Compiler.Flags = []string{"-O2", "-dynamiclib"}
		c.Compiler.Libs = nil
		c.Compiler.LibExtension = ".dylib"
		c.OpenCL.Flags = []string{"-framework", "OpenCL"}
	default:
		c.Compiler.LibExtension = ".so"
	}
	return c
}

// DefaultWorkDir returns CLIFTCACHE if set, otherwise the per-user cache
// directory of the host OS.
func DefaultWorkDir() string {
	if env := os.Getenv("CLIFTCACHE"); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "clift")
		}
		return filepath.Join(homeDir, "AppData", "Local", "clift")
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", "clift")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "clift")
		}
		return filepath.Join(homeDir, ".cache", "clift")
	}
}

// Load parses the clift.toml in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file. Settings the file leaves out keep
// their defaults, and a relative work_dir is taken relative to the file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", path)
	}
	c.applyDefaults(Default())
	if !filepath.IsAbs(c.Output.WorkDir) {
		c.Output.WorkDir = filepath.Join(c.Dir, c.Output.WorkDir)
	}
	return &c, nil
}

func (c *Config) applyDefaults(d *Config) {
	if c.Compiler.Command == "" {
		c.Compiler.Command = d.Compiler.Command
	}
	if c.Compiler.Flags == nil {
		c.Compiler.Flags = d.Compiler.Flags
	}
	if c.Compiler.OutputFlag == "" {
		c.Compiler.OutputFlag = d.Compiler.OutputFlag
	}
	if c.Compiler.LibExtension == "" {
		c.Compiler.LibExtension = d.Compiler.LibExtension
	}
	if c.Compiler.Headers == nil {
		c.Compiler.Headers = d.Compiler.Headers
	}
	if c.Compiler.Libs == nil {
		c.Compiler.Libs = d.Compiler.Libs
	}
	if c.OpenCL.Flags == nil {
		c.OpenCL.Flags = d.OpenCL.Flags
	}
	if c.OpenCL.Headers == nil {
		c.OpenCL.Headers = d.OpenCL.Headers
	}
	if c.Output.WorkDir == "" {
		c.Output.WorkDir = d.Output.WorkDir
	}
}

// FindAndLoad walks up from startDir to find a clift.toml and loads it.
// Without one it returns the defaults.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Options returns the code generation options the configuration selects.
func (c *Config) Options() compiler.Options {
	return compiler.Options{
		Headers:       c.Compiler.Headers,
		OpenCLHeaders: c.OpenCL.Headers,
	}
}
