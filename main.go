// clift compiles a bundle of captured methods to a shared library.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/thiremani/clift/build"
	"github.com/thiremani/clift/bundle"
	"github.com/thiremani/clift/compiler"
	"github.com/thiremani/clift/config"
)

type options struct {
	config string
	opencl bool
	dir    string
	keep   bool
	emit   string
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Path to clift.toml (default: searched upward from the bundle)")
	flag.BoolVar(&opts.opencl, "opencl", false, "Generate OpenCL kernels for ocl_times blocks")
	flag.StringVar(&opts.dir, "dir", "", "Work directory for artifacts (overrides the configuration)")
	flag.BoolVar(&opts.keep, "keep", false, "Keep the generated C source next to the library")
	flag.StringVar(&opts.emit, "emit", "", "Write the generated C source to this file and do not build")
	verbosity := flag.Int("v", 0, "Log verbosity (0-4)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: clift [options] bundle.cbor\n\n")
		fmt.Fprintf(os.Stderr, "Compiles the entry methods of a bundle and everything they call to a shared library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  clift fact.cbor               # Build, print the manifest and signatures\n")
		fmt.Fprintf(os.Stderr, "  clift -opencl -keep run.cbor  # Build with OpenCL kernels, keep the C source\n")
		fmt.Fprintf(os.Stderr, "  clift -emit fact.c fact.cbor  # Only generate C\n")
	}
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	commonlog.Configure(*verbosity, nil)

	if err := run(flag.Arg(0), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(bundlePath string, opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.config != "" {
		cfg, err = config.LoadFile(opts.config)
	} else {
		cfg, err = config.FindAndLoad(filepath.Dir(bundlePath))
	}
	if err != nil {
		return nil, err
	}
	if opts.dir != "" {
		cfg.Output.WorkDir = opts.dir
	}
	if opts.keep {
		cfg.Output.Keep = true
	}
	return cfg, nil
}

func run(bundlePath string, opts options) error {
	cfg, err := loadConfig(bundlePath, opts)
	if err != nil {
		return err
	}
	b, err := bundle.ReadFile(bundlePath)
	if err != nil {
		return err
	}

	backend := compiler.C
	if opts.opencl {
		backend = compiler.OpenCL
	}
	unit, err := compiler.NewSession(backend, b, b, cfg.Options()).Compile(b.EntryPoints()...)
	if err != nil {
		return err
	}

	builder := build.New(cfg)
	if opts.emit != "" {
		if len(unit.Errors) > 0 {
			return &build.Error{Messages: messages(unit)}
		}
		return builder.Persist(unit.Source, opts.emit)
	}
	m, err := builder.Build(unit)
	if err != nil {
		return err
	}

	fmt.Println(m.Path)
	for _, x := range m.Exports {
		fmt.Printf("  %-16s %s\n", x.Name, x.Signature)
	}
	return nil
}

func messages(unit *compiler.Unit) []string {
	out := make([]string, len(unit.Errors))
	for i, e := range unit.Errors {
		out[i] = e.Error()
	}
	return out
}
