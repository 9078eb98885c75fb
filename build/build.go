// Package build turns generated units into shared libraries and loads them
// back into the process.
package build

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/thiremani/clift/compiler"
	"github.com/thiremani/clift/config"
)

var log = commonlog.GetLogger("clift.build")

// MarchEnv overrides the target architecture of every compile.
const MarchEnv = "CLIFT_MARCH"

const (
	artifactPrefix = "clift-"
	manifestSuffix = ".cbor"
	sourceSuffix   = ".c"

	// artifacts kept by Build, and the age below which none is removed
	keepArtifacts = 64
	minPruneAge   = 7 * 24 * time.Hour
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("build: failed to create CBOR enc mode: " + err.Error())
	}
	encMode = em
}

// Error is a failed build. It carries every message that caused it.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "build failed:\n" + strings.Join(e.Messages, "\n")
}

// Manifest describes a built library and the functions it exports.
type Manifest struct {
	Library string           `cbor:"library"`
	Backend string           `cbor:"backend"`
	Exports []ManifestExport `cbor:"exports"`

	// Path is where the manifest was read from or written to.
	Path string `cbor:"-"`
}

// ManifestExport is an exported function and its mangled signature.
type ManifestExport struct {
	Name      string `cbor:"name"`
	Signature string `cbor:"signature"`
}

// Builder runs the configured C compiler in the configured work directory.
type Builder struct {
	Config *config.Config
}

func New(c *config.Config) *Builder {
	return &Builder{Config: c}
}

// Persist writes text to path, creating its directory.
func (b *Builder) Persist(text, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// compileFlags returns flags followed by the CLIFT_MARCH target, if set.
func compileFlags(flags []string) []string {
	out := append([]string(nil), flags...)
	march := strings.TrimSpace(os.Getenv(MarchEnv))
	switch {
	case march == "":
	case strings.HasPrefix(march, "-march="):
		out = append(out, march)
	default:
		out = append(out, "-march="+march)
	}
	return out
}

// Invoke compiles src into the library lib and returns the exit status of
// the compiler. A non-zero status comes with an *Error holding its output.
// The work directory stays locked while the compiler runs.
func (b *Builder) Invoke(src, lib string, linkFlags ...string) (int, error) {
	cc := b.Config.Compiler
	args := append(compileFlags(cc.Flags), src, cc.OutputFlag, lib)
	args = append(args, linkFlags...)
	args = append(args, cc.Libs...)

	lock, err := b.lock()
	if err != nil {
		return -1, err
	}
	defer lock.Unlock()

	log.Debugf("%s %s", cc.Command, strings.Join(args, " "))
	out, err := exec.Command(cc.Command, args...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(string(out))
			if msg == "" {
				msg = exitErr.Error()
			}
			return exitErr.ExitCode(), &Error{Messages: []string{msg}}
		}
		return -1, errors.Wrapf(err, "run %s", cc.Command)
	}
	return 0, nil
}

func (b *Builder) lock() (*flock.Flock, error) {
	dir := b.Config.Output.WorkDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create work dir %s", dir)
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	if err := lock.Lock(); err != nil {
		return nil, errors.Wrap(err, "acquire work dir lock")
	}
	return lock, nil
}

// Build compiles unit into a fresh library and writes its manifest. A unit
// with generation errors is refused. Every build gets its own file names,
// so a library already loaded is never overwritten.
func (b *Builder) Build(unit *compiler.Unit) (*Manifest, error) {
	if len(unit.Errors) > 0 {
		e := &Error{}
		for _, ce := range unit.Errors {
			e.Messages = append(e.Messages, ce.Error())
		}
		return nil, e
	}
	for _, x := range unit.Exports {
		if x.Signature == "" {
			return nil, &Error{Messages: []string{"no signature for " + x.Name}}
		}
	}

	dir, err := filepath.Abs(b.Config.Output.WorkDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", b.Config.Output.WorkDir)
	}
	base := filepath.Join(dir, artifactPrefix+uuid.New().String())
	src := base + sourceSuffix
	lib := base + b.Config.Compiler.LibExtension

	if err := b.Persist(unit.Source, src); err != nil {
		return nil, err
	}
	if !b.Config.Output.Keep {
		defer os.Remove(src)
	}

	var linkFlags []string
	if unit.Backend == compiler.OpenCL {
		linkFlags = b.Config.OpenCL.Flags
	}
	log.Infof("building %s", lib)
	if _, err := b.Invoke(src, lib, linkFlags...); err != nil {
		os.Remove(lib)
		return nil, err
	}

	m := &Manifest{Library: lib, Backend: unit.Backend.String(), Path: base + manifestSuffix}
	for _, x := range unit.Exports {
		m.Exports = append(m.Exports, ManifestExport{Name: x.Name, Signature: x.Signature})
	}
	if err := writeManifest(m); err != nil {
		os.Remove(lib)
		return nil, err
	}

	b.Prune(keepArtifacts, minPruneAge)
	return m, nil
}

func writeManifest(m *Manifest) error {
	data, err := encMode.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	if err := os.WriteFile(m.Path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", m.Path)
	}
	return nil
}

// ReadManifest reads a manifest written by Build.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "decode manifest %s", path)
	}
	m.Path = path
	return &m, nil
}

// artifactID returns the build id of a manifest file name.
func artifactID(name string) (string, bool) {
	if !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, manifestSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), manifestSuffix)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Prune removes old artifacts from the work directory. It keeps the keep
// most recent ones and anything younger than minAge, since another process
// may still have them loaded.
func (b *Builder) Prune(keep int, minAge time.Duration) {
	dir := b.Config.Output.WorkDir
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) <= keep {
		return
	}

	type artifact struct {
		id    string
		mtime time.Time
	}
	var arts []artifact
	for _, e := range entries {
		id, ok := artifactID(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		if info, err := e.Info(); err == nil {
			arts = append(arts, artifact{id, info.ModTime()})
		}
	}
	if len(arts) <= keep {
		return
	}

	lock, err := b.lock()
	if err != nil {
		log.Warningf("%s", err)
		return
	}
	defer lock.Unlock()

	cutoff := time.Now().Add(-minAge)
	sort.Slice(arts, func(i, j int) bool { return arts[i].mtime.Before(arts[j].mtime) })
	for _, a := range arts[:len(arts)-keep] {
		if !a.mtime.Before(cutoff) {
			continue
		}
		base := filepath.Join(dir, artifactPrefix+a.id)
		for _, path := range []string{base + b.Config.Compiler.LibExtension, base + sourceSuffix, base + manifestSuffix} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Warningf("failed to remove old artifact %s: %v", path, err)
			}
		}
		log.Debugf("pruned %s", base)
	}
}
