//go:build darwin || freebsd || linux || netbsd

package build

import (
	"reflect"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// Load opens the library of a manifest and binds its exports. Libraries
// are opened with local symbol visibility, so two libraries exporting the
// same name stay independent.
func Load(manifestPath string) (*Library, error) {
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	handle, err := purego.Dlopen(m.Library, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", m.Library)
	}
	lib := &Library{Manifest: m, Symbols: map[string]*Symbol{}, handle: handle}
	for _, x := range m.Exports {
		s, err := lib.bind(x)
		if err != nil {
			lib.Close()
			return nil, err
		}
		lib.Symbols[x.Name] = s
	}
	log.Infof("loaded %s: %d symbols", m.Library, len(lib.Symbols))
	return lib, nil
}

func (l *Library) bind(x ManifestExport) (*Symbol, error) {
	mt, err := signatureType(x)
	if err != nil {
		return nil, err
	}
	ft, err := funcType(mt)
	if err != nil {
		return nil, errors.Wrapf(err, "bind %s", x.Name)
	}
	addr, err := purego.Dlsym(l.handle, x.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "bind %s", x.Name)
	}
	fn := reflect.New(ft)
	purego.RegisterFunc(fn.Interface(), addr)
	return &Symbol{Name: x.Name, Type: mt, fn: fn.Elem()}, nil
}

// Close unloads the library. Its symbols must not be called afterwards.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}
