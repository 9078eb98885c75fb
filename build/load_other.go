//go:build !(darwin || freebsd || linux || netbsd)

package build

import (
	"runtime"

	"github.com/pkg/errors"
)

// Load is not supported on this platform.
func Load(manifestPath string) (*Library, error) {
	return nil, errors.Errorf("loading libraries is not supported on %s", runtime.GOOS)
}

func (l *Library) Close() error { return nil }
