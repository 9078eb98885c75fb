package main

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at link time for releases:
//
//	go build -ldflags "-X main.Version=v0.1.0 -X main.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func versionString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clift %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
	if Commit != "unknown" {
		fmt.Fprintf(&b, "  commit: %s\n", Commit)
	}
	if BuildDate != "unknown" {
		fmt.Fprintf(&b, "  built:  %s\n", BuildDate)
	}
	return b.String()
}

func printVersion() {
	fmt.Print(versionString())
}
