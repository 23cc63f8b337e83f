// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags at build time.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Build is the resolved build information.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	BuildTime string
	GoVersion string
}

// Current returns the build information of the running binary.
func Current() Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build = build.withSettings(info.Settings)
	}
	return build
}

// withSettings fills fields that were not injected from the
// toolchain's vcs.* build settings.
func (b Build) withSettings(settings []debug.BuildSetting) Build {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if b.Commit == "unknown" && setting.Value != "" {
				b.Commit = setting.Value[:min(len(setting.Value), 12)]
			}
		case "vcs.time":
			if b.BuildTime == "unknown" && setting.Value != "" {
				b.BuildTime = setting.Value
			}
		case "vcs.modified":
			if setting.Value == "true" {
				b.Dirty = true
			}
		}
	}
	return b
}

// String formats b for --version output, e.g.
// "0.1.0-dev (abc1234-dirty, 2026-10-19T12:00:00Z)".
func (b Build) String() string {
	dirty := ""
	if b.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", b.Version, b.Commit, dirty, b.BuildTime)
}

// Info returns Current().String().
func Info() string {
	return Current().String()
}

// Fprint writes "<binary> <info>" and the Go toolchain and platform
// to w.
func Fprint(w io.Writer, binary string) {
	build := Current()
	fmt.Fprintf(w, "%s %s\n  Go: %s\n  Platform: %s/%s\n",
		binary, build, build.GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Print writes the version of binary to stdout.
func Print(binary string) {
	Fprint(os.Stdout, binary)
}
