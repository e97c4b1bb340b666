package hostproc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when none of the resolution strategies yields a
// usable binary.
var ErrNotFound = errors.New("hostproc: no usable host binary found")

// Resolution is what the worker needs to launch the host process.
type Resolution struct {
	Command string
	Args    []string
	Path    string // the resolved binary path, for logging/telemetry
}

// Resolve tries, in order: an explicit path override, the platform entry of
// HOST_CACHE/manifest.json, then conventional build-output paths. Each
// candidate must exist and be executable.
func Resolve(hostPath, hostCache string) (Resolution, error) {
	if hostPath != "" {
		if !isUsable(hostPath) {
			return Resolution{}, fmt.Errorf("hostproc: HOST_PATH %q is not a usable executable", hostPath)
		}
		return launchFor(hostPath), nil
	}

	if hostCache != "" {
		if r, ok := resolveFromManifest(hostCache); ok {
			return r, nil
		}
	}

	for _, candidate := range conventionalPaths(hostCache) {
		if isUsable(candidate) {
			return launchFor(candidate), nil
		}
	}

	return Resolution{}, ErrNotFound
}

func resolveFromManifest(hostCache string) (Resolution, bool) {
	manifestPath := filepath.Join(hostCache, "manifest.json")
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return Resolution{}, false
	}
	entry, ok := m.Binaries[PlatformKey()]
	if !ok {
		return Resolution{}, false
	}
	candidate := entry.Path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(hostCache, candidate)
	}
	if !isUsable(candidate) {
		return Resolution{}, false
	}
	return launchFor(candidate), true
}

// conventionalPaths lists known build-output locations, relative to
// hostCache when set and to the current working directory otherwise.
func conventionalPaths(hostCache string) []string {
	base := hostCache
	if base == "" {
		base, _ = os.Getwd()
	}
	binName := "FormatHost"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	return []string{
		filepath.Join(base, "host", PlatformKey(), binName),
		filepath.Join(base, "bin", PlatformKey(), binName),
		filepath.Join(base, "bin", "host", "FormatHost.dll"),
		filepath.Join(base, "FormatHost.dll"),
	}
}

// launchFor picks the right process-launch shape: .dll artefacts go through
// a platform runtime command, native binaries are launched directly.
func launchFor(path string) Resolution {
	if strings.HasSuffix(strings.ToLower(path), ".dll") {
		return Resolution{Command: dotnetCommand(), Args: []string{path}, Path: path}
	}
	return Resolution{Command: path, Path: path}
}

func dotnetCommand() string { return "dotnet" }

func isUsable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if strings.HasSuffix(strings.ToLower(path), ".dll") {
		return true
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
