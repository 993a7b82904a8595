package speechseg

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide. Models share it through a
// reference count: the first acquire initializes it, the last release
// destroys it. An environment initialized outside this package is never
// destroyed here.
var (
	runtimeMu       sync.Mutex
	runtimeRefs     int
	runtimeExternal bool

	setSharedLibraryPath  = func(path string) { ort.SetSharedLibraryPath(path) }
	isRuntimeInitialized  = func() bool { return ort.IsInitialized() }
	initializeEnvironment = func() error { return ort.InitializeEnvironment() }
	destroyEnvironment    = func() error { return ort.DestroyEnvironment() }
)

func acquireRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 {
		if isRuntimeInitialized() {
			runtimeExternal = true
		} else {
			runtimeExternal = false
			if libPath == "" {
				libPath = resolveBundledLib(searchDirs())
			}
			if libPath != "" {
				setSharedLibraryPath(libPath)
			}
			if err := initializeEnvironment(); err != nil {
				return fmt.Errorf("onnxruntime: initialize environment: %w", err)
			}
		}
	}
	runtimeRefs++
	return nil
}

func releaseRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 {
		return nil
	}
	runtimeRefs--
	if runtimeRefs > 0 || runtimeExternal {
		return nil
	}
	if err := destroyEnvironment(); err != nil {
		return fmt.Errorf("onnxruntime: destroy environment: %w", err)
	}
	return nil
}

// Runtime libraries shipped next to the binary, searched in order:
// data/onnxruntime_<GOARCH>.<ext>, then lib/<GOOS>_<GOARCH>/<lib name>.
const (
	dataLibDir     = "data"
	platformLibDir = "lib"
)

// runtimeLibNames returns the file name used under data/ and the names tried
// under lib/<GOOS>_<GOARCH>/.
func runtimeLibNames(goos, goarch string) (dataName string, platformNames []string) {
	switch goos {
	case "darwin":
		return "onnxruntime_" + goarch + ".dylib", []string{"libonnxruntime.dylib"}
	case "windows":
		return "onnxruntime.dll", []string{"onnxruntime.dll"}
	default:
		return "onnxruntime_" + goarch + ".so", []string{"libonnxruntime.so.1.23.2", "libonnxruntime.so"}
	}
}

// runtimeLibCandidates lists every path resolveBundledLib tries, in order.
// Empty base directories are skipped.
func runtimeLibCandidates(baseDirs []string) []string {
	dataName, platformNames := runtimeLibNames(runtime.GOOS, runtime.GOARCH)
	platform := runtime.GOOS + "_" + runtime.GOARCH

	var data, platformLibs []string
	for _, base := range baseDirs {
		if base == "" {
			continue
		}
		data = append(data, filepath.Join(base, dataLibDir, dataName))
		for _, name := range platformNames {
			platformLibs = append(platformLibs, filepath.Join(base, platformLibDir, platform, name))
		}
	}
	return append(data, platformLibs...)
}

// resolveBundledLib returns the first existing candidate, or "" to let the
// loader use its default search path.
func resolveBundledLib(baseDirs []string) string {
	for _, p := range runtimeLibCandidates(baseDirs) {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// searchDirs returns the working directory and, if different, the directory
// of the running executable.
func searchDirs() []string {
	cwd, _ := os.Getwd()
	exe, err := os.Executable()
	if err != nil || filepath.Dir(exe) == cwd {
		return []string{cwd}
	}
	return []string{cwd, filepath.Dir(exe)}
}
