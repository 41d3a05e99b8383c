package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryName returns the onnxruntime shared library file name for the
// current platform.
func LibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.1.20.0.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so.1.20.0"
	}
}

func DefaultLibraryPath() string {
	return filepath.Join("lib", LibraryName())
}

// InitRuntime points onnxruntime_go at the shared library and initialises the
// global environment. It must run once before any Load.
func InitRuntime(libPath string) error {
	if _, err := os.Stat(libPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("onnxruntime library not found: %s", libPath)
		}
		return fmt.Errorf("stat onnxruntime library: %w", err)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime environment: %w", err)
	}
	return nil
}

func DestroyRuntime() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}
