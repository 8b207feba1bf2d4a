package inference

import (
	"fmt"
	"os"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// InitRuntime loads the native ONNX Runtime library and initializes its
// environment. Call once per process before creating sessions; pass an
// empty path to use the platform default location.
//
// Arguments:
//   - libPath: Path to the onnxruntime shared library, or "".
//
// Returns:
//   - error: An error if the library is missing or initialization fails.
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = defaultSharedLibPath()
	}
	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return fmt.Errorf("ONNX Runtime library not found at %s: %w", libPath, err)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	return nil
}

// DestroyRuntime tears the ONNX Runtime environment down.
func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// defaultSharedLibPath returns the onnxruntime library path for the
// current platform.
func defaultSharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.dylib"
		}
		return "third_party/onnxruntime_amd64.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "third_party/onnxruntime_arm64.so"
	}
	return "third_party/onnxruntime.so"
}
