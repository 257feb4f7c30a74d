package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// resolveRuntimeLibrary picks the ONNX runtime shared library path:
// explicit config first, then the ONNXRUNTIME_SHARED_LIBRARY
// environment variable, then the OS-specific name under lib/.
func resolveRuntimeLibrary(explicit string) (string, error) {
	candidates := make([]string, 0, 3)
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if env := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY"); env != "" {
		candidates = append(candidates, env)
	}

	libName := "libonnxruntime.so"
	if runtime.GOOS == "darwin" {
		libName = "libonnxruntime.dylib"
	} else if runtime.GOOS == "windows" {
		libName = "onnxruntime.dll"
	}
	candidates = append(candidates, filepath.Join("lib", libName))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("onnx runtime library not found (tried %v)", candidates)
}
