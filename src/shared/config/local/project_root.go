package local

import (
	"os"
	"path/filepath"
	"runtime"
)

// ProjectRoot is the directory holding go.mod, found by walking up from
// this source file. It only makes sense for binaries run from a checkout.
func ProjectRoot() string {
	_, filePath, _, ok := runtime.Caller(0)
	if !ok {
		panic("Failed to call runtime.Caller")
	}

	for dir := filepath.Dir(filePath); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		if parent := filepath.Dir(dir); parent == dir {
			panic("No go.mod found above " + filePath)
		}
	}
}
