package config

import (
	"os/exec"
	"path/filepath"

	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
)

// FindBin resolves a bare binary name through PATH. Paths are returned as
// given.
func FindBin(bin string) (string, error) {
	if bin == "" || filepath.Base(bin) != bin {
		return bin, nil
	}

	binPath, err := exec.LookPath(bin)
	if err != nil {
		return "", cerr.Field("bin", bin).Wrap(err).Error("Failed to find binary")
	}

	return binPath, nil
}
