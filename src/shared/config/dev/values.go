package dev

import (
	"path/filepath"

	"github.com/veedubyou/stem-splitter/src/shared/config/local"
)

// Filesystem
func UploadRoot() string {
	return filepath.Join(local.ProjectRoot(), "uploads")
}

func ProcessedRoot() string {
	return filepath.Join(local.ProjectRoot(), "processed")
}

func ToolWorkingDir() string {
	return filepath.Join(local.ProjectRoot(), "src", "server", "wd", "demucs")
}

// Server
const (
	Port = ":8000"
)
