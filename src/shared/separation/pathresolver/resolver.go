// Package pathresolver maps a separation request onto filesystem paths.
// Everything here is pure string manipulation, nothing touches the disk.
package pathresolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

type Resolver struct {
	uploadRoot    string
	processedRoot string
}

func NewResolver(uploadRoot string, processedRoot string) (Resolver, error) {
	errctx := cerr.Field("upload_root", uploadRoot).Field("processed_root", processedRoot)

	if !filepath.IsAbs(uploadRoot) {
		return Resolver{}, errctx.Error("Upload root must be an absolute path")
	}

	if !filepath.IsAbs(processedRoot) {
		return Resolver{}, errctx.Error("Processed root must be an absolute path")
	}

	return Resolver{
		uploadRoot:    filepath.Clean(uploadRoot),
		processedRoot: filepath.Clean(processedRoot),
	}, nil
}

func (r Resolver) UploadRoot() string {
	return r.uploadRoot
}

func (r Resolver) ProcessedRoot() string {
	return r.processedRoot
}

func (r Resolver) Resolve(filename string, modelName string) (separationentity.Paths, error) {
	if err := ValidateModelName(modelName); err != nil {
		return separationentity.Paths{}, err
	}

	if filename == "" {
		return separationentity.Paths{}, separationerrors.New(separationerrors.InvalidRequest, "Filename is required")
	}

	nativeFilename := filepath.FromSlash(filename)
	if filepath.IsAbs(nativeFilename) || filepath.VolumeName(nativeFilename) != "" {
		return separationentity.Paths{}, invalidPath(filename, "Filename must be relative to the upload root")
	}

	inputPath := filepath.Join(r.uploadRoot, nativeFilename)
	relPath, ok := descendantPath(r.uploadRoot, inputPath)
	if !ok {
		return separationentity.Paths{}, invalidPath(filename, "Filename resolves outside of the upload root")
	}

	baseName := baseNameWithoutExtension(filepath.Base(relPath))

	subNamespace := filepath.Dir(relPath)
	if subNamespace == "." {
		subNamespace = ""
	}

	toolOutputPath := filepath.Join(r.processedRoot, modelName, baseName)
	finalOutputPath := filepath.Join(r.processedRoot, modelName, subNamespace, baseName)

	return separationentity.Paths{
		InputPath:       inputPath,
		BaseName:        baseName,
		SubNamespace:    subNamespace,
		ToolOutputPath:  toolOutputPath,
		FinalOutputPath: finalOutputPath,
	}, nil
}

// ValidateModelName accepts only a single, non-hidden path segment since the
// model name becomes a directory under the processed root.
func ValidateModelName(modelName string) error {
	if modelName == "" {
		return separationerrors.New(separationerrors.InvalidRequest, "Model name is required")
	}

	if modelName == "." || modelName == ".." ||
		strings.HasPrefix(modelName, ".") ||
		strings.ContainsAny(modelName, `/\`) ||
		strings.ContainsRune(modelName, filepath.Separator) {
		return separationerrors.New(separationerrors.InvalidPath,
			fmt.Sprintf("Model name %q is not a valid directory name", modelName))
	}

	return nil
}

// IsDescendant reports whether path sits strictly below root.
// Both are expected to be cleaned absolute paths.
func IsDescendant(root string, path string) bool {
	_, ok := descendantPath(root, path)
	return ok
}

func descendantPath(root string, path string) (string, bool) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}

	if relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", false
	}

	return relPath, true
}

// a leading-dot name such as ".wav" has no extension to strip, matching how
// the separation tool names its output folder
func baseNameWithoutExtension(name string) string {
	withoutExt := strings.TrimSuffix(name, filepath.Ext(name))
	if withoutExt == "" {
		return name
	}
	return withoutExt
}

func invalidPath(filename string, msg string) error {
	return separationerrors.Wrap(
		cerr.Field("filename", filename).Error(msg),
		separationerrors.InvalidPath,
		"Invalid filename")
}
