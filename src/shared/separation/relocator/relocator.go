package relocator

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

const (
	stagingSuffix  = ".staging-"
	setAsideSuffix = ".set-aside-"
)

// RestoreFunc puts back whatever ClearToolOutput moved out of the way.
type RestoreFunc func() error

type OutputRelocator struct {
	rename    func(oldPath string, newPath string) error
	removeAll func(path string) error
	mkdirAll  func(path string, perm os.FileMode) error
	newID     func() string
}

func NewOutputRelocator() OutputRelocator {
	return OutputRelocator{
		rename:    os.Rename,
		removeAll: os.RemoveAll,
		mkdirAll:  os.MkdirAll,
		newID:     uuid.NewString,
	}
}

// WithRename swaps the rename primitive, tests use it to simulate moves
// across filesystems.
func (o OutputRelocator) WithRename(rename func(oldPath string, newPath string) error) OutputRelocator {
	o.rename = rename
	return o
}

// ClearToolOutput empties the tool's raw output folder before a run, so that
// anything found there afterwards was written by that run.
//
// Without a namespace the raw folder is the job's own final folder and stale
// output is removed, the last writer wins. With a namespace the raw folder may
// be another job's final folder, so it is set aside in a hidden sibling and
// the returned RestoreFunc moves it back once the run is over.
func (o OutputRelocator) ClearToolOutput(paths separationentity.Paths) (RestoreFunc, error) {
	noop := func() error { return nil }
	rawPath := paths.ToolOutputPath
	errctx := cerr.Field("tool_output_path", rawPath)

	if _, err := os.Lstat(rawPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return noop, nil
		}
		return nil, relocationFailure(errctx.Wrap(err).Error("Failed to check the tool output folder"))
	}

	logger := log.WithField("toolOutputPath", rawPath)

	if !paths.NeedsRelocation() {
		logger.Info("Removing stale output before running the tool")
		if err := o.removeAll(rawPath); err != nil {
			return nil, relocationFailure(errctx.Wrap(err).Error("Failed to remove stale tool output"))
		}
		return noop, nil
	}

	setAside := hiddenSibling(rawPath, setAsideSuffix+o.newID())
	logger.WithField("setAsidePath", setAside).Info("Setting existing tool output aside")
	if err := o.rename(rawPath, setAside); err != nil {
		return nil, relocationFailure(errctx.Field("set_aside_path", setAside).Wrap(err).Error("Failed to set existing tool output aside"))
	}

	return func() error {
		return o.restoreSetAside(setAside, rawPath)
	}, nil
}

// restoreSetAside gives the raw folder back to its previous owner. Partial
// output a failed run left in its place is dropped.
func (o OutputRelocator) restoreSetAside(setAside string, rawPath string) error {
	errctx := cerr.Field("set_aside_path", setAside).Field("tool_output_path", rawPath)

	if _, err := os.Lstat(rawPath); err == nil {
		log.WithField("toolOutputPath", rawPath).Info("Dropping partial output to restore the set aside folder")
		if err := o.removeAll(rawPath); err != nil {
			return relocationFailure(errctx.Wrap(err).Error("Failed to remove partial tool output"))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return relocationFailure(errctx.Wrap(err).Error("Failed to check the tool output folder"))
	}

	if err := o.rename(setAside, rawPath); err != nil {
		return relocationFailure(errctx.Wrap(err).Error("Failed to restore the set aside tool output"))
	}

	return nil
}

// Relocate moves the tool's output into the namespaced final location.
// An existing final directory is replaced: the last relocation wins.
func (o OutputRelocator) Relocate(paths separationentity.Paths) error {
	errctx := cerr.Field("tool_output_path", paths.ToolOutputPath).
		Field("final_output_path", paths.FinalOutputPath)

	if err := requireOutputDir(paths.ToolOutputPath); err != nil {
		return separationerrors.Wrap(errctx.Wrap(err).Error("Separation tool reported success but produced no output"),
			separationerrors.OutputMissing, "Output is missing")
	}

	if !paths.NeedsRelocation() {
		return nil
	}

	logger := log.WithFields(log.Fields{
		"toolOutputPath":  paths.ToolOutputPath,
		"finalOutputPath": paths.FinalOutputPath,
	})

	if err := o.mkdirAll(filepath.Dir(paths.FinalOutputPath), os.ModePerm); err != nil {
		return relocationFailure(errctx.Wrap(err).Error("Failed to create the parent of the final output folder"))
	}

	if _, err := os.Lstat(paths.FinalOutputPath); err == nil {
		logger.Info("Removing stale output at the final location")
		if err := o.removeAll(paths.FinalOutputPath); err != nil {
			return relocationFailure(errctx.Wrap(err).Error("Failed to remove stale output"))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return relocationFailure(errctx.Wrap(err).Error("Failed to check the final output folder"))
	}

	logger.Info("Moving output to the final location")
	err := o.rename(paths.ToolOutputPath, paths.FinalOutputPath)
	switch {
	case err == nil:

	case isCrossDevice(err):
		logger.Info("Output is on another filesystem, copying instead")
		if err := o.copyThenSwap(paths.ToolOutputPath, paths.FinalOutputPath); err != nil {
			return err
		}

	case errors.Is(err, fs.ErrNotExist):
		return separationerrors.Wrap(errctx.Wrap(err).Error("Output disappeared during relocation"),
			separationerrors.OutputMissing, "Output is missing")

	default:
		return relocationFailure(errctx.Wrap(err).Error("Failed to move output"))
	}

	if err := requireOutputDir(paths.FinalOutputPath); err != nil {
		return separationerrors.Wrap(errctx.Wrap(err).Error("Final output folder is missing after relocation"),
			separationerrors.OutputMissing, "Output is missing")
	}

	return nil
}

// copyThenSwap materializes a full copy next to the destination and only then
// renames it into place, so the destination is never observed half-written.
func (o OutputRelocator) copyThenSwap(source string, dest string) error {
	errctx := cerr.Field("source", source).Field("dest", dest)
	staging := hiddenSibling(dest, stagingSuffix+o.newID())

	if err := copyDir(source, staging); err != nil {
		_ = o.removeAll(staging)
		if errors.Is(err, fs.ErrNotExist) {
			return separationerrors.Wrap(errctx.Wrap(err).Error("Output disappeared while copying"),
				separationerrors.OutputMissing, "Output is missing")
		}
		return relocationFailure(errctx.Field("staging", staging).Wrap(err).Error("Failed to copy output across filesystems"))
	}

	if err := o.rename(staging, dest); err != nil {
		_ = o.removeAll(staging)
		return relocationFailure(errctx.Field("staging", staging).Wrap(err).Error("Failed to swap the copied output into place"))
	}

	if err := o.removeAll(source); err != nil {
		return relocationFailure(errctx.Wrap(err).Error("Failed to remove the source after copying"))
	}

	return nil
}

// EnumerateStems lists the files directly inside dir. Subdirectories are
// skipped and an empty folder counts as missing output.
func (o OutputRelocator) EnumerateStems(dir string) ([]string, error) {
	errctx := cerr.Field("dir", dir)

	log.WithField("dir", dir).Info("Reading directory to collect stem files")
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		kind := separationerrors.UnexpectedError
		if errors.Is(err, fs.ErrNotExist) {
			kind = separationerrors.OutputMissing
		}
		return nil, separationerrors.Wrap(errctx.Wrap(err).Error("Error reading output directory"),
			kind, "Failed to collect stems")
	}

	stems := []string{}
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		stems = append(stems, dirEntry.Name())
	}

	if len(stems) == 0 {
		return nil, separationerrors.Wrap(errctx.Error("No files in output directory"),
			separationerrors.OutputMissing, "Failed to collect stems")
	}

	return stems, nil
}

// hiddenSibling is never served as a download, every dot-prefixed segment is
// rejected there.
func hiddenSibling(path string, suffix string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+suffix)
}

func requireOutputDir(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !fileInfo.IsDir() {
		return cerr.Field("path", path).Error("Output path is not a directory")
	}

	return nil
}

func relocationFailure(err error) error {
	return separationerrors.Wrap(err, separationerrors.RelocationFailure, "Relocation failed")
}

func copyDir(source string, dest string) error {
	return filepath.WalkDir(source, func(path string, dirEntry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, relPath)

		fileInfo, err := dirEntry.Info()
		if err != nil {
			return err
		}

		switch {
		case dirEntry.IsDir():
			return os.Mkdir(target, fileInfo.Mode().Perm()|0o700)

		case dirEntry.Type()&fs.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)

		default:
			return copyFile(path, target, fileInfo.Mode().Perm())
		}
	})
}

func copyFile(source string, dest string, perm fs.FileMode) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
