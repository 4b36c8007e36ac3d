package mirror

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/storagepath"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

// Mirror copies a finished job's stems to remote storage, keyed the same way
// as the local layout: <model>/<namespace>/<base name>/<stem>.
type Mirror struct {
	fileStore     FileStore
	pathGenerator storagepath.Generator
}

func NewMirror(fileStore FileStore, pathGenerator storagepath.Generator) Mirror {
	return Mirror{
		fileStore:     fileStore,
		pathGenerator: pathGenerator,
	}
}

func (m Mirror) Upload(ctx context.Context, job *separationentity.Job) ([]separationentity.StemDownload, error) {
	downloads := make([]separationentity.StemDownload, 0, len(job.StemFiles))

	for _, stem := range job.StemFiles {
		fileURL := m.pathGenerator.GeneratePath(job.ModelName, filepath.ToSlash(job.SubNamespace), job.BaseName, stem)
		if err := m.uploadStem(ctx, filepath.Join(job.FinalOutputPath, stem), fileURL); err != nil {
			return nil, separationerrors.Wrap(err, separationerrors.MirrorFailure, "Failed to mirror stems")
		}

		downloads = append(downloads, separationentity.StemDownload{
			Name: stem,
			URL:  fileURL,
		})
	}

	return downloads, nil
}

func (m Mirror) uploadStem(ctx context.Context, localPath string, fileURL string) error {
	errctx := cerr.Field("local_path", localPath).Field("file_url", fileURL)

	file, err := os.Open(localPath)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to open stem file")
	}
	defer file.Close()

	log.WithFields(log.Fields{
		"localPath": localPath,
		"fileURL":   fileURL,
	}).Info("Writing stem to remote file store")

	if err := m.fileStore.WriteFile(ctx, fileURL, file); err != nil {
		return errctx.Wrap(err).Error("Failed to write stem to remote file store")
	}

	return nil
}
