package mirror

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/storagepath"
	"google.golang.org/api/option"
)

var _ FileStore = GoogleFileStore{}

type GoogleFileStore struct {
	client      *storage.Client
	storageHost string
}

func NewGoogleFileStore(ctx context.Context, storageHost string, options ...option.ClientOption) (GoogleFileStore, error) {
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return GoogleFileStore{}, cerr.Wrap(err).Error("Failed to create cloud storage client")
	}

	return NewGoogleFileStoreFromClient(client, storageHost), nil
}

func NewGoogleFileStoreFromClient(client *storage.Client, storageHost string) GoogleFileStore {
	return GoogleFileStore{
		client:      client,
		storageHost: storageHost,
	}
}

func (g GoogleFileStore) WriteFile(ctx context.Context, fileURL string, contents io.Reader) error {
	errctx := cerr.Field("file_url", fileURL)

	bucket, objectKey, err := storagepath.Generator{Host: g.storageHost}.Split(fileURL)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to parse file URL")
	}

	// cancelling the context is the only way to abort a partially written object
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := g.client.Bucket(bucket).Object(objectKey).NewWriter(ctx)
	if _, err := io.Copy(writer, contents); err != nil {
		cancel()
		_ = writer.Close()
		return errctx.Wrap(err).Error("Failed to write file to cloud storage")
	}

	if err := writer.Close(); err != nil {
		return errctx.Wrap(err).Error("Failed to finalize file in cloud storage")
	}

	return nil
}

func (g GoogleFileStore) Close() error {
	if err := g.client.Close(); err != nil {
		return cerr.Wrap(err).Error("Failed to close cloud storage client")
	}
	return nil
}
