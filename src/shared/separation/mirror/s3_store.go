package mirror

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/storagepath"
)

var _ FileStore = S3FileStore{}

type S3FileStore struct {
	uploader    *s3manager.Uploader
	storageHost string
}

func NewS3FileStore(awsSession *session.Session, storageHost string) S3FileStore {
	return S3FileStore{
		uploader:    s3manager.NewUploader(awsSession),
		storageHost: storageHost,
	}
}

func (s S3FileStore) WriteFile(ctx context.Context, fileURL string, contents io.Reader) error {
	errctx := cerr.Field("file_url", fileURL)

	bucket, objectKey, err := storagepath.Generator{Host: s.storageHost}.Split(fileURL)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to parse file URL")
	}

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		Body:   contents,
	})
	if err != nil {
		return errctx.Wrap(err).Error("Failed to upload file to S3")
	}

	return nil
}
