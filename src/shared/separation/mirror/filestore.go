package mirror

import (
	"context"
	"io"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . FileStore
type FileStore interface {
	WriteFile(ctx context.Context, fileURL string, contents io.Reader) error
}
