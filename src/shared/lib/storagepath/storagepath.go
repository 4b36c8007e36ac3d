package storagepath

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Generator struct {
	Host   string
	Bucket string
}

// GeneratePath joins host, bucket and the non-empty segments with "/".
func (g Generator) GeneratePath(segments ...string) string {
	parts := []string{strings.TrimSuffix(g.Host, "/"), g.Bucket}
	for _, segment := range segments {
		segment = strings.Trim(segment, "/")
		if segment != "" {
			parts = append(parts, segment)
		}
	}

	return strings.Join(parts, "/")
}

// Split is the inverse of GeneratePath: it recovers the bucket and the
// object key from a generated URL.
func (g Generator) Split(fileURL string) (bucket string, objectKey string, err error) {
	prefix := strings.TrimSuffix(g.Host, "/") + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", "", errors.Newf("URL %q does not belong to storage host %q", fileURL, g.Host)
	}

	bucket, objectKey, found := strings.Cut(strings.TrimPrefix(fileURL, prefix), "/")
	if !found || bucket == "" || objectKey == "" {
		return "", "", errors.Newf("URL %q has no bucket and object key", fileURL)
	}

	return bucket, objectKey, nil
}
