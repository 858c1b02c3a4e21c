package criteria

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/complianceauditflow/internal/gcp"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// Source is one place a criteria document may live.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads criteria from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// GCSSource reads criteria from a Cloud Storage object.
type GCSSource struct {
	Client *storage.Client
	Bucket string
	Object string
}

func (s GCSSource) Name() string { return gcp.GCSUri(s.Bucket, s.Object) }

func (s GCSSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Client.Bucket(s.Bucket).Object(s.Object).NewReader(ctx)
}

// SourcesFromPaths turns configured locations into sources. Entries starting with
// gs:// become GCS sources and need a storage client; everything else is a local path.
func SourcesFromPaths(paths []string, client *storage.Client) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "gs://") {
			sources = append(sources, FileSource{Path: p})
			continue
		}
		if client == nil {
			return nil, fmt.Errorf("%w: criteria source %s needs a storage client", models.ErrConfiguration, p)
		}
		bucket, object, err := gcp.ParseGCSUri(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
		}
		sources = append(sources, GCSSource{Client: client, Bucket: bucket, Object: object})
	}
	return sources, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, storage.ErrObjectNotExist) ||
		errors.Is(err, storage.ErrBucketNotExist)
}
