package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// ObjectReader opens Cloud Storage objects. *storage.Client satisfies it
// through StorageReader.
type ObjectReader interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// StorageReader adapts a storage client to ObjectReader
type StorageReader struct {
	Client *storage.Client
}

// NewReader opens bucket/object for reading
func (r StorageReader) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return r.Client.Bucket(bucket).Object(object).NewReader(ctx)
}

// ParseGCSURI splits gs://bucket/object into its parts
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs:// URI", model.ErrConfig, uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q must name a bucket and an object", model.ErrConfig, uri)
	}
	return bucket, object, nil
}

// GCSSource downloads a document from Cloud Storage into a temporary
// directory and serves its pages from there
type GCSSource struct {
	Source
	tmpDir string
}

// OpenGCS downloads uri and opens it as a PDF or a single page image
func OpenGCS(ctx context.Context, client ObjectReader, uri string, dpi int, log *logger.Logger) (*GCSSource, error) {
	if log == nil {
		log = logger.Get()
	}

	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(object))
	if ext != ".pdf" && !imageExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported document format %q", model.ErrRender, ext)
	}

	tmpDir, err := os.MkdirTemp("", "regionscan-gcs-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp dir: %w", model.ErrSystem, err)
	}
	local := filepath.Join(tmpDir, "document"+ext)

	if err := download(ctx, client, bucket, object, local); err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}
	log.Infow("Downloaded document from Cloud Storage", "bucket", bucket, "object", object)

	var src Source
	if ext == ".pdf" {
		src, err = OpenPDF(local, dpi, log)
	} else {
		src = &ImageDirSource{files: []string{local}, logger: log}
	}
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}

	return &GCSSource{Source: src, tmpDir: tmpDir}, nil
}

func download(ctx context.Context, client ObjectReader, bucket, object, dest string) error {
	r, err := client.NewReader(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("%w: opening gs://%s/%s: %w", model.ErrRender, bucket, object, err)
	}
	defer r.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrSystem, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("%w: downloading gs://%s/%s: %w", model.ErrRender, bucket, object, err)
	}
	return f.Close()
}

// Close releases the inner source and removes the downloaded copy
func (s *GCSSource) Close() error {
	err := s.Source.Close()
	if rmErr := os.RemoveAll(s.tmpDir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
