package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/okian/jobfit/internal/domain/model"
)

var (
	_ model.DatasetSource = FileSource{}
	_ model.DatasetSource = BytesSource{}
	_ model.DatasetSource = (*MinIOSource)(nil)
)

// FileSource reads a dataset from the local filesystem.
type FileSource struct {
	Path string
}

// Open implements model.DatasetSource.
func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	return f, nil
}

// Describe implements model.DatasetSource.
func (s FileSource) Describe() string { return "file:" + s.Path }

// BytesSource serves an in-memory dataset, such as an uploaded request body.
type BytesSource struct {
	Name string
	Data []byte
}

// Open implements model.DatasetSource.
func (s BytesSource) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// Describe implements model.DatasetSource.
func (s BytesSource) Describe() string {
	return fmt.Sprintf("upload:%s (%d bytes)", s.Name, len(s.Data))
}

// MinIOConfig holds the connection settings of an S3-compatible store.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips bucket location lookups when set.
	Region string
}

// NewMinIOClient creates a MinIO client.
func NewMinIOClient(cfg MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint is empty", ErrSource)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create minio client: %w", ErrSource, err)
	}
	return client, nil
}

// MinIOSource reads a dataset object from a bucket.
type MinIOSource struct {
	Client *minio.Client
	Bucket string
	Object string
}

// Open implements model.DatasetSource. The object is checked before it is
// returned so a missing key fails here rather than mid-parse.
func (s *MinIOSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("%w: minio is not configured", ErrSource)
	}
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.Object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %w", ErrSource, s.Bucket, s.Object, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("%w: stat %s/%s: %w", ErrSource, s.Bucket, s.Object, err)
	}
	return obj, nil
}

// Describe implements model.DatasetSource.
func (s *MinIOSource) Describe() string {
	return fmt.Sprintf("minio:%s/%s", s.Bucket, s.Object)
}

// Load opens src and reads the dataset from it.
func Load(ctx context.Context, src model.DatasetSource) ([]model.TrainingRow, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return Read(rc)
}
