package artifacts

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for an S3-compatible artifact store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioSink stores artifacts as objects under <bucket>/<jobID>/<name>.
// It is safe for concurrent use by multiple goroutines.
type MinioSink struct {
	client *miniogo.Client
	bucket string
}

var _ Sink = (*MinioSink)(nil)

// NewMinioSink connects to the object store and creates the configured
// bucket if it does not exist yet.
func NewMinioSink(ctx context.Context, cfg MinioConfig) (*MinioSink, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinioSink{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioSink) Save(ctx context.Context, jobID, name string, r io.Reader) (string, error) {
	key := jobID + "/" + name
	// Size -1 streams the upload without buffering the whole archive.
	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, miniogo.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return "", fmt.Errorf("put artifact %q: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, info.Key), nil
}
