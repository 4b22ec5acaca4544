package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores an encoded image and returns a URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL prefixes object keys in returned URLs. Defaults to the
	// endpoint and bucket.
	PublicURL string
}

// MinioUploader puts images into an S3 compatible bucket.
type MinioUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioUploader connects to the bucket, creating it if needed.
func NewMinioUploader(ctx context.Context, cfg MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	}
	return &MinioUploader{client: client, bucket: cfg.Bucket, publicURL: strings.TrimRight(public, "/")}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	key := "images/" + id.String() + ".jpg"
	_, err = u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, CacheControl: "public, max-age=31536000, immutable"})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		return "", fmt.Errorf("upload %s (code %s): %w", key, resp.Code, err)
	}
	return u.publicURL + "/" + key, nil
}

// Service compresses images and turns them into document sources. Without
// an Uploader the source is a data URL.
type Service struct {
	Compressor Compressor
	Uploader   Uploader
}

// Source compresses r and returns a URL for it.
func (s *Service) Source(ctx context.Context, r io.Reader) (string, error) {
	b, err := s.Compressor.Compress(r)
	if err != nil {
		return "", err
	}
	if s.Uploader == nil {
		return BytesToDataURL(jpegMIME, b), nil
	}
	return s.Uploader.Upload(ctx, b, jpegMIME)
}
