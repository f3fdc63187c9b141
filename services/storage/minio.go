package storagesvc

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
)

// MinioStore keeps objects in an S3 compatible bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

var _ catalog.ThumbnailStore = (*MinioStore)(nil)

func NewMinioStore(conf *core.Config) (*MinioStore, error) {
	client, err := minio.New(conf.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.S3.AccessKey, conf.S3.SecretKey, ""),
		Secure: conf.S3.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating s3 client")
	}
	return &MinioStore{
		client:  client,
		bucket:  conf.S3.Bucket,
		baseURL: publicBaseURL(conf.S3),
	}, nil
}

func publicBaseURL(c core.S3Config) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: c.Endpoint, Path: "/" + c.Bucket}
	return u.String()
}

// EnsureBucket creates the bucket when missing.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "checking bucket existence")
	}
	if exists {
		return nil
	}
	if err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, "creating bucket")
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, object string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading object")
	}
	return s.ObjectURL(object), nil
}

func (s *MinioStore) ObjectURL(object string) string {
	return s.baseURL + "/" + strings.TrimLeft(object, "/")
}
