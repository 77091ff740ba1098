package release

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/ota-agent/pkg/options"
)

// ObjectStore is the read side of the bucket holding release manifests and images.
type ObjectStore interface {
	// GetObject opens the object stored under key.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	// PresignedURL returns a temporary download link for key.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// CheckBucket verifies the bucket is reachable and exists.
	CheckBucket(ctx context.Context) error
}

type minioStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore creates an ObjectStore speaking the S3 protocol.
func NewMinIOStore(opts *options.S3Options, fetchOpts *options.FetchOptions) (ObjectStore, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   fetchOpts.HeaderTimeout,
		ResponseHeaderTimeout: fetchOpts.HeaderTimeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &minioStore{
		client:     client,
		bucketName: opts.BucketName,
	}, nil
}

func (s *minioStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}

func (s *minioStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return u.String(), nil
}

func (s *minioStore) CheckBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}
