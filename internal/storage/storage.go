package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"supik-server/internal/config"
)

// Client binds a Provider to the archive bucket.
type Client struct {
	backend Provider
	bucket  string
}

// New selects the backend from cfg.Storage.Provider: "local" or "s3"
// ("b2" is accepted as an alias for S3-compatible endpoints).
func New(cfg *config.Config) (*Client, error) {
	var backend Provider

	switch cfg.Storage.Provider {
	case "", "local":
		backend = NewLocalProvider(cfg.Storage.LocalPath)
	case "s3", "b2":
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		if cfg.Storage.Endpoint != "" {
			s3Config.Endpoint = aws.String(cfg.Storage.Endpoint)
		}
		sess, err := session.NewSession(s3Config)
		if err != nil {
			return nil, fmt.Errorf("create s3 session: %w", err)
		}
		backend = NewS3Provider(sess)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}

	return NewWithProvider(backend, cfg.Storage.Bucket), nil
}

func NewWithProvider(backend Provider, bucket string) *Client {
	return &Client{backend: backend, bucket: bucket}
}

func (c *Client) Bucket() string { return c.bucket }

// Upload stores data under key.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return c.backend.Put(ctx, c.bucket, key, bytes.NewReader(data), contentType)
}

// Download reads the whole object at key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.backend.Get(ctx, c.bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}

func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	return c.backend.List(ctx, c.bucket, prefix)
}

// Delete removes key. A missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, c.bucket, key)
}

// Exists reports whether an object is stored under key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return c.backend.Exists(ctx, c.bucket, key)
}
