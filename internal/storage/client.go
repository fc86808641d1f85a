package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dunamismax/pixelshuffle/internal/id"
)

const (
	ContentTypeJPEG = "image/jpeg"
	ExtensionJPEG   = "jpg"
)

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Region   string
	Bucket   string
	UseSSL   bool
}

// Client talks to any S3-compatible object store (AWS S3, MinIO).
type Client struct {
	minio  *minio.Client
	bucket string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	var creds *credentials.Credentials
	if cfg.Access != "" || cfg.Secret != "" {
		creds = credentials.NewStaticV4(cfg.Access, cfg.Secret, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		minio:  mc,
		bucket: cfg.Bucket,
	}, nil
}

// IsAWSEndpoint reports whether endpoint is an AWS S3 host. Buckets there are
// provisioned out of band and are never created by the service.
func IsAWSEndpoint(endpoint string) bool {
	host := strings.ToLower(strings.TrimSpace(endpoint))
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host == "amazonaws.com" || strings.HasSuffix(host, ".amazonaws.com")
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

// Store uploads a JPEG under a fresh "<uuid>.jpg" key in the destination
// bucket and returns the key. An empty destination means the client's bucket.
func (c *Client) Store(ctx context.Context, data []byte, destination string) (string, error) {
	bucket := strings.TrimSpace(destination)
	if bucket == "" {
		bucket = c.bucket
	}

	key := NewObjectKey()
	if err := c.put(ctx, bucket, key, data, ContentTypeJPEG); err != nil {
		return "", err
	}
	return key, nil
}

// NewObjectKey returns "<uuid>.jpg".
func NewObjectKey() string {
	return fmt.Sprintf("%s.%s", id.New(), ExtensionJPEG)
}

func (c *Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.minio.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", objectKey, err)
}

func (c *Client) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := c.minio.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	return data, nil
}

func (c *Client) WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error {
	return c.put(ctx, c.bucket, objectKey, data, contentType)
}

func (c *Client) put(ctx context.Context, bucket, objectKey string, data []byte, contentType string) error {
	if len(data) == 0 {
		return errors.New("refusing to store empty object")
	}

	_, err := c.minio.PutObject(
		ctx,
		bucket,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, objectKey, err)
	}
	return nil
}
