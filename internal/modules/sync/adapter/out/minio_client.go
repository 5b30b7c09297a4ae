package out

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "studysync/internal/platform/errors"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

type minioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioTransport stores the remote tree in a MinIO or other S3
// compatible bucket.
func NewMinioTransport(cfg MinioConfig) (*ObjectTransport, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: minio endpoint and bucket are required", apperrors.ErrInvalidInput)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newObjectTransport(&minioClient{client: client, bucket: cfg.Bucket}, "minio://"+cfg.Bucket, cfg.Prefix), nil
}

func (c *minioClient) ensureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return translateMinioError(err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return translateMinioError(err)
	}
	return nil
}

func (c *minioClient) list(ctx context.Context, prefix string) ([]objectInfo, error) {
	var out []objectInfo
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false}) {
		if obj.Err != nil {
			return nil, translateMinioError(obj.Err)
		}
		out = append(out, objectInfo{
			Key:        obj.Key,
			Size:       obj.Size,
			ModifiedAt: obj.LastModified.UTC(),
			Prefix:     strings.HasSuffix(obj.Key, "/"),
		})
	}
	return out, nil
}

func (c *minioClient) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioError(err)
	}
	defer func() {
		_ = obj.Close()
	}()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioError(err)
	}
	return data, nil
}

func (c *minioClient) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return translateMinioError(err)
	}
	return nil
}

func translateMinioError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	default:
		return err
	}
}
