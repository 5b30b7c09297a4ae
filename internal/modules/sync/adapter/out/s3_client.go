package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "studysync/internal/platform/errors"
)

// S3API is the subset of the S3 client the transport calls.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint overrides the AWS endpoint and switches to path-style
	// addressing, as S3 compatible servers expect.
	Endpoint string
}

type s3Client struct {
	api    S3API
	bucket string
	region string
}

// NewS3Transport loads credentials from the default AWS chain.
func NewS3Transport(ctx context.Context, cfg S3Config) (*ObjectTransport, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", apperrors.ErrInvalidInput)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewS3TransportAPI(s3.NewFromConfig(awsCfg, opts...), awsCfg.Region, cfg), nil
}

func NewS3TransportAPI(api S3API, region string, cfg S3Config) *ObjectTransport {
	return newObjectTransport(&s3Client{api: api, bucket: cfg.Bucket, region: region}, "s3://"+cfg.Bucket, cfg.Prefix)
}

func (c *s3Client) ensureBucket(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	var missing *types.NotFound
	if !errors.As(err, &missing) {
		return err
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{LocationConstraint: types.BucketLocationConstraint(c.region)}
	}
	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return err
	}
	return nil
}

func (c *s3Client) list(ctx context.Context, prefix string) ([]objectInfo, error) {
	var out []objectInfo
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket), Prefix: aws.String(prefix), Delimiter: aws.String("/")}
	for {
		page, err := c.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, p := range page.CommonPrefixes {
			out = append(out, objectInfo{Key: aws.ToString(p.Prefix), Prefix: true})
		}
		for _, obj := range page.Contents {
			out = append(out, objectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size), ModifiedAt: aws.ToTime(obj.LastModified).UTC()})
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			return out, nil
		}
		input.ContinuationToken = page.NextContinuationToken
	}
}

func (c *s3Client) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
		}
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return io.ReadAll(resp.Body)
}

func (c *s3Client) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	return err
}
