package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 sink. Endpoint may point at MinIO or another
// S3-compatible store; empty uses AWS.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Key       string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Sink uploads the page as a single object.
type S3Sink struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Sink creates an S3 sink. Static credentials are used when an access
// key is configured; otherwise the default AWS credential chain applies.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = "files.html"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Sink{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Name returns "s3".
func (s *S3Sink) Name() string { return "s3" }

// Put uploads the page, replacing the previous object.
func (s *S3Sink) Put(ctx context.Context, page []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(page),
		ContentLength: aws.Int64(int64(len(page))),
		ContentType:   aws.String("text/html; charset=utf-8"),
		CacheControl:  aws.String("no-store"),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
