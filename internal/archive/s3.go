package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store writes each domain's XML to s3://bucket/keyPrefix/<domain>.xml
// with a single PutObject per write. A best-effort XML snapshot is a few
// KB and logged-and-dropped on failure, so it has no need for multipart
// upload, retry-with-backoff, or a buffered-deletion queue.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3Config configures an S3Store.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	KeyPrefix       string
	ForcePathStyle  bool
}

// NewS3ClientFromConfig builds an S3 client from static credentials.
func NewS3ClientFromConfig(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// NewS3Store verifies bucket access with HeadBucket (the bucket must
// already exist) and returns a Store backed by it.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}

	client, err := NewS3ClientFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("archive: bucket %q is not accessible: %w", cfg.Bucket, err)
	}

	return &S3Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *S3Store) key(domain string) string {
	if s.keyPrefix == "" {
		return domain + ".xml"
	}
	return s.keyPrefix + "/" + domain + ".xml"
}

// Put uploads xml for domain with a single PutObject call.
func (s *S3Store) Put(ctx context.Context, domain string, xml []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(domain)),
		Body:        bytes.NewReader(xml),
		ContentType: aws.String("application/xml"),
	})
	if err != nil {
		return fmt.Errorf("archive: put object %s: %w", s.key(domain), err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

var _ Store = (*S3Store)(nil)
