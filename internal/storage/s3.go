package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ClientConfig selects an S3-compatible endpoint. An empty Endpoint uses
// AWS itself; an empty AccessKeyID falls back to the default credential chain.
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// ErrObjectNotFound is returned when a source key or its bucket is missing.
var ErrObjectNotFound = errors.New("object not found")

// S3Client reads and writes vocabulary source files.
type S3Client struct {
	client *s3.Client
	bucket string
}

func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(static))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Client{client: client, bucket: cfg.Bucket}, nil
}

// notFound maps the SDK's missing-key and missing-bucket errors onto
// ErrObjectNotFound.
func notFound(op string, loc Location, err error) error {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		missing  *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &missing) {
		return fmt.Errorf("%s s3://%s/%s: %w", op, loc.Bucket, loc.Key, ErrObjectNotFound)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, loc.Bucket, loc.Key, err)
}

// ObjectMetadata contains metadata about an S3 object
type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
	LastModified  time.Time
}

// Location is a bucket/key pair.
type Location struct {
	Bucket string
	Key    string
}

// ParseURI splits an s3://bucket/key URI. ok is false for anything else.
func ParseURI(uri string) (Location, bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return Location{}, false
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, false
	}
	return Location{Bucket: bucket, Key: key}, true
}

func (c *S3Client) resolve(loc Location) Location {
	if loc.Bucket == "" {
		loc.Bucket = c.bucket
	}
	return loc
}

// HeadObject returns an object's metadata without reading it.
func (c *S3Client) HeadObject(ctx context.Context, loc Location) (*ObjectMetadata, error) {
	loc = c.resolve(loc)
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, notFound("head", loc, err)
	}
	return &ObjectMetadata{
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
		ETag:          aws.ToString(out.ETag),
		LastModified:  aws.ToTime(out.LastModified),
	}, nil
}

// GetObject opens an object for reading. The caller closes the body.
func (c *S3Client) GetObject(ctx context.Context, loc Location) (io.ReadCloser, *ObjectMetadata, error) {
	loc = c.resolve(loc)
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, nil, notFound("get", loc, err)
	}
	meta := &ObjectMetadata{
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
		ETag:          aws.ToString(out.ETag),
		LastModified:  aws.ToTime(out.LastModified),
	}
	return out.Body, meta, nil
}

// PutObject uploads a vocabulary source file.
func (c *S3Client) PutObject(ctx context.Context, loc Location, body io.Reader, contentType string) error {
	loc = c.resolve(loc)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	return nil
}

// EnsureBucket creates bucket unless it already exists. An empty name means
// the configured bucket.
func (c *S3Client) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		bucket = c.bucket
	}
	if _, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	if _, err := c.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}
