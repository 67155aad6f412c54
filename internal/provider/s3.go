package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Provider.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options configures the client for an S3-compatible backend (AWS, MinIO).
type S3Options struct {
	AccessKey    string
	SecretKey    string
	Region       string
	BaseEndpoint string
}

// NewS3Client builds an S3 client. Static credentials are used when an
// access key is given, the default AWS chain otherwise. A non-empty
// BaseEndpoint switches to path-style addressing for MinIO-like servers.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	}), nil
}

// S3Provider keeps external databases as S3 objects addressed by
// s3://bucket/key locators.
type S3Provider struct {
	client   S3API
	grants   GrantStore
	spoolDir string
}

// NewS3Provider returns a provider over client. Outgoing uploads are staged
// in spoolDir ("" means the OS temp dir).
func NewS3Provider(client S3API, grants GrantStore, spoolDir string) *S3Provider {
	return &S3Provider{client: client, grants: grants, spoolDir: spoolDir}
}

func (p *S3Provider) OpenRead(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	bucket, key, err := loc.S3Object()
	if err != nil {
		return nil, err
	}

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNoStream
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (p *S3Provider) OpenWrite(ctx context.Context, loc Locator) (io.WriteCloser, error) {
	bucket, key, err := loc.S3Object()
	if err != nil {
		return nil, err
	}

	return newSpool(p.spoolDir, func(f *os.File, size int64) error {
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        &bucket,
			Key:           &key,
			Body:          f,
			ContentLength: aws.Int64(size),
			ContentType:   aws.String("application/octet-stream"),
		})
		if err != nil {
			return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
		}
		return nil
	})
}

func (p *S3Provider) LastModified(ctx context.Context, loc Locator) (Timestamp, error) {
	bucket, key, err := loc.S3Object()
	if err != nil {
		return Unknown, err
	}

	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return Unknown, fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
	}
	if out.LastModified == nil {
		return Unknown, nil
	}
	return At(*out.LastModified), nil
}

// AcquirePersistentAccess verifies the bucket is reachable with the
// configured credentials and records the grant.
func (p *S3Provider) AcquirePersistentAccess(ctx context.Context, loc Locator) error {
	bucket, _, err := loc.S3Object()
	if err != nil {
		return err
	}
	if _, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket}); err != nil {
		return fmt.Errorf("head bucket %s: %w", bucket, err)
	}
	if p.grants == nil {
		return nil
	}
	return p.grants.Grant(ctx, loc)
}

func (p *S3Provider) ReleasePersistentAccess(ctx context.Context, loc Locator) error {
	if p.grants == nil {
		return nil
	}
	return p.grants.Revoke(ctx, loc)
}
