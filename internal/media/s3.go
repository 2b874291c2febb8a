// Package media hosts uploaded images on S3 or an S3-compatible service.
package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/doublejdg/stockroom/internal/config"
)

// ObjectPutter is the part of the S3 client the uploader uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores objects in a bucket and returns their public URL.
type S3Uploader struct {
	Client    ObjectPutter
	Bucket    string
	Region    string
	Endpoint  string
	PublicURL string
}

// NewS3Uploader builds an uploader from configuration. Static credentials
// are used when given, otherwise the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg config.S3Config) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		Client:    client,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		PublicURL: cfg.PublicURL,
	}, nil
}

// Upload stores data under key and returns the URL it is served from.
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte, mime string) (string, error) {
	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mime),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to S3: %w", key, err)
	}
	return u.URL(key), nil
}

// URL returns the public URL of key.
func (u *S3Uploader) URL(key string) string {
	switch {
	case u.PublicURL != "":
		return strings.TrimSuffix(u.PublicURL, "/") + "/" + key
	case u.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(u.Endpoint, "/"), u.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, key)
	}
}
