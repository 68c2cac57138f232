// Package s3blob backs the blob writer and the archiver with an
// S3-compatible object store. Reports and archives are write-only from the
// bot's point of view; nothing here reads objects back.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig identifies the bucket and how to reach it. AWS S3 works with
// just Region and credentials; self-hosted stores (MinIO, R2) additionally
// set Endpoint and usually ForcePathStyle.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible stores. A bare
	// host is accepted; UseSSL picks its scheme. Empty means AWS S3.
	Endpoint string

	// Region is required even when Endpoint is set, as the SDK signs
	// requests against it.
	Region string

	// Bucket receives every object the bot writes.
	Bucket string

	AccessKey string
	SecretKey string

	// UseSSL selects https when Endpoint carries no scheme of its own.
	UseSSL bool

	// ForcePathStyle puts the bucket in the request path instead of the
	// hostname. Most non-AWS stores only route path-style requests.
	ForcePathStyle bool
}

// Client holds the configured SDK client and target bucket shared by the
// writer and the archiver.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New dials nothing; it validates the configuration and builds the SDK
// client. Connectivity is only proven by Health or the first upload.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Client{
		s3:     s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// Health verifies the bucket exists and the credentials can see it.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: health check failed for bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client needs no teardown.
func (c *Client) Close() error {
	return nil
}

// S3 exposes the SDK client to the writer.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the bucket every object lands in.
func (c *Client) Bucket() string {
	return c.bucket
}

// endpointURL returns the endpoint with a scheme, defaulting from useSSL
// when the configured value carries none.
func endpointURL(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
