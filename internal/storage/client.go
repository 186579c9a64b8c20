// Package storage writes thumbnails to the S3 compatible media bucket and
// answers whether an object is already published on the media host.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// MediaURL is the public base URL objects are served from.
	MediaURL string
	// ProbeURL is used for existence checks; it defaults to MediaURL.
	ProbeURL     string
	ProbeTimeout time.Duration
}

// ObjectPutter is the subset of the S3 API the client needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Client struct {
	s3       ObjectPutter
	bucket   string
	mediaURL string
	probeURL string
	http     *http.Client
	logger   *slog.Logger
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewWithPutter(client, cfg, nil, logger), nil
}

// NewWithPutter wires an explicit S3 implementation and HTTP client. A nil
// httpClient gets a default one with cfg.ProbeTimeout.
func NewWithPutter(putter ObjectPutter, cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	// Redirects are never followed.
	probe := *httpClient
	probe.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	probeURL := cfg.ProbeURL
	if probeURL == "" {
		probeURL = cfg.MediaURL
	}
	return &Client{
		s3:       putter,
		bucket:   cfg.Bucket,
		mediaURL: strings.TrimRight(cfg.MediaURL, "/"),
		probeURL: strings.TrimRight(probeURL, "/"),
		http:     &probe,
		logger:   logger,
	}
}

// ComputeURL returns the public URL of path.
func (c *Client) ComputeURL(path string) string {
	return c.mediaURL + "/" + strings.TrimLeft(path, "/")
}

// Upload stores data at path and returns its public URL. Upload failures are
// logged, not returned.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) string {
	url := c.ComputeURL(path)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(strings.TrimLeft(path, "/")),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		c.logger.Error("upload object failed", "path", path, "bucket", c.bucket, "err", err)
		return url
	}
	c.logger.Info("uploaded object", "path", path, "size", humanize.Bytes(uint64(len(data))), "content_type", contentType)
	return url
}

// Exists sends a HEAD request for path to the media host. 302, 403 and 404
// mean the object is missing; other non-200 statuses are errors.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	url := c.probeURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("build head request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", url, err)
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusFound, http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("head %s: unexpected status %d", url, resp.StatusCode)
	}
}
