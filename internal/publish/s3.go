// Package publish uploads run outputs to S3-compatible object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/himanishpuri/dolphain/internal/config"
)

// ErrNoBucket is returned by NewS3Publisher without a bucket.
var ErrNoBucket = errors.New("publish: bucket is required")

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// S3Publisher puts each output file under <prefix>/<run id>/<name>.
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	log    Logger
}

type Option func(*S3Publisher)

func WithLogger(l Logger) Option {
	return func(p *S3Publisher) {
		p.log = l
	}
}

// NewS3Publisher builds a client from cfg. Static keys are used when both
// are set, otherwise the default AWS credential chain applies.
func NewS3Publisher(ctx context.Context, cfg config.S3Config, opts ...Option) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			// S3-compatible stores (MinIO, LocalStack) want path-style keys
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	p := &S3Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    nopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Key is the object key a file is published under.
func (p *S3Publisher) Key(runID, file string) string {
	return path.Join(p.prefix, runID, filepath.Base(file))
}

// Publish uploads every path and returns the s3:// locations of the ones
// that made it. A failed upload does not stop the rest; all failures are
// joined into the returned error.
func (p *S3Publisher) Publish(ctx context.Context, runID string, paths []string) ([]string, error) {
	var (
		locations []string
		errs      []error
	)
	for _, file := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		key := p.Key(runID, file)
		if err := p.upload(ctx, key, file); err != nil {
			errs = append(errs, err)
			continue
		}
		loc := fmt.Sprintf("s3://%s/%s", p.bucket, key)
		p.log.Infof("Published %s", loc)
		locations = append(locations, loc)
	}
	return locations, errors.Join(errs...)
}

func (p *S3Publisher) upload(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("upload %s to S3: %w", file, err)
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}
