package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/keypath"
)

// S3Config selects the buckets and keys of a run.
type S3Config struct {
	Buckets       []string
	Prefix        string
	Region        string
	Endpoint      string // S3-compatible endpoint; empty for AWS
	PathStyle     bool
	PresignExpiry time.Duration
	MaxBodyBytes  int64
}

// S3Source reads documentation objects from S3 buckets.
type S3Source struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	log     *slog.Logger
}

// NewS3Source loads AWS configuration from the environment and builds a
// source for cfg.
func NewS3Source(ctx context.Context, cfg S3Config, log *slog.Logger) (*S3Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3SourceFromConfig(awsCfg, cfg, log), nil
}

// NewS3SourceFromConfig builds a source from an explicit AWS config.
func NewS3SourceFromConfig(awsCfg aws.Config, cfg S3Config, log *slog.Logger) *S3Source {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Source{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		log:     log,
	}
}

// List pages through every configured bucket under the key prefix.
func (s *S3Source) List(ctx context.Context) ([]doctree.SourceObject, error) {
	var all []doctree.SourceObject
	for _, bucket := range s.cfg.Buckets {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
		if s.cfg.Prefix != "" {
			input.Prefix = aws.String(s.cfg.Prefix)
		}

		before := len(all)
		p := s3.NewListObjectsV2Paginator(s.client, input)
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("list bucket %s: %w", bucket, classify("list", err))
			}
			for _, o := range page.Contents {
				all = append(all, doctree.SourceObject{
					Bucket:       bucket,
					Key:          aws.ToString(o.Key),
					LastModified: aws.ToTime(o.LastModified),
					ETag:         aws.ToString(o.ETag),
					Size:         aws.ToInt64(o.Size),
				})
			}
		}
		if len(all) == before {
			s.log.Warn("bucket has no objects", "bucket", bucket, "prefix", s.cfg.Prefix)
		}
	}
	return all, nil
}

// Load presigns a download URL for obj and reads the body of HTML objects.
func (s *S3Source) Load(ctx context.Context, obj doctree.SourceObject) (doctree.SourceObject, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	}

	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(s.cfg.PresignExpiry))
	if err != nil {
		return obj, fmt.Errorf("presign %s: %w", obj.Key, err)
	}
	obj.URL = req.URL

	if !keypath.IsHTML(obj.Key) {
		return obj, nil
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return obj, fmt.Errorf("get %s: %w", obj.Key, classify("get", err))
	}
	defer out.Body.Close()

	body, err := readBody(out.Body, s.cfg.MaxBodyBytes)
	if errors.Is(err, ErrBodyTooLarge) {
		return obj, fmt.Errorf("read %s: %w", obj.Key, err)
	}
	if err != nil {
		return obj, fmt.Errorf("read %s: %w", obj.Key, &RetryableError{Op: "read", Err: err})
	}
	obj.Body = string(body)
	return obj, nil
}

// classify marks throttling and server-side failures as retryable.
func classify(op string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		if code == http.StatusTooManyRequests || code >= 500 {
			return &RetryableError{Op: op, Err: err}
		}
	}
	return err
}
