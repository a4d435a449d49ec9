// Package s3 provides a remote.Fetcher for objects in S3-compatible
// storage.
//
// This backend works with:
//   - AWS S3
//   - Cloudflare R2
//   - MinIO
//   - Any S3-compatible object storage
//
// Objects cannot be patched in place, so a write-back uploads the whole
// object again. Large objects go up as a multipart upload.
//
// Basic usage:
//
//	f, err := s3.New("scans/a.tif", s3.Config{
//	    Bucket: "my-bucket",
//	    Region: "us-east-1",
//	})
//	s := remote.NewOwned(f, "s3://my-bucket/scans/a.tif")
//
// Through the registry, for an S3-compatible service:
//
//	s, err := seekio.Open("s3://my-bucket/scans/a.tif", map[string]string{
//	    "endpoint":       "http://localhost:9000",
//	    "use_path_style": "true",
//	})
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/remote"
)

// Errors specific to the S3 backend.
var (
	ErrBucketRequired   = errors.New("s3: bucket is required")
	ErrKeyRequired      = errors.New("s3: key is required")
	ErrPartSizeTooSmall = errors.New("s3: part size is below the 5MB minimum")
)

// Fetcher implements remote.Fetcher for one S3 object.
type Fetcher struct {
	remote.ReadOnly

	client   *s3.Client
	uploader *manager.Uploader
	config   Config
	key      string
	logger   *slog.Logger
}

// New creates a fetcher for key in config.Bucket. Building the client
// reads local AWS configuration but makes no request.
func New(key string, cfg Config, opts ...seekio.Option) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return nil, ErrKeyRequired
	}

	if cfg.PartSize == 0 {
		cfg.PartSize = manager.MinUploadPartSize
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = manager.DefaultUploadConcurrency
	}

	o := seekio.ApplyOptions(opts...)

	var optFns []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(o.Context, optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading AWS config: %w", err)
	}

	var s3OptFns []func(*s3.Options)
	if endpoint := cfg.endpointURL(); endpoint != "" {
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			// S3-compatible services often reject the default flexible
			// checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
			if o.Region == "" {
				o.Region = "us-east-1"
			}
		})
	}
	if cfg.UsePathStyle {
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3OptFns...)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
		if cfg.Endpoint != "" {
			u.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &Fetcher{
		client:   client,
		uploader: uploader,
		config:   cfg,
		key:      fullKey(cfg.Prefix, key),
		logger:   o.Logger.With("bucket", cfg.Bucket, "key", key),
	}, nil
}

// NewFromURL creates a fetcher for an s3://bucket/key URL. The bucket in
// the URL takes precedence over config.
func NewFromURL(rawURL string, cfg Config, opts ...seekio.Option) (*Fetcher, error) {
	key, err := applyURL(rawURL, &cfg)
	if err != nil {
		return nil, err
	}
	return New(key, cfg, opts...)
}

func applyURL(rawURL string, cfg *Config) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", seekio.ErrInvalidLocator, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", fmt.Errorf("%w: not an s3 url: %s", seekio.ErrInvalidLocator, rawURL)
	}
	if u.Host != "" {
		cfg.Bucket = u.Host
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

// fullKey joins prefix and key.
func fullKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// Size returns the object's content length.
func (f *Fetcher) Size(ctx context.Context) (int64, error) {
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.config.Bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return 0, f.translateError(err)
	}
	if out.ContentLength == nil {
		return -1, nil
	}
	return *out.ContentLength, nil
}

// FetchRange reads n bytes at off with a ranged GET; n of -1 reads to the
// end.
func (f *Fetcher) FetchRange(ctx context.Context, off, n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(f.config.Bucket),
		Key:    aws.String(f.key),
	}
	switch {
	case n > 0:
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", off, off+n-1))
	case off > 0:
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", off))
	}

	out, err := f.client.GetObject(ctx, input)
	if err != nil {
		return nil, f.translateError(err)
	}
	defer func() { _ = out.Body.Close() }()

	var r io.Reader = out.Body
	if n > 0 {
		r = io.LimitReader(out.Body, n)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, f.translateError(err)
	}
	f.logger.Debug("s3 range fetched", "offset", off, "length", len(data))
	return data, nil
}

// Replace uploads data as the whole object.
func (f *Fetcher) Replace(ctx context.Context, data []byte) error {
	_, err := f.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(f.config.Bucket),
		Key:           aws.String(f.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return f.translateError(err)
	}
	f.logger.Debug("s3 object replaced", "size", len(data))
	return nil
}

// Features reports that only whole-object replacement is supported.
func (f *Fetcher) Features() remote.Features {
	return remote.Features{Replace: true}
}

// translateError converts S3 errors to seekio errors.
func (f *Fetcher) translateError(err error) error {
	if err == nil {
		return nil
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: s3://%s/%s", seekio.ErrNotFound, f.config.Bucket, f.key)
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: s3://%s/%s", seekio.ErrNotFound, f.config.Bucket, f.key)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: bucket %s", seekio.ErrNotFound, f.config.Bucket)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return fmt.Errorf("%w: %v", seekio.ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %v", seekio.ErrPermissionDenied, err)
		case "NotImplemented":
			return fmt.Errorf("%w: %v", seekio.ErrNotSupported, err)
		}
	}

	return fmt.Errorf("s3: %w", err)
}

// Ensure Fetcher implements remote.Fetcher
var _ remote.Fetcher = (*Fetcher)(nil)
