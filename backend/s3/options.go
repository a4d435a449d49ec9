package s3

import (
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
)

// Config holds configuration for the S3 fetcher.
type Config struct {
	// Bucket is the S3 bucket name. An s3:// locator supplies it from the
	// host part.
	Bucket string

	// Region is the AWS region (e.g., "us-east-1").
	// If empty, uses AWS_REGION or AWS_DEFAULT_REGION environment variable.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible services.
	// Examples:
	//   - MinIO: "http://localhost:9000"
	//   - Cloudflare R2: "https://<account_id>.r2.cloudflarestorage.com"
	// Leave empty for AWS S3.
	Endpoint string

	// Prefix is joined in front of relative keys.
	Prefix string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses AWS_ACCESS_KEY_ID environment variable or IAM role.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string

	// SessionToken is an optional session token for temporary credentials.
	SessionToken string

	// UsePathStyle forces path-style addressing instead of virtual-hosted-style.
	// Required for MinIO and most local S3-compatible services.
	UsePathStyle bool

	// DisableSSL selects http:// for an Endpoint given without a scheme.
	DisableSSL bool

	// PartSize is the part size in bytes used when a write-back is large
	// enough to need a multipart upload. Default: 5MB (minimum for S3).
	PartSize int64

	// Concurrency is the number of parts uploaded in parallel.
	// Default: 5.
	Concurrency int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		PartSize:    manager.MinUploadPartSize,
		Concurrency: manager.DefaultUploadConcurrency,
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Environment variables:
//   - SEEKIO_S3_BUCKET or AWS_S3_BUCKET: bucket name
//   - SEEKIO_S3_REGION or AWS_REGION or AWS_DEFAULT_REGION: region
//   - SEEKIO_S3_ENDPOINT: custom endpoint
//   - SEEKIO_S3_PREFIX: key prefix
//   - AWS_ACCESS_KEY_ID: access key
//   - AWS_SECRET_ACCESS_KEY: secret key
//   - AWS_SESSION_TOKEN: session token
//   - SEEKIO_S3_USE_PATH_STYLE: "true" for path-style addressing
//   - SEEKIO_S3_DISABLE_SSL: "true" to disable SSL
func ConfigFromEnv() Config {
	config := DefaultConfig()

	if v := os.Getenv("SEEKIO_S3_BUCKET"); v != "" {
		config.Bucket = v
	} else if v := os.Getenv("AWS_S3_BUCKET"); v != "" {
		config.Bucket = v
	}

	if v := os.Getenv("SEEKIO_S3_REGION"); v != "" {
		config.Region = v
	} else if v := os.Getenv("AWS_REGION"); v != "" {
		config.Region = v
	} else if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		config.Region = v
	}

	config.Endpoint = os.Getenv("SEEKIO_S3_ENDPOINT")
	config.Prefix = os.Getenv("SEEKIO_S3_PREFIX")

	// Credentials from environment (AWS SDK will also pick these up)
	config.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	config.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	config.SessionToken = os.Getenv("AWS_SESSION_TOKEN")

	config.UsePathStyle = isTrue(os.Getenv("SEEKIO_S3_USE_PATH_STYLE"))
	config.DisableSSL = isTrue(os.Getenv("SEEKIO_S3_DISABLE_SSL"))

	return config
}

// ConfigFromMap creates a Config from a string map, starting from
// ConfigFromEnv.
// Supported keys:
//   - bucket: bucket name
//   - region: AWS region
//   - endpoint: custom endpoint URL
//   - prefix: key prefix
//   - access_key_id: AWS access key
//   - secret_access_key: AWS secret key
//   - session_token: session token
//   - use_path_style: "true" for path-style addressing
//   - disable_ssl: "true" to disable SSL
//   - part_size: multipart upload part size in bytes
//   - concurrency: number of parts uploaded in parallel
func ConfigFromMap(m map[string]string) Config {
	config := ConfigFromEnv()

	if v, ok := m["bucket"]; ok {
		config.Bucket = v
	}
	if v, ok := m["region"]; ok {
		config.Region = v
	}
	if v, ok := m["endpoint"]; ok {
		config.Endpoint = v
	}
	if v, ok := m["prefix"]; ok {
		config.Prefix = v
	}
	if v, ok := m["access_key_id"]; ok {
		config.AccessKeyID = v
	}
	if v, ok := m["secret_access_key"]; ok {
		config.SecretAccessKey = v
	}
	if v, ok := m["session_token"]; ok {
		config.SessionToken = v
	}
	if v, ok := m["use_path_style"]; ok {
		config.UsePathStyle = isTrue(v)
	}
	if v, ok := m["disable_ssl"]; ok {
		config.DisableSSL = isTrue(v)
	}
	if v, ok := m["part_size"]; ok {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil && size > 0 {
			config.PartSize = size
		}
	}
	if v, ok := m["concurrency"]; ok {
		if c, err := strconv.Atoi(v); err == nil && c > 0 {
			config.Concurrency = c
		}
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	if c.PartSize != 0 && c.PartSize < manager.MinUploadPartSize {
		return ErrPartSizeTooSmall
	}
	return nil
}

// endpointURL returns Endpoint with a scheme.
func (c Config) endpointURL() string {
	if c.Endpoint == "" || strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}
	if c.DisableSSL {
		return "http://" + c.Endpoint
	}
	return "https://" + c.Endpoint
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}
