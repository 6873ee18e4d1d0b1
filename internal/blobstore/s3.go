package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// maxACLAttempts bounds retries of the make-public step after a successful
// upload. The object exists but is private in the window between a
// successful PutObject and a successful PutObjectAcl.
const maxACLAttempts = 3

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// Compile-time check that S3Store implements Store.
var _ Store = (*S3Store)(nil)

// S3Store implements Store using the AWS SDK v2 S3 client.
type S3Store struct {
	client *s3.Client
	logger *slog.Logger
}

// NewS3Store creates a new S3Store instance.
func NewS3Store(cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		logger: logger,
	}, nil
}

// Download fetches bucket/key into the local file at destPath. A missing
// object maps to ErrNotFound; any other failure leaves no partial file
// behind and is wrapped in a *TransferError.
func (s *S3Store) Download(ctx context.Context, bucket, key, destPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return &TransferError{Op: "download", Bucket: bucket, Key: key, Err: err}
	}
	defer func() { _ = out.Body.Close() }()

	f, err := os.Create(destPath) // #nosec G304 - destPath is derived by the scratch manager
	if err != nil {
		return &TransferError{Op: "download", Bucket: bucket, Key: key, Err: err}
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return &TransferError{Op: "download", Bucket: bucket, Key: key, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(destPath)
		return &TransferError{Op: "download", Bucket: bucket, Key: key, Err: err}
	}

	s.logger.Info("object downloaded",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.String("dest", destPath),
	)
	return nil
}

// Upload stores the local file at srcPath as bucket/key, then marks the
// object publicly readable as a separate step with bounded retries.
func (s *S3Store) Upload(ctx context.Context, srcPath, bucket, key string) error {
	f, err := os.Open(srcPath) // #nosec G304 - srcPath is derived by the scratch manager
	if err != nil {
		return &TransferError{Op: "upload", Bucket: bucket, Key: key, Err: err}
	}
	defer func() { _ = f.Close() }()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return &TransferError{Op: "upload", Bucket: bucket, Key: key, Err: err}
	}

	if err := s.makePublic(ctx, bucket, key); err != nil {
		return &TransferError{Op: "upload", Bucket: bucket, Key: key, Err: err}
	}

	s.logger.Info("object uploaded",
		slog.String("bucket", bucket),
		slog.String("key", key),
	)
	return nil
}

// makePublic sets a public-read ACL on bucket/key, retrying up to
// maxACLAttempts times before giving up.
func (s *S3Store) makePublic(ctx context.Context, bucket, key string) error {
	var lastErr error
	for attempt := 1; attempt <= maxACLAttempts; attempt++ {
		_, lastErr = s.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			ACL:    types.ObjectCannedACLPublicRead,
		})
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("make-public attempt failed",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
	}
	return fmt.Errorf("make public after %d attempts: %w", maxACLAttempts, lastErr)
}

// isNotFound reports whether err is an S3 "object does not exist" error.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
