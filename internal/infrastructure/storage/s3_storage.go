// Package storage keeps payment attachments (scanned bills, receipts) in
// object storage.
package storage

import (
	"bytes"
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
	"github.com/erp/retail/internal/domain/shared"
	infraconfig "github.com/erp/retail/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultEndpoint        = "http://localhost:9000"
	defaultRegion          = "us-east-1"
	defaultPresignLifetime = 15 * time.Minute
)

var errKeyRequired = errors.New("storage key is required")

// S3AttachmentStorage keeps attachments in one bucket of an S3 compatible
// service. MinIO and RustFS need UsePathStyle.
type S3AttachmentStorage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	linkTTL time.Duration
	logger  *zap.Logger
}

// S3AttachmentStorageOption configures an S3AttachmentStorage
type S3AttachmentStorageOption func(*S3AttachmentStorage)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) S3AttachmentStorageOption {
	return func(s *S3AttachmentStorage) {
		s.logger = logger.Named("attachments")
	}
}

// WithPresignExpiration sets the default lifetime of download links
func WithPresignExpiration(d time.Duration) S3AttachmentStorageOption {
	return func(s *S3AttachmentStorage) {
		s.linkTTL = d
	}
}

func validateS3Config(cfg *infraconfig.StorageConfig) error {
	if cfg == nil {
		return errors.New("storage configuration is required")
	}
	var errs []error
	if cfg.Bucket == "" {
		errs = append(errs, errors.New("storage bucket is required"))
	}
	if cfg.AccessKeyID == "" {
		errs = append(errs, errors.New("storage access key is required"))
	}
	if cfg.SecretAccessKey == "" {
		errs = append(errs, errors.New("storage secret key is required"))
	}
	return errors.Join(errs...)
}

// endpointURL adds a scheme to bare host:port endpoints
func endpointURL(endpoint string) string {
	switch {
	case endpoint == "":
		return defaultEndpoint
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		return endpoint
	default:
		return "https://" + endpoint
	}
}

// NewS3AttachmentStorage builds a client with static credentials. No request
// is sent until the first operation.
func NewS3AttachmentStorage(cfg *infraconfig.StorageConfig, opts ...S3AttachmentStorageOption) (*S3AttachmentStorage, error) {
	if err := validateS3Config(cfg); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load S3 client config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint))
	})

	s := &S3AttachmentStorage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		linkTTL: defaultPresignLifetime,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check reports whether the bucket is reachable
func (s *S3AttachmentStorage) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// EnsureBucket creates the bucket when it is missing
func (s *S3AttachmentStorage) EnsureBucket(ctx context.Context) error {
	err := s.Check(ctx)
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Creating attachment bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads data under key, replacing any previous attachment
func (s *S3AttachmentStorage) Put(ctx context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return errKeyRequired
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}); err != nil {
		return fmt.Errorf("upload attachment %s: %w", key, err)
	}
	s.logger.Debug("Attachment stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Get downloads the attachment under key. A missing object is NOT_FOUND.
func (s *S3AttachmentStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("attachment %s not found", key))
	}
	if err != nil {
		return nil, fmt.Errorf("download attachment %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the attachment. Deleting a missing key succeeds.
func (s *S3AttachmentStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errKeyRequired
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete attachment %s: %w", key, err)
	}
	return nil
}

// DownloadURL presigns a GET for key. A non-positive lifetime uses the
// configured default.
func (s *S3AttachmentStorage) DownloadURL(ctx context.Context, key string, lifetime time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errKeyRequired
	}
	if lifetime <= 0 {
		lifetime = s.linkTTL
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(lifetime))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign attachment %s: %w", key, err)
	}
	return req.URL, time.Now().Add(lifetime), nil
}

// Bucket returns the bucket name
func (s *S3AttachmentStorage) Bucket() string {
	return s.bucket
}

// isNotFound matches typed S3 errors and, for services that only report the
// code in the message, the code text
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}
