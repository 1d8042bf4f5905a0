package storage

import (
	"context"
	"fmt"

	infraconfig "github.com/erp/retail/internal/infrastructure/config"
	"go.uber.org/zap"
)

// AttachmentStorage is the payment attachment port
type AttachmentStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Check reports whether the backend can serve requests
	Check(ctx context.Context) error
}

var (
	_ AttachmentStorage = (*S3AttachmentStorage)(nil)
	_ AttachmentStorage = (*MemoryAttachmentStorage)(nil)
)

// New builds the storage selected by cfg.Type and makes sure an S3 bucket exists
func New(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (AttachmentStorage, error) {
	switch cfg.Type {
	case "s3":
		s, err := NewS3AttachmentStorage(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("using S3 attachment storage", zap.String("bucket", s.Bucket()))
		return s, nil
	case "", "memory":
		logger.Warn("using in-memory attachment storage; attachments are lost on restart")
		return NewMemoryAttachmentStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
