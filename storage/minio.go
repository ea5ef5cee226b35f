package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"Rippers/config"
	"Rippers/logger"
	"Rippers/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveStore reads the archive index from, and publishes tracks to, a
// MinIO bucket.
type ArchiveStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewArchiveStore 初始化 MinIO 客户端
func NewArchiveStore(cfg *config.Config) (*ArchiveStore, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is not configured")
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &ArchiveStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}, nil
}

func (s *ArchiveStore) Bucket() string { return s.bucket }

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ArchiveStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		logger.Info("Bucket exists", logger.String("bucket", s.bucket))
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	logger.Info("Bucket created", logger.String("bucket", s.bucket))
	return nil
}

// FetchIndex opens the index object. The caller closes the reader.
func (s *ArchiveStore) FetchIndex(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive index %s: %w", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to fetch archive index %s: %w", key, err)
	}
	return obj, nil
}

// PublishIndex uploads an index document under key.
func (s *ArchiveStore) PublishIndex(ctx context.Context, key string, index *model.ArchiveIndex) error {
	data, err := json.MarshalIndent(index, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive index: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive index %s: %w", key, err)
	}
	logger.Info("Archive index published", logger.String("key", key), logger.Int("entries", len(index.Files)))
	return nil
}

// PublishTrack uploads a local audio file as prefix/<base name>.
func (s *ArchiveStore) PublishTrack(ctx context.Context, localPath, prefix string) (string, error) {
	key := path.Join(strings.Trim(prefix, "/"), path.Base(strings.ReplaceAll(localPath, `\`, "/")))
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: ContentType(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	logger.Info("Track published", logger.String("key", key), logger.Int64("size", info.Size))
	return key, nil
}

// ListAudio returns the keys of every audio object under prefix, relative to it.
func (s *ArchiveStore) ListAudio(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, prefix))
	}
	return keys, nil
}

// Check round-trips a small object, the way an operator verifies credentials.
func (s *ArchiveStore) Check(ctx context.Context) error {
	if err := s.EnsureBucket(ctx); err != nil {
		return err
	}
	const key = "rippers/connection.txt"
	content := "connection check " + time.Now().Format(time.RFC3339)
	if _, err := s.client.PutObject(ctx, s.bucket, key, strings.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/plain",
	}); err != nil {
		return fmt.Errorf("failed to upload test object: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to read test object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return fmt.Errorf("failed to read test object: %w", err)
	}
	if string(data) != content {
		return fmt.Errorf("test object mismatch: got %q", string(data))
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
