package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"Rippers/logger"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	SizeByKind   map[string]int64 // audio, image, document, other
}

func newBucketStats() *BucketStats {
	return &BucketStats{SizeByKind: make(map[string]int64)}
}

func (s *BucketStats) add(key string, size int64, modified time.Time) {
	s.TotalObjects++
	s.TotalSize += size
	s.SizeByKind[KindOf(key)] += size
	if modified.After(s.LastModified) {
		s.LastModified = modified
	}
}

// KindOf 从文件名推断内容类别
func KindOf(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".aac", ".ogg":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".json", ".m3u", ".txt", ".meta":
		return "document"
	default:
		return "other"
	}
}

// ContentType is the MIME type uploads are stored with.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	case ".m3u":
		return "audio/x-mpegurl"
	default:
		return "application/octet-stream"
	}
}

// Stats walks every object under prefix.
func (s *ArchiveStore) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	stats := newBucketStats()
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		stats.add(obj.Key, obj.Size, obj.LastModified)
	}
	return stats, nil
}

// RemovePrefix deletes every object under prefix and reports how many went.
// An empty prefix is refused.
func (s *ArchiveStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix == "" {
		return 0, fmt.Errorf("refusing to empty the whole bucket")
	}

	var doomed []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		doomed = append(doomed, obj)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(doomed))
	for _, obj := range doomed {
		objectsCh <- obj
	}
	close(objectsCh)

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	logger.Info("Prefix removed", logger.String("prefix", prefix), logger.Int("objects", len(doomed)))
	return len(doomed), nil
}
