package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"Rippers/model"

	"gorm.io/gorm"
)

// MaxActivityEntries is how many entries every backend keeps.
const MaxActivityEntries = 100

// ActivityRepository 记录每次获取音轨的结果
type ActivityRepository interface {
	Add(ctx context.Context, entry *model.ActivityEntry) error
	// Recent returns up to limit entries, newest first. limit <= 0 means all.
	Recent(ctx context.Context, limit int) ([]model.ActivityEntry, error)
}

// jsonActivityRepository keeps the log as one JSON array, newest first.
type jsonActivityRepository struct {
	path string
	mu   sync.Mutex
}

// NewJSONActivityRepository 创建基于 JSON 文件的活动日志
func NewJSONActivityRepository(path string) ActivityRepository {
	return &jsonActivityRepository{path: path}
}

func (r *jsonActivityRepository) load() ([]model.ActivityEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}
	var entries []model.ActivityEntry
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse activity log: %w", err)
	}
	return entries, nil
}

func (r *jsonActivityRepository) Add(_ context.Context, entry *model.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	entries = append([]model.ActivityEntry{*entry}, entries...)
	if len(entries) > MaxActivityEntries {
		entries = entries[:MaxActivityEntries]
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal activity log: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return os.Rename(tmp, r.path)
}

func (r *jsonActivityRepository) Recent(_ context.Context, limit int) ([]model.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ActivityEntry{}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// gormActivityRepository GORM 实现
type gormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository 创建 GORM 活动日志仓库
func NewGormActivityRepository(db *gorm.DB) ActivityRepository {
	return &gormActivityRepository{db: db}
}

// Add inserts the entry and drops rows older than the newest MaxActivityEntries.
func (r *gormActivityRepository) Add(ctx context.Context, entry *model.ActivityEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		var cutoff []uint
		err := tx.Model(&model.ActivityEntry{}).
			Order("id DESC").
			Offset(MaxActivityEntries-1).
			Limit(1).
			Pluck("id", &cutoff).Error
		if err != nil {
			return err
		}
		if len(cutoff) == 0 {
			return nil
		}
		return tx.Where("id < ?", cutoff[0]).Delete(&model.ActivityEntry{}).Error
	})
}

func (r *gormActivityRepository) Recent(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 || limit > MaxActivityEntries {
		limit = MaxActivityEntries
	}
	var entries []model.ActivityEntry
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
