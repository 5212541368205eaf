package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/models"
	"github.com/lk2023060901/course-content-backend/internal/pkg/database"
)

// chunkCacheStore 基于 PostgreSQL 的分块缓存仓储
type chunkCacheStore struct {
	db *database.DB
}

// NewChunkCacheStore 创建分块缓存仓储
func NewChunkCacheStore(db *database.DB) biz.ChunkCacheStore {
	return &chunkCacheStore{db: db}
}

// BatchCreate 批量写入分块缓存行
func (r *chunkCacheStore) BatchCreate(ctx context.Context, entries []*biz.ChunkCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*models.ChunkCache, len(entries))
	for i, e := range entries {
		rows[i] = &models.ChunkCache{
			DocumentID: e.DocumentID,
			CourseID:   e.CourseID,
			ChunkID:    e.ChunkID,
			Content:    e.Content,
			TokenCount: e.TokenCount,
			CreatedAt:  now,
		}
	}

	if err := r.db.WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("failed to create chunk cache rows: %w", err)
	}
	return nil
}

// DeleteByCourse 删除课程的全部分块缓存行并返回删除数
func (r *chunkCacheStore) DeleteByCourse(ctx context.Context, courseID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&models.ChunkCache{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete chunk cache rows: %w", result.Error)
	}
	return result.RowsAffected, nil
}
