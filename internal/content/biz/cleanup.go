package biz

import (
	"context"
	"fmt"

	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// CleanupResult 课程级联清理结果
type CleanupResult struct {
	Success           bool     `json:"success"`
	VectorsDeleted    int64    `json:"vectors_deleted"`
	CacheKeysDeleted  int64    `json:"cache_keys_deleted"`
	ChunkRowsDeleted  int64    `json:"chunk_rows_deleted"`
	BlobDirDeleted    bool     `json:"blob_dir_deleted"`
	ParseCacheDeleted int      `json:"parse_cache_deleted"`
	Errors            []string `json:"errors,omitempty"`
}

// CleanupUseCase 课程级联清理用例
// 各资源的清理相互独立，单步失败不阻断其余步骤
type CleanupUseCase struct {
	catalog    CatalogStore
	vectors    VectorIndex
	blobs      BlobStore
	cache      Cache
	chunks     ChunkCacheStore
	parseCache ParseCache
	logger     *logger.Logger
}

// NewCleanupUseCase 创建课程级联清理用例
func NewCleanupUseCase(
	catalog CatalogStore,
	vectors VectorIndex,
	blobs BlobStore,
	cache Cache,
	chunks ChunkCacheStore,
	parseCache ParseCache,
	log *logger.Logger,
) *CleanupUseCase {
	return &CleanupUseCase{
		catalog:    catalog,
		vectors:    vectors,
		blobs:      blobs,
		cache:      cache,
		chunks:     chunks,
		parseCache: parseCache,
		logger:     log,
	}
}

// CleanupCourse 清理一个课程的全部衍生资源
// 依次处理：向量、Redis 缓存、分块缓存表、物理文件目录、解析缓存。
// 永远返回结果，单步失败不阻断其余步骤
func (uc *CleanupUseCase) CleanupCourse(ctx context.Context, organizationID, courseID string) *CleanupResult {
	result := &CleanupResult{Success: true}

	// 解析缓存以存储路径为键，必须在记录被动过之前拿到清单；
	// 清单拿不到只影响解析缓存这一步，其余清理照常执行
	records, err := uc.catalog.ListByCourse(ctx, organizationID, courseID)
	if err != nil {
		records = nil
		result.Errors = append(result.Errors, fmt.Sprintf("file list: %v", err))
		uc.logger.Warn("failed to list course files, skipping parse cache cleanup",
			zap.String("course_id", courseID),
			zap.Error(err))
	}

	deleted, err := uc.vectors.DeleteByCourse(ctx, courseID)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("vectors: %v", err))
		uc.logger.Error("failed to delete course vectors",
			zap.String("course_id", courseID),
			zap.Error(err))
	} else {
		result.VectorsDeleted = deleted
	}

	keys, err := uc.cache.DeleteByPrefix(ctx, courseCachePrefix(courseID))
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("cache: %v", err))
		uc.logger.Error("failed to delete course cache keys",
			zap.String("course_id", courseID),
			zap.Error(err))
	} else {
		result.CacheKeysDeleted = keys
	}

	rows, err := uc.chunks.DeleteByCourse(ctx, courseID)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("chunk cache: %v", err))
		uc.logger.Error("failed to delete course chunk rows",
			zap.String("course_id", courseID),
			zap.Error(err))
	} else {
		result.ChunkRowsDeleted = rows
	}

	if err := uc.blobs.DeleteCourseDir(ctx, organizationID, courseID); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("blob dir: %v", err))
		uc.logger.Error("failed to delete course blob directory",
			zap.String("organization_id", organizationID),
			zap.String("course_id", courseID),
			zap.Error(err))
	} else {
		result.BlobDirDeleted = true
	}

	for _, rec := range records {
		if err := uc.parseCache.Delete(rec.StoragePath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("parse cache %s: %v", rec.ID, err))
			uc.logger.Warn("failed to delete parse cache entry",
				zap.String("file_id", rec.ID),
				zap.String("storage_path", rec.StoragePath),
				zap.Error(err))
			continue
		}
		result.ParseCacheDeleted++
	}

	uc.logger.Info("course cleanup finished",
		zap.String("course_id", courseID),
		zap.Bool("success", result.Success),
		zap.Int64("vectors_deleted", result.VectorsDeleted),
		zap.Int64("cache_keys_deleted", result.CacheKeysDeleted),
		zap.Int64("chunk_rows_deleted", result.ChunkRowsDeleted),
		zap.Int("parse_cache_deleted", result.ParseCacheDeleted),
		zap.Int("error_count", len(result.Errors)))

	return result
}

// courseCachePrefix 课程在 Redis 中的键前缀
func courseCachePrefix(courseID string) string {
	return "course:" + courseID + ":"
}
