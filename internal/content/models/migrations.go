package models

import (
	"context"
	"fmt"

	"github.com/lk2023060901/course-content-backend/internal/pkg/database"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移内容子系统相关表
func AutoMigrate(ctx context.Context, db *database.DB) error {
	models := []interface{}{
		&FileRecord{},
		&OrganizationQuota{},
		&ChunkCache{},
	}

	for _, model := range models {
		if err := db.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	if err := createIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes 创建额外的索引
func createIndexes(ctx context.Context, db *database.DB) error {
	// 去重热路径：指纹查找只命中已完成索引的原始记录，用部分索引代替全表扫描
	if err := db.WithContext(ctx).Exec(`
		CREATE INDEX IF NOT EXISTS idx_file_records_fingerprint_indexed
		ON file_records(content_fingerprint)
		WHERE vector_status = 'indexed' AND original_file_id IS NULL
	`).Error; err != nil {
		return err
	}

	if err := db.WithContext(ctx).Exec(`
		CREATE INDEX IF NOT EXISTS idx_chunk_caches_course_chunk
		ON chunk_caches(course_id, document_id, chunk_id)
	`).Error; err != nil {
		return err
	}

	return nil
}

// DropTables 删除所有内容子系统相关表（危险操作，仅用于测试）
func DropTables(ctx context.Context, db *database.DB) error {
	models := []interface{}{
		&ChunkCache{},
		&OrganizationQuota{},
		&FileRecord{},
	}

	for _, model := range models {
		if err := db.WithContext(ctx).Migrator().DropTable(model); err != nil {
			return fmt.Errorf("failed to drop table %T: %w", model, err)
		}
	}

	return nil
}

// MigrateWithLog 带日志的迁移
func MigrateWithLog(ctx context.Context, db *database.DB, logger *zap.Logger) error {
	logger.Info("starting content schema migration")

	if err := AutoMigrate(ctx, db); err != nil {
		logger.Error("schema migration failed", zap.Error(err))
		return err
	}

	logger.Info("content schema migration completed successfully")
	return nil
}
