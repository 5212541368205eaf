package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/models"
	"github.com/lk2023060901/course-content-backend/internal/content/types"
	"github.com/lk2023060901/course-content-backend/internal/pkg/database"
	"gorm.io/gorm"
)

// catalogStore 基于 PostgreSQL 的文件记录仓储
type catalogStore struct {
	db *database.DB
}

// NewCatalogStore 创建文件记录仓储
func NewCatalogStore(db *database.DB) biz.CatalogStore {
	return &catalogStore{db: db}
}

// Create 创建文件记录
func (r *catalogStore) Create(ctx context.Context, rec *biz.FileRecord) error {
	m := toModelFileRecord(rec)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取文件记录，不存在时返回 nil
func (r *catalogStore) GetByID(ctx context.Context, id string) (*biz.FileRecord, error) {
	var m models.FileRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return toBizFileRecord(&m), nil
}

// FindDonor 按指纹查找可作为去重来源的原始记录
// 只信任 vector_status = indexed 且自身是原始记录的行，命中部分索引
func (r *catalogStore) FindDonor(ctx context.Context, fingerprint string) (*biz.FileRecord, error) {
	var m models.FileRecord
	err := r.db.WithContext(ctx).
		Where("content_fingerprint = ? AND vector_status = ? AND original_file_id IS NULL",
			fingerprint, string(types.VectorStatusIndexed)).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find donor record: %w", err)
	}
	return toBizFileRecord(&m), nil
}

// IncrementReference 原子增加引用计数
func (r *catalogStore) IncrementReference(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reference_count": gorm.Expr("reference_count + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment reference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("file record not found: %s", id)
	}
	return nil
}

// DecrementReference 原子减少引用计数并返回新值
// 计数为 0 的行不再递减，避免并发删除下出现负数
func (r *catalogStore) DecrementReference(ctx context.Context, id string) (int64, error) {
	var newCount int64
	result := r.db.WithContext(ctx).Raw(
		`UPDATE file_records
		 SET reference_count = reference_count - 1, updated_at = ?
		 WHERE id = ? AND reference_count > 0
		 RETURNING reference_count`, time.Now(), id).Scan(&newCount)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to decrement reference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("file record not found or reference count already zero: %s", id)
	}
	return newCount, nil
}

// Delete 删除文件记录
func (r *catalogStore) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

// UpdateVectorStatus 更新向量化状态
func (r *catalogStore) UpdateVectorStatus(ctx context.Context, id string, status types.VectorStatus) error {
	result := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"vector_status": string(status),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update vector status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("file record not found: %s", id)
	}
	return nil
}

// UpdateParseResult 保存解析结果
func (r *catalogStore) UpdateParseResult(ctx context.Context, id, parsedContent, markdownContent string) error {
	result := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"parsed_content":   parsedContent,
			"markdown_content": markdownContent,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update parse result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("file record not found: %s", id)
	}
	return nil
}

// ListByCourse 列出课程下的全部文件记录
func (r *catalogStore) ListByCourse(ctx context.Context, organizationID, courseID string) ([]*biz.FileRecord, error) {
	var ms []*models.FileRecord
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND course_id = ?", organizationID, courseID).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list course files: %w", err)
	}
	out := make([]*biz.FileRecord, len(ms))
	for i, m := range ms {
		out[i] = toBizFileRecord(m)
	}
	return out, nil
}

func toModelFileRecord(rec *biz.FileRecord) *models.FileRecord {
	m := &models.FileRecord{
		ID:                 rec.ID,
		OrganizationID:     rec.OrganizationID,
		CourseID:           rec.CourseID,
		Filename:           rec.Filename,
		MimeType:           rec.MimeType,
		FileType:           rec.FileType,
		FileSize:           rec.FileSize,
		ContentFingerprint: rec.ContentFingerprint,
		StoragePath:        rec.StoragePath,
		ReferenceCount:     rec.ReferenceCount,
		VectorStatus:       string(rec.VectorStatus),
		ParsedContent:      rec.ParsedContent,
		MarkdownContent:    rec.MarkdownContent,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
	if rec.OriginalFileID != "" {
		original := rec.OriginalFileID
		m.OriginalFileID = &original
	}
	return m
}

func toBizFileRecord(m *models.FileRecord) *biz.FileRecord {
	rec := &biz.FileRecord{
		ID:                 m.ID,
		OrganizationID:     m.OrganizationID,
		CourseID:           m.CourseID,
		Filename:           m.Filename,
		MimeType:           m.MimeType,
		FileType:           m.FileType,
		FileSize:           m.FileSize,
		ContentFingerprint: m.ContentFingerprint,
		StoragePath:        m.StoragePath,
		ReferenceCount:     m.ReferenceCount,
		VectorStatus:       types.VectorStatus(m.VectorStatus),
		ParsedContent:      m.ParsedContent,
		MarkdownContent:    m.MarkdownContent,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.OriginalFileID != nil {
		rec.OriginalFileID = *m.OriginalFileID
	}
	return rec
}
