package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/models"
	"github.com/lk2023060901/course-content-backend/internal/pkg/database"
	"gorm.io/gorm/clause"
)

// quotaStore 基于 PostgreSQL 的组织配额仓储
type quotaStore struct {
	db *database.DB
}

// NewQuotaStore 创建组织配额仓储
func NewQuotaStore(db *database.DB) biz.QuotaStore {
	return &quotaStore{db: db}
}

// ApplyDelta 原子调整用量并返回调整后的用量与上限
// 单条 UPDATE ... RETURNING，不做应用层读改写
func (r *quotaStore) ApplyDelta(ctx context.Context, organizationID string, delta int64) (int64, int64, error) {
	var row struct {
		StorageUsedBytes  int64
		StorageQuotaBytes int64
	}
	result := r.db.WithContext(ctx).Raw(
		`UPDATE organization_quotas
		 SET storage_used_bytes = storage_used_bytes + ?, updated_at = ?
		 WHERE organization_id = ?
		 RETURNING storage_used_bytes, storage_quota_bytes`,
		delta, time.Now(), organizationID).Scan(&row)
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to apply quota delta: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, 0, biz.ErrQuotaNotConfigured
	}
	return row.StorageUsedBytes, row.StorageQuotaBytes, nil
}

// EnsureOrganization 确保配额行存在，已存在时不覆盖
func (r *quotaStore) EnsureOrganization(ctx context.Context, organizationID string, defaultQuotaBytes int64) error {
	now := time.Now()
	quota := &models.OrganizationQuota{
		OrganizationID:    organizationID,
		StorageUsedBytes:  0,
		StorageQuotaBytes: defaultQuotaBytes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoNothing: true,
		}).
		Create(quota).Error
	if err != nil {
		return fmt.Errorf("failed to ensure organization quota: %w", err)
	}
	return nil
}
