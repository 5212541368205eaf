package biz

import (
	"context"
	"fmt"

	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// QuotaLedger 组织存储配额账本
// 增量采用乐观写入：先原子加量，超额时立即执行等额补偿再报错，
// 调用返回后存储用量永远不会停留在超额状态。减量不做配额检查
type QuotaLedger struct {
	store  QuotaStore
	logger *logger.Logger
}

// NewQuotaLedger 创建配额账本
func NewQuotaLedger(store QuotaStore, log *logger.Logger) *QuotaLedger {
	return &QuotaLedger{
		store:  store,
		logger: log,
	}
}

// Adjust 调整组织存储用量
func (l *QuotaLedger) Adjust(ctx context.Context, organizationID string, delta int64) error {
	if delta == 0 {
		return nil
	}

	used, quota, err := l.store.ApplyDelta(ctx, organizationID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust quota: %w", err)
	}

	// 减量永远放行
	if delta < 0 {
		return nil
	}

	if used > quota {
		// 补偿回滚，账本不得停留在超额状态
		if _, _, rbErr := l.store.ApplyDelta(ctx, organizationID, -delta); rbErr != nil {
			l.logger.Error("failed to roll back over-quota increment",
				zap.String("organization_id", organizationID),
				zap.Int64("delta", delta),
				zap.Error(rbErr))
		}

		l.logger.Warn("storage quota exceeded",
			zap.String("organization_id", organizationID),
			zap.Int64("requested_bytes", delta),
			zap.Int64("would_be_used", used),
			zap.Int64("quota_bytes", quota))

		return ErrQuotaExceeded
	}

	return nil
}

// Ensure 确保组织配额记录存在（不存在时按默认上限创建）
func (l *QuotaLedger) Ensure(ctx context.Context, organizationID string, defaultQuotaBytes int64) error {
	if err := l.store.EnsureOrganization(ctx, organizationID, defaultQuotaBytes); err != nil {
		return fmt.Errorf("failed to ensure organization quota: %w", err)
	}
	return nil
}
