package models

import (
	"time"
)

// OrganizationQuota 组织存储配额账本
// storage_used_bytes 只允许通过原子增量语句修改，调用返回后不得停留在超额状态
type OrganizationQuota struct {
	OrganizationID    string    `gorm:"column:organization_id;type:uuid;primaryKey" json:"organization_id"`
	StorageUsedBytes  int64     `gorm:"column:storage_used_bytes;not null;default:0" json:"storage_used_bytes"`
	StorageQuotaBytes int64     `gorm:"column:storage_quota_bytes;not null" json:"storage_quota_bytes"`
	CreatedAt         time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName 指定表名
func (OrganizationQuota) TableName() string {
	return "organization_quotas"
}
