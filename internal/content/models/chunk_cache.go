package models

import (
	"time"
)

// ChunkCache 课程分块缓存表
// 纯缓存，课程级联清理时整批删除
type ChunkCache struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID string    `gorm:"column:document_id;type:uuid;not null;index" json:"document_id"`
	CourseID   string    `gorm:"column:course_id;type:uuid;not null;index" json:"course_id"`
	ChunkID    string    `gorm:"column:chunk_id;size:64;not null" json:"chunk_id"`
	Content    string    `gorm:"column:content;type:text" json:"content"`
	TokenCount int       `gorm:"column:token_count;not null;default:0" json:"token_count"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName 指定表名
func (ChunkCache) TableName() string {
	return "chunk_caches"
}
