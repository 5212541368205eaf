package models

import (
	"time"
)

// FileRecord 课程内容文件记录
// 一条记录代表某门课程内对一份内容的一次引用。original_file_id 为空表示
// 该记录是原始记录（拥有物理文件），否则指向拥有物理文件的原始记录
type FileRecord struct {
	ID                 string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrganizationID     string    `gorm:"column:organization_id;type:uuid;not null;index:idx_file_records_course_org" json:"organization_id"`
	CourseID           string    `gorm:"column:course_id;type:uuid;not null;index:idx_file_records_course_org" json:"course_id"`
	Filename           string    `gorm:"column:filename;not null" json:"filename"`
	MimeType           string    `gorm:"column:mime_type" json:"mime_type"`
	FileType           string    `gorm:"column:file_type" json:"file_type"`
	FileSize           int64     `gorm:"column:file_size;not null" json:"file_size"`
	ContentFingerprint string    `gorm:"column:content_fingerprint;size:64;not null" json:"content_fingerprint"`
	StoragePath        string    `gorm:"column:storage_path;not null" json:"storage_path"`
	OriginalFileID     *string   `gorm:"column:original_file_id;type:uuid;index:idx_file_records_original" json:"original_file_id,omitempty"`
	ReferenceCount     int64     `gorm:"column:reference_count;not null;default:1" json:"reference_count"`
	VectorStatus       string    `gorm:"column:vector_status;size:16;not null;default:pending" json:"vector_status"`
	ParsedContent      string    `gorm:"column:parsed_content;type:text" json:"-"`
	MarkdownContent    string    `gorm:"column:markdown_content;type:text" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName 指定表名
func (FileRecord) TableName() string {
	return "file_records"
}
