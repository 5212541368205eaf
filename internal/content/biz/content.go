package biz

import (
	"context"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/types"
)

// FileRecord 文件记录模型
// OriginalFileID 为空表示原始记录（拥有物理文件），否则指向原始记录
// ReferenceCount 只在原始记录上具有权威性
type FileRecord struct {
	ID                 string
	OrganizationID     string
	CourseID           string
	Filename           string
	MimeType           string
	FileType           string // pdf, docx, txt, md
	FileSize           int64
	ContentFingerprint string // 文件SHA256指纹（去重用）
	StoragePath        string // 物理文件路径，多条记录可共享
	OriginalFileID     string // 为空表示自身是原始记录
	ReferenceCount     int64
	VectorStatus       types.VectorStatus
	ParsedContent      string
	MarkdownContent    string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsOriginal 是否为原始记录
func (r *FileRecord) IsOriginal() bool {
	return r.OriginalFileID == ""
}

// VectorPoint 向量索引中的一个分块点
// 点 ID 由 (所属记录 ID, 分块 ID) 确定性派生，重复上传幂等
type VectorPoint struct {
	ID             string
	DocumentID     string // 所属 FileRecord 的 ID
	CourseID       string
	OrganizationID string
	ChunkID        string
	Content        string
	HeadingPath    string
	Chapter        string
	Page           int
	HasCode        bool
	HasTable       bool
	HasImage       bool
	Dense          []float32
	Sparse         map[uint32]float32
}

// PointID 派生向量点 ID
func PointID(fileID, chunkID string) string {
	return fileID + ":" + chunkID
}

// UploadMeta 上传元数据
type UploadMeta struct {
	Filename       string
	OrganizationID string
	CourseID       string
	MimeType       string
	UserID         string
}

// UploadResult 上传结果
type UploadResult struct {
	FileID            string             `json:"file_id"`
	Deduplicated      bool               `json:"deduplicated"`
	OriginalFileID    string             `json:"original_file_id,omitempty"`
	VectorStatus      types.VectorStatus `json:"vector_status"`
	VectorsDuplicated int                `json:"vectors_duplicated,omitempty"`
}

// DeleteResult 删除结果
type DeleteResult struct {
	PhysicalFileDeleted bool  `json:"physical_file_deleted"`
	RemainingReferences int64 `json:"remaining_references"`
	VectorsDeleted      int64 `json:"vectors_deleted"`
	StorageFreedBytes   int64 `json:"storage_freed_bytes"`
}

// SearchHit 向量搜索命中
type SearchHit struct {
	PointID    string  `json:"point_id"`
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// CatalogStore 文件目录仓储接口
type CatalogStore interface {
	Create(ctx context.Context, rec *FileRecord) error
	// GetByID 记录不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	// FindDonor 按指纹查找可用的去重来源：已完成索引的原始记录
	// 没有符合条件的记录时返回 (nil, nil)
	FindDonor(ctx context.Context, fingerprint string) (*FileRecord, error)
	IncrementReference(ctx context.Context, id string) error
	// DecrementReference 原子递减并返回更新后的引用计数，计数不会降到 0 以下
	DecrementReference(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
	UpdateVectorStatus(ctx context.Context, id string, status types.VectorStatus) error
	UpdateParseResult(ctx context.Context, id, parsedContent, markdownContent string) error
	ListByCourse(ctx context.Context, organizationID, courseID string) ([]*FileRecord, error)
}

// VectorIndex 向量索引接口
type VectorIndex interface {
	Upsert(ctx context.Context, points []*VectorPoint) error
	// ScrollByDocument 按主键游标分页读取某文档的全部向量点，
	// afterID 为空表示从头开始，返回结果按点 ID 升序
	ScrollByDocument(ctx context.Context, documentID, afterID string, limit int) ([]*VectorPoint, error)
	CountByDocument(ctx context.Context, documentID string) (int64, error)
	// DeleteByDocumentAndCourse 课程范围内删除，不触碰其他课程的副本
	DeleteByDocumentAndCourse(ctx context.Context, documentID, courseID string) (int64, error)
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	DeleteByCourse(ctx context.Context, courseID string) (int64, error)
	SearchDense(ctx context.Context, courseID string, vector []float32, topK int) ([]*SearchHit, error)
	SearchSparse(ctx context.Context, courseID string, vector map[uint32]float32, topK int) ([]*SearchHit, error)
}

// BlobStore 物理文件存储接口
type BlobStore interface {
	// Save 按 {org}/{course}/{timestamp}-{sanitized filename} 约定持久化，返回存储路径
	Save(ctx context.Context, organizationID, courseID, filename string, data []byte) (string, error)
	Read(ctx context.Context, storagePath string) ([]byte, error)
	Delete(ctx context.Context, storagePath string) error
	// DeleteCourseDir 递归删除整个课程目录
	DeleteCourseDir(ctx context.Context, organizationID, courseID string) error
}

// Cache 键值缓存接口（课程级联清理用）
type Cache interface {
	// DeleteByPrefix 游标扫描并删除匹配前缀的所有键，返回删除数量
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// ChunkCacheEntry 分块缓存行
type ChunkCacheEntry struct {
	DocumentID string
	CourseID   string
	ChunkID    string
	Content    string
	TokenCount int
}

// ChunkCacheStore 分块缓存仓储接口
type ChunkCacheStore interface {
	BatchCreate(ctx context.Context, entries []*ChunkCacheEntry) error
	DeleteByCourse(ctx context.Context, courseID string) (int64, error)
}

// QuotaStore 配额仓储接口
type QuotaStore interface {
	// ApplyDelta 单条原子语句调整用量，返回调整后的用量和配额上限
	// 组织记录不存在时返回 ErrQuotaNotConfigured
	ApplyDelta(ctx context.Context, organizationID string, delta int64) (used int64, quota int64, err error)
	EnsureOrganization(ctx context.Context, organizationID string, defaultQuotaBytes int64) error
}

// ParseCache 本地解析结果缓存接口
// 缓存键由文件绝对存储路径的摘要派生；缺失不算错误
type ParseCache interface {
	Store(storagePath, parsedContent, markdownContent string) error
	Load(storagePath string) (parsedContent, markdownContent string, ok bool, err error)
	Delete(storagePath string) error
}

// ParsedChunk 解析产出的一个分块
type ParsedChunk struct {
	ChunkID     string
	Content     string
	HeadingPath string
	Chapter     string
	Page        int
	HasCode     bool
	HasTable    bool
	HasImage    bool
	TokenCount  int
}

// ParseOutput 文档处理流水线的产出
type ParseOutput struct {
	ParsedContent   string
	MarkdownContent string
	Chunks          []*ParsedChunk
}

// DocumentProcessor 文档处理器接口（外部协作方）
type DocumentProcessor interface {
	Process(ctx context.Context, data []byte, fileType string) (*ParseOutput, error)
}

// EmbeddingService Embedding 生成服务接口（外部协作方）
// 稀疏向量可选，不支持时返回 nil
type EmbeddingService interface {
	EmbedChunks(ctx context.Context, texts []string) ([][]float32, []map[uint32]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, map[uint32]float32, error)
}
