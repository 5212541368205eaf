package biz

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/course-content-backend/internal/content/hasher"
	"github.com/lk2023060901/course-content-backend/internal/content/hybrid"
	"github.com/lk2023060901/course-content-backend/internal/content/types"
	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// duplicateBatchSize 向量复制的批大小，每批落盘后再写下一批
const duplicateBatchSize = 100

// ContentUseCase 内容生命周期用例
// 负责上传去重、引用计数、向量复制与删除清理
type ContentUseCase struct {
	catalog  CatalogStore
	vectors  VectorIndex
	blobs    BlobStore
	quota    *QuotaLedger
	embedder EmbeddingService
	logger   *logger.Logger
}

// NewContentUseCase 创建内容生命周期用例
func NewContentUseCase(
	catalog CatalogStore,
	vectors VectorIndex,
	blobs BlobStore,
	quota *QuotaLedger,
	embedder EmbeddingService,
	log *logger.Logger,
) *ContentUseCase {
	return &ContentUseCase{
		catalog:  catalog,
		vectors:  vectors,
		blobs:    blobs,
		quota:    quota,
		embedder: embedder,
		logger:   log,
	}
}

// HandleUpload 处理上传（支持内容去重）
// 先尝试去重路径，失败时无条件退回普通上传路径
func (uc *ContentUseCase) HandleUpload(ctx context.Context, data []byte, meta *UploadMeta) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	fingerprint := hasher.Fingerprint(data)

	if result := uc.attemptDeduplication(ctx, data, meta, fingerprint); result != nil {
		return result, nil
	}

	return uc.performNormalUpload(ctx, data, meta, fingerprint)
}

// attemptDeduplication 尝试去重路径
// 任何一步失败都回滚已落的部分并返回 nil，由调用方退回普通路径
func (uc *ContentUseCase) attemptDeduplication(ctx context.Context, data []byte, meta *UploadMeta, fingerprint string) *UploadResult {
	donor, err := uc.catalog.FindDonor(ctx, fingerprint)
	if err != nil {
		uc.logger.Warn("donor lookup failed, falling back to normal upload",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return nil
	}
	if donor == nil {
		return nil
	}

	now := time.Now()
	rec := &FileRecord{
		ID:                 uuid.New().String(),
		OrganizationID:     meta.OrganizationID,
		CourseID:           meta.CourseID,
		Filename:           meta.Filename,
		MimeType:           meta.MimeType,
		FileType:           fileExtension(meta.Filename),
		FileSize:           int64(len(data)),
		ContentFingerprint: fingerprint,
		StoragePath:        donor.StoragePath,
		OriginalFileID:     donor.ID,
		ReferenceCount:     1, // 非原始记录上的计数不具权威性
		VectorStatus:       types.VectorStatusIndexed,
		ParsedContent:      donor.ParsedContent,
		MarkdownContent:    donor.MarkdownContent,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.catalog.Create(ctx, rec); err != nil {
		uc.logger.Warn("dedup record insert failed, falling back to normal upload",
			zap.String("donor_id", donor.ID),
			zap.Error(err))
		return nil
	}

	if err := uc.catalog.IncrementReference(ctx, donor.ID); err != nil {
		_ = uc.catalog.Delete(ctx, rec.ID)
		uc.logger.Warn("reference increment failed, falling back to normal upload",
			zap.String("donor_id", donor.ID),
			zap.Error(err))
		return nil
	}

	copied, err := uc.DuplicateVectors(ctx, donor.ID, rec.ID, meta.CourseID, meta.OrganizationID)
	if err != nil {
		_, _ = uc.vectors.DeleteByDocument(ctx, rec.ID)
		_, _ = uc.catalog.DecrementReference(ctx, donor.ID)
		_ = uc.catalog.Delete(ctx, rec.ID)
		uc.logger.Warn("vector duplication failed, falling back to normal upload",
			zap.String("donor_id", donor.ID),
			zap.String("file_id", rec.ID),
			zap.Error(err))
		return nil
	}

	// 去重不减免配额：每个引用方独立计量
	if err := uc.quota.Adjust(ctx, meta.OrganizationID, rec.FileSize); err != nil {
		_, _ = uc.vectors.DeleteByDocument(ctx, rec.ID)
		_, _ = uc.catalog.DecrementReference(ctx, donor.ID)
		_ = uc.catalog.Delete(ctx, rec.ID)
		uc.logger.Warn("quota adjustment failed on dedup path, falling back to normal upload",
			zap.String("organization_id", meta.OrganizationID),
			zap.Error(err))
		return nil
	}

	uc.logger.Info("upload deduplicated",
		zap.String("file_id", rec.ID),
		zap.String("donor_id", donor.ID),
		zap.String("course_id", meta.CourseID),
		zap.Int("vectors_duplicated", copied))

	return &UploadResult{
		FileID:            rec.ID,
		Deduplicated:      true,
		OriginalFileID:    donor.ID,
		VectorStatus:      types.VectorStatusIndexed,
		VectorsDuplicated: copied,
	}
}

// performNormalUpload 普通上传路径：落盘、建原始记录、计配额
func (uc *ContentUseCase) performNormalUpload(ctx context.Context, data []byte, meta *UploadMeta, fingerprint string) (*UploadResult, error) {
	storagePath, err := uc.blobs.Save(ctx, meta.OrganizationID, meta.CourseID, meta.Filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to persist file: %w", err)
	}

	now := time.Now()
	rec := &FileRecord{
		ID:                 uuid.New().String(),
		OrganizationID:     meta.OrganizationID,
		CourseID:           meta.CourseID,
		Filename:           meta.Filename,
		MimeType:           meta.MimeType,
		FileType:           fileExtension(meta.Filename),
		FileSize:           int64(len(data)),
		ContentFingerprint: fingerprint,
		StoragePath:        storagePath,
		ReferenceCount:     1,
		VectorStatus:       types.VectorStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.catalog.Create(ctx, rec); err != nil {
		_ = uc.blobs.Delete(ctx, storagePath)
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	if err := uc.quota.Adjust(ctx, meta.OrganizationID, rec.FileSize); err != nil {
		_ = uc.catalog.Delete(ctx, rec.ID)
		_ = uc.blobs.Delete(ctx, storagePath)
		return nil, err
	}

	uc.logger.Info("upload stored as new content",
		zap.String("file_id", rec.ID),
		zap.String("course_id", meta.CourseID),
		zap.Int64("file_size", rec.FileSize))

	return &UploadResult{
		FileID:       rec.ID,
		Deduplicated: false,
		VectorStatus: types.VectorStatusPending,
	}, nil
}

// DuplicateVectors 向量复制
// 以主键游标分页读取 donor 的全部向量点，改写点 ID 与归属标签后按批写入，
// 向量数据原样复制不重算。donor 没有任何向量点时返回 ErrNoSourceVectors
func (uc *ContentUseCase) DuplicateVectors(ctx context.Context, donorID, newFileID, newCourseID, newOrgID string) (int, error) {
	total := 0
	cursor := ""

	for {
		points, err := uc.vectors.ScrollByDocument(ctx, donorID, cursor, duplicateBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to read donor vectors: %w", err)
		}
		if len(points) == 0 {
			break
		}

		copies := make([]*VectorPoint, len(points))
		for i, p := range points {
			copies[i] = &VectorPoint{
				ID:             PointID(newFileID, p.ChunkID),
				DocumentID:     newFileID,
				CourseID:       newCourseID,
				OrganizationID: newOrgID,
				ChunkID:        p.ChunkID,
				Content:        p.Content,
				HeadingPath:    p.HeadingPath,
				Chapter:        p.Chapter,
				Page:           p.Page,
				HasCode:        p.HasCode,
				HasTable:       p.HasTable,
				HasImage:       p.HasImage,
				Dense:          p.Dense,
				Sparse:         p.Sparse,
			}
		}

		if err := uc.vectors.Upsert(ctx, copies); err != nil {
			return total, fmt.Errorf("failed to upsert duplicated vectors: %w", err)
		}

		total += len(copies)
		if len(points) < duplicateBatchSize {
			break
		}
		cursor = points[len(points)-1].ID
	}

	if total == 0 {
		return 0, ErrNoSourceVectors
	}

	return total, nil
}

// HandleDelete 删除一个文件引用
// 课程范围内删向量、原子递减引用、删记录、退配额；
// 引用归零时清理物理文件和残留向量
func (uc *ContentUseCase) HandleDelete(ctx context.Context, fileID string) (*DeleteResult, error) {
	rec, err := uc.catalog.GetByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load file record: %w", err)
	}
	if rec == nil {
		return nil, ErrFileNotFound
	}

	targetID := rec.ID
	if !rec.IsOriginal() {
		targetID = rec.OriginalFileID
	}

	// 只删除本课程范围内的向量副本，不触碰其他课程
	deleted, err := uc.vectors.DeleteByDocumentAndCourse(ctx, fileID, rec.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete vectors: %w", err)
	}

	remaining, err := uc.catalog.DecrementReference(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement reference: %w", err)
	}

	// 原始记录在仍有副本引用它时只递减计数、保留行，
	// 否则存活副本的 original_file_id 会悬空、后续删除无法递减
	if !rec.IsOriginal() || remaining == 0 {
		if err := uc.catalog.Delete(ctx, fileID); err != nil {
			return nil, fmt.Errorf("failed to delete file record: %w", err)
		}
	}

	if err := uc.quota.Adjust(ctx, rec.OrganizationID, -rec.FileSize); err != nil {
		return nil, fmt.Errorf("failed to release quota: %w", err)
	}

	result := &DeleteResult{
		RemainingReferences: remaining,
		VectorsDeleted:      deleted,
		StorageFreedBytes:   rec.FileSize,
	}

	if remaining == 0 {
		// 最后一个引用：物理文件删除失败只记日志，不影响整体结果
		if err := uc.blobs.Delete(ctx, rec.StoragePath); err != nil {
			uc.logger.Error("failed to delete physical file",
				zap.String("file_id", fileID),
				zap.String("storage_path", rec.StoragePath),
				zap.Error(err))
		} else {
			result.PhysicalFileDeleted = true
		}

		swept, err := uc.vectors.DeleteByDocument(ctx, targetID)
		if err != nil {
			uc.logger.Error("failed to sweep residual vectors",
				zap.String("target_id", targetID),
				zap.Error(err))
		} else {
			result.VectorsDeleted += swept
		}

		if targetID != fileID {
			if err := uc.catalog.Delete(ctx, targetID); err != nil {
				uc.logger.Error("failed to delete original record",
					zap.String("target_id", targetID),
					zap.Error(err))
			}
		}
	}

	uc.logger.Info("file reference deleted",
		zap.String("file_id", fileID),
		zap.Int64("remaining_references", remaining),
		zap.Bool("physical_file_deleted", result.PhysicalFileDeleted))

	return result, nil
}

// SearchCourse 课程内混合检索（稠密 + 稀疏 + RRF 融合）
func (uc *ContentUseCase) SearchCourse(ctx context.Context, courseID, query string, topK int) ([]*SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}

	denseVec, sparseVec, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 两路各取 2 倍，融合后再截取
	denseHits, err := uc.vectors.SearchDense(ctx, courseID, denseVec, topK*2)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	var sparseHits []*SearchHit
	if sparseVec != nil {
		sparseHits, err = uc.vectors.SearchSparse(ctx, courseID, sparseVec, topK*2)
		if err != nil {
			return nil, fmt.Errorf("sparse search failed: %w", err)
		}
	}

	if len(sparseHits) == 0 {
		if len(denseHits) > topK {
			denseHits = denseHits[:topK]
		}
		return denseHits, nil
	}

	denseResults := make([]hybrid.SearchResult, len(denseHits))
	for i, hit := range denseHits {
		denseResults[i] = &hybrid.DenseSearchResult{ID: hit.PointID, Score: hit.Score}
	}

	sparseResults := make([]hybrid.SearchResult, len(sparseHits))
	for i, hit := range sparseHits {
		sparseResults[i] = &hybrid.SparseSearchResult{ID: hit.PointID, Score: hit.Score}
	}

	fused := hybrid.ReciprocalRankFusion(
		[][]hybrid.SearchResult{denseResults, sparseResults},
		60, // k=60，RRF 论文推荐值
	)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	hitByPoint := make(map[string]*SearchHit, len(denseHits)+len(sparseHits))
	for _, hit := range denseHits {
		hitByPoint[hit.PointID] = hit
	}
	for _, hit := range sparseHits {
		if _, exists := hitByPoint[hit.PointID]; !exists {
			hitByPoint[hit.PointID] = hit
		}
	}

	results := make([]*SearchHit, 0, len(fused))
	for _, f := range fused {
		hit, exists := hitByPoint[f.ID]
		if !exists {
			continue
		}
		results = append(results, &SearchHit{
			PointID:    hit.PointID,
			DocumentID: hit.DocumentID,
			ChunkID:    hit.ChunkID,
			Content:    hit.Content,
			Score:      float32(f.RRFScore),
		})
	}

	return results, nil
}

// fileExtension 取文件扩展名（不含点）
func fileExtension(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}
