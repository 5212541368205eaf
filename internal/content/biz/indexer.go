package biz

import (
	"context"
	"fmt"

	"github.com/lk2023060901/course-content-backend/internal/content/types"
	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// IndexerUseCase 文档索引用例
// 负责解析、向量化并写入向量库，维护 vector_status 状态机
type IndexerUseCase struct {
	catalog    CatalogStore
	vectors    VectorIndex
	blobs      BlobStore
	chunks     ChunkCacheStore
	parseCache ParseCache
	processor  DocumentProcessor
	embedder   EmbeddingService
	logger     *logger.Logger
}

// NewIndexerUseCase 创建文档索引用例
func NewIndexerUseCase(
	catalog CatalogStore,
	vectors VectorIndex,
	blobs BlobStore,
	chunks ChunkCacheStore,
	parseCache ParseCache,
	processor DocumentProcessor,
	embedder EmbeddingService,
	log *logger.Logger,
) *IndexerUseCase {
	return &IndexerUseCase{
		catalog:    catalog,
		vectors:    vectors,
		blobs:      blobs,
		chunks:     chunks,
		parseCache: parseCache,
		processor:  processor,
		embedder:   embedder,
		logger:     log,
	}
}

// IndexFile 对单个文件执行完整的索引流程
// pending -> indexing -> indexed，任何一步失败置 failed
func (uc *IndexerUseCase) IndexFile(ctx context.Context, fileID string) error {
	rec, err := uc.catalog.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load file record: %w", err)
	}
	if rec == nil {
		return ErrFileNotFound
	}

	if !rec.VectorStatus.CanTransition(types.VectorStatusIndexing) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, rec.VectorStatus, types.VectorStatusIndexing)
	}
	if err := uc.catalog.UpdateVectorStatus(ctx, fileID, types.VectorStatusIndexing); err != nil {
		return fmt.Errorf("failed to mark indexing: %w", err)
	}

	if err := uc.indexFile(ctx, rec); err != nil {
		// 置 failed 本身失败时只记日志，原错误优先返回
		if serr := uc.catalog.UpdateVectorStatus(ctx, fileID, types.VectorStatusFailed); serr != nil {
			uc.logger.Error("failed to mark file as failed",
				zap.String("file_id", fileID),
				zap.Error(serr))
		}
		return err
	}

	if err := uc.catalog.UpdateVectorStatus(ctx, fileID, types.VectorStatusIndexed); err != nil {
		return fmt.Errorf("failed to mark indexed: %w", err)
	}

	return nil
}

func (uc *IndexerUseCase) indexFile(ctx context.Context, rec *FileRecord) error {
	output, cached, err := uc.parseDocument(ctx, rec)
	if err != nil {
		return err
	}
	if len(output.Chunks) == 0 {
		return fmt.Errorf("document produced no chunks: %s", rec.ID)
	}

	texts := make([]string, len(output.Chunks))
	for i, c := range output.Chunks {
		texts[i] = c.Content
	}

	dense, sparse, err := uc.embedder.EmbedChunks(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(dense) != len(output.Chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(dense), len(output.Chunks))
	}

	points := make([]*VectorPoint, len(output.Chunks))
	entries := make([]*ChunkCacheEntry, len(output.Chunks))
	for i, c := range output.Chunks {
		point := &VectorPoint{
			ID:             PointID(rec.ID, c.ChunkID),
			DocumentID:     rec.ID,
			CourseID:       rec.CourseID,
			OrganizationID: rec.OrganizationID,
			ChunkID:        c.ChunkID,
			Content:        c.Content,
			HeadingPath:    c.HeadingPath,
			Chapter:        c.Chapter,
			Page:           c.Page,
			HasCode:        c.HasCode,
			HasTable:       c.HasTable,
			HasImage:       c.HasImage,
			Dense:          dense[i],
		}
		if sparse != nil {
			point.Sparse = sparse[i]
		}
		points[i] = point

		entries[i] = &ChunkCacheEntry{
			DocumentID: rec.ID,
			CourseID:   rec.CourseID,
			ChunkID:    c.ChunkID,
			Content:    c.Content,
			TokenCount: c.TokenCount,
		}
	}

	if err := uc.vectors.Upsert(ctx, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}

	if err := uc.chunks.BatchCreate(ctx, entries); err != nil {
		return fmt.Errorf("failed to store chunk cache: %w", err)
	}

	if err := uc.catalog.UpdateParseResult(ctx, rec.ID, output.ParsedContent, output.MarkdownContent); err != nil {
		return fmt.Errorf("failed to store parse result: %w", err)
	}

	if !cached {
		// 缓存写失败不影响索引结果
		if err := uc.parseCache.Store(rec.StoragePath, output.ParsedContent, output.MarkdownContent); err != nil {
			uc.logger.Warn("failed to store parse cache",
				zap.String("file_id", rec.ID),
				zap.String("storage_path", rec.StoragePath),
				zap.Error(err))
		}
	}

	uc.logger.Info("file indexed",
		zap.String("file_id", rec.ID),
		zap.String("course_id", rec.CourseID),
		zap.Int("chunks", len(points)))

	return nil
}

// parseDocument 解析文档，命中解析缓存时跳过下载与重解析
// 缓存只保存解析文本，分块基于缓存文本重新计算
func (uc *IndexerUseCase) parseDocument(ctx context.Context, rec *FileRecord) (*ParseOutput, bool, error) {
	parsed, markdown, ok, err := uc.parseCache.Load(rec.StoragePath)
	if err != nil {
		uc.logger.Warn("failed to load parse cache",
			zap.String("storage_path", rec.StoragePath),
			zap.Error(err))
		ok = false
	}
	if ok {
		output, err := uc.processor.Process(ctx, []byte(parsed), "txt")
		if err != nil {
			return nil, false, fmt.Errorf("failed to chunk cached content: %w", err)
		}
		output.ParsedContent = parsed
		output.MarkdownContent = markdown
		return output, true, nil
	}

	data, err := uc.blobs.Read(ctx, rec.StoragePath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read file content: %w", err)
	}

	output, err := uc.processor.Process(ctx, data, rec.FileType)
	if err != nil {
		return nil, false, fmt.Errorf("failed to process document: %w", err)
	}

	return output, false, nil
}

// ResetForReindex 将失败的文件重置为待索引
func (uc *IndexerUseCase) ResetForReindex(ctx context.Context, fileID string) error {
	rec, err := uc.catalog.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load file record: %w", err)
	}
	if rec == nil {
		return ErrFileNotFound
	}

	if !rec.VectorStatus.CanTransition(types.VectorStatusPending) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, rec.VectorStatus, types.VectorStatusPending)
	}

	return uc.catalog.UpdateVectorStatus(ctx, fileID, types.VectorStatusPending)
}
