package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/queue"
	apperrors "github.com/lk2023060901/course-content-backend/internal/pkg/errors"
	"github.com/lk2023060901/course-content-backend/internal/pkg/response"
	"github.com/lk2023060901/course-content-backend/internal/pkg/workerpool"
	"go.uber.org/zap"
)

// ContentService 课程内容 HTTP 服务
type ContentService struct {
	contentUC    *biz.ContentUseCase
	indexer      *biz.IndexerUseCase
	catalog      biz.CatalogStore
	quota        *biz.QuotaLedger
	worker       *queue.Worker
	uploadPool   *workerpool.Pool
	defaultQuota int64
	logger       *zap.Logger
}

// NewContentService 创建课程内容服务
func NewContentService(
	contentUC *biz.ContentUseCase,
	indexer *biz.IndexerUseCase,
	catalog biz.CatalogStore,
	quota *biz.QuotaLedger,
	worker *queue.Worker,
	uploadPool *workerpool.Pool,
	defaultQuota int64,
	logger *zap.Logger,
) *ContentService {
	return &ContentService{
		contentUC:    contentUC,
		indexer:      indexer,
		catalog:      catalog,
		quota:        quota,
		worker:       worker,
		uploadPool:   uploadPool,
		defaultQuota: defaultQuota,
		logger:       logger,
	}
}

// UploadFile 单文件上传
func (s *ContentService) UploadFile(c *gin.Context) {
	courseID := c.Param("course_id")
	organizationID := c.PostForm("organization_id")
	if organizationID == "" {
		response.BadRequest(c, "organization_id is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "invalid file or field name is not 'file'")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(c, "failed to read file")
		return
	}

	s.logger.Info("single file upload",
		zap.String("course_id", courseID),
		zap.String("filename", header.Filename),
		zap.Int("file_size", len(data)))

	result, err := s.uploadOne(c, data, header, organizationID, courseID)
	if err != nil {
		s.handleUploadError(c, err)
		return
	}

	response.Success(c, map[string]interface{}{
		"result":  result,
		"message": fmt.Sprintf("File '%s' uploaded successfully", header.Filename),
	})
}

// UploadBatch 批量上传，通过 worker pool 并发处理
func (s *ContentService) UploadBatch(c *gin.Context) {
	courseID := c.Param("course_id")
	organizationID := c.PostForm("organization_id")
	if organizationID == "" {
		response.BadRequest(c, "organization_id is required")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "invalid multipart form")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.BadRequest(c, "no files provided")
		return
	}

	s.logger.Info("batch file upload",
		zap.String("course_id", courseID),
		zap.Int("file_count", len(files)))

	type batchItem struct {
		Filename string            `json:"filename"`
		Result   *biz.UploadResult `json:"result,omitempty"`
		Error    string            `json:"error,omitempty"`
	}

	resultChs := make([]<-chan workerpool.TaskResult, len(files))
	for i, header := range files {
		header := header
		resultChs[i] = s.uploadPool.SubmitWithResult(func() (interface{}, error) {
			f, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
			return s.uploadOne(c, data, header, organizationID, courseID)
		})
	}

	items := make([]batchItem, len(files))
	succeeded := 0
	for i, ch := range resultChs {
		items[i].Filename = files[i].Filename
		taskResult := <-ch
		if taskResult.Error != nil {
			items[i].Error = taskResult.Error.Error()
			continue
		}
		items[i].Result = taskResult.Data.(*biz.UploadResult)
		succeeded++
	}

	response.Success(c, map[string]interface{}{
		"items":     items,
		"total":     len(files),
		"succeeded": succeeded,
		"failed":    len(files) - succeeded,
	})
}

// uploadOne 处理单个文件并在需要时入队索引
func (s *ContentService) uploadOne(c *gin.Context, data []byte, header *multipart.FileHeader, organizationID, courseID string) (*biz.UploadResult, error) {
	meta := &biz.UploadMeta{
		Filename:       header.Filename,
		OrganizationID: organizationID,
		CourseID:       courseID,
		MimeType:       header.Header.Get("Content-Type"),
		UserID:         c.GetString("user_id"),
	}

	// 首次见到的组织先按默认上限建配额记录，已存在时不会覆盖
	if err := s.quota.Ensure(c.Request.Context(), organizationID, s.defaultQuota); err != nil {
		return nil, err
	}

	result, err := s.contentUC.HandleUpload(c.Request.Context(), data, meta)
	if err != nil {
		return nil, err
	}

	// 去重路径直接继承向量，只有普通路径需要排队索引
	if !result.Deduplicated {
		if err := s.worker.EnqueueFile(c.Request.Context(), result.FileID); err != nil {
			s.logger.Error("failed to enqueue file for indexing",
				zap.String("file_id", result.FileID),
				zap.Error(err))
		}
	}

	return result, nil
}

// GetFile 获取文件记录
func (s *ContentService) GetFile(c *gin.Context) {
	fileID := c.Param("file_id")

	rec, err := s.catalog.GetByID(c.Request.Context(), fileID)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if rec == nil {
		response.ErrorWithCode(c, apperrors.ErrContentNotFound)
		return
	}

	response.Success(c, rec)
}

// ListCourseFiles 列出课程下的文件
func (s *ContentService) ListCourseFiles(c *gin.Context) {
	courseID := c.Param("course_id")
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		response.BadRequest(c, "organization_id is required")
		return
	}

	records, err := s.catalog.ListByCourse(c.Request.Context(), organizationID, courseID)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, map[string]interface{}{
		"items": records,
		"total": len(records),
	})
}

// DeleteFile 删除文件引用
func (s *ContentService) DeleteFile(c *gin.Context) {
	fileID := c.Param("file_id")

	result, err := s.contentUC.HandleDelete(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, biz.ErrFileNotFound) {
			response.ErrorWithCode(c, apperrors.ErrContentNotFound)
			return
		}
		s.logger.Error("failed to delete file", zap.String("file_id", fileID), zap.Error(err))
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ReindexFile 重置失败的文件并重新排队索引
func (s *ContentService) ReindexFile(c *gin.Context) {
	fileID := c.Param("file_id")

	if err := s.indexer.ResetForReindex(c.Request.Context(), fileID); err != nil {
		switch {
		case errors.Is(err, biz.ErrFileNotFound):
			response.ErrorWithCode(c, apperrors.ErrContentNotFound)
		case errors.Is(err, biz.ErrInvalidStatusTransition):
			response.ErrorWithCode(c, apperrors.ErrContentInvalidParams, err.Error())
		default:
			response.InternalError(c, err.Error())
		}
		return
	}

	if err := s.worker.EnqueueFile(c.Request.Context(), fileID); err != nil {
		s.logger.Error("failed to enqueue file for reindexing",
			zap.String("file_id", fileID),
			zap.Error(err))
		response.InternalError(c, "failed to enqueue file")
		return
	}

	response.Success(c, map[string]interface{}{
		"file_id": fileID,
		"message": "file queued for reindexing",
	})
}

// SearchCourse 课程内混合检索
func (s *ContentService) SearchCourse(c *gin.Context) {
	courseID := c.Param("course_id")
	query := c.Query("q")
	if query == "" {
		response.BadRequest(c, "query parameter 'q' is required")
		return
	}

	topK := 10
	if v := c.Query("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			response.BadRequest(c, "top_k must be in 1..100")
			return
		}
		topK = n
	}

	hits, err := s.contentUC.SearchCourse(c.Request.Context(), courseID, query, topK)
	if err != nil {
		s.logger.Error("search failed", zap.String("course_id", courseID), zap.Error(err))
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, map[string]interface{}{
		"hits":  hits,
		"total": len(hits),
	})
}

// handleUploadError 上传错误到响应码的映射
func (s *ContentService) handleUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrEmptyUpload):
		response.BadRequest(c, "uploaded file is empty")
	case errors.Is(err, biz.ErrQuotaExceeded):
		response.ErrorWithCode(c, apperrors.ErrContentQuotaExceeded)
	case errors.Is(err, biz.ErrQuotaNotConfigured):
		response.ErrorWithCode(c, apperrors.ErrContentInvalidParams, "organization quota is not configured")
	default:
		s.logger.Error("failed to upload file", zap.Error(err))
		response.InternalError(c, err.Error())
	}
}
