package service

import (
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// CourseService 课程级操作 HTTP 服务
type CourseService struct {
	cleanupUC *biz.CleanupUseCase
	logger    *zap.Logger
}

// NewCourseService 创建课程服务
func NewCourseService(cleanupUC *biz.CleanupUseCase, logger *zap.Logger) *CourseService {
	return &CourseService{
		cleanupUC: cleanupUC,
		logger:    logger,
	}
}

// CleanupCourse 级联清理课程的全部衍生资源
// 部分失败不返回错误状态码，调用方必须检查响应里的 errors 列表
func (s *CourseService) CleanupCourse(c *gin.Context) {
	courseID := c.Param("course_id")
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		response.BadRequest(c, "organization_id is required")
		return
	}

	s.logger.Info("course cleanup requested",
		zap.String("organization_id", organizationID),
		zap.String("course_id", courseID))

	result := s.cleanupUC.CleanupCourse(c.Request.Context(), organizationID, courseID)

	response.Success(c, result)
}
