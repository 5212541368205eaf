package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/course-content-backend/internal/conf"
	"github.com/lk2023060901/course-content-backend/internal/content/service"
	"go.uber.org/zap"
)

type HTTPServer struct {
	server         *http.Server
	logger         *zap.Logger
	contentService *service.ContentService
	courseService  *service.CourseService
}

func NewHTTPServer(
	config *conf.Config,
	logger *zap.Logger,
	contentService *service.ContentService,
	courseService *service.CourseService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		courses := api.Group("/courses")
		{
			courses.POST("/:course_id/files", contentService.UploadFile)
			courses.POST("/:course_id/files/batch", contentService.UploadBatch)
			courses.GET("/:course_id/files", contentService.ListCourseFiles)
			courses.GET("/:course_id/search", contentService.SearchCourse)
			courses.DELETE("/:course_id", courseService.CleanupCourse)
		}

		files := api.Group("/files")
		{
			files.GET("/:file_id", contentService.GetFile)
			files.DELETE("/:file_id", contentService.DeleteFile)
			files.POST("/:file_id/reindex", contentService.ReindexFile)
		}
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger:         logger,
		contentService: contentService,
		courseService:  courseService,
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
