package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/conf"
	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/data"
	"github.com/lk2023060901/course-content-backend/internal/content/embedding"
	"github.com/lk2023060901/course-content-backend/internal/content/models"
	"github.com/lk2023060901/course-content-backend/internal/content/processor"
	"github.com/lk2023060901/course-content-backend/internal/content/queue"
	"github.com/lk2023060901/course-content-backend/internal/content/service"
	"github.com/lk2023060901/course-content-backend/internal/pkg/database"
	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"github.com/lk2023060901/course-content-backend/internal/pkg/milvus"
	"github.com/lk2023060901/course-content-backend/internal/pkg/minio"
	"github.com/lk2023060901/course-content-backend/internal/pkg/redis"
	"github.com/lk2023060901/course-content-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/course-content-backend/internal/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	ctx := context.Background()

	// Initialize PostgreSQL
	db, err := database.New(&database.Config{
		Host:     config.Database.Host,
		Port:     config.Database.Port,
		User:     config.Database.User,
		Password: config.Database.Password,
		DBName:   config.Database.DBName,
		SSLMode:  config.Database.SSLMode,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := models.MigrateWithLog(ctx, db, log.Logger); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize Redis
	redisClient, err := redis.New(&redis.Config{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize Milvus and the vector index
	milvusClient, err := milvus.New(ctx, &milvus.Config{
		Address: fmt.Sprintf("%s:%d", config.Milvus.Host, config.Milvus.Port),
	}, log)
	if err != nil {
		log.Fatal("failed to connect to milvus", zap.Error(err))
	}
	defer milvusClient.Close(ctx)

	vectorIndex := data.NewVectorIndex(milvusClient, config.Milvus.Collection, config.Milvus.Dim)
	if err := vectorIndex.EnsureCollection(ctx); err != nil {
		log.Fatal("failed to ensure vector collection", zap.Error(err))
	}

	// Initialize blob storage (local or minio)
	blobStore, err := newBlobStore(ctx, config, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}

	// Initialize parse result cache
	parseCache, err := data.NewFSParseCache(config.Storage.ParseCacheDir)
	if err != nil {
		log.Fatal("failed to initialize parse cache", zap.Error(err))
	}

	// Initialize embedder and document processor
	embedder, err := embedding.NewOpenAIEmbedder(&embedding.Config{
		APIKey:    config.Embedding.APIKey,
		BaseURL:   config.Embedding.BaseURL,
		Model:     config.Embedding.Model,
		Dimension: config.Embedding.Dim,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize embedder", zap.Error(err))
	}

	textProcessor, err := processor.NewTextProcessor(nil)
	if err != nil {
		log.Fatal("failed to initialize document processor", zap.Error(err))
	}

	// Initialize stores and use cases
	catalogStore := data.NewCatalogStore(db)
	quotaStore := data.NewQuotaStore(db)
	chunkStore := data.NewChunkCacheStore(db)
	cache := data.NewRedisCache(redisClient)

	quotaLedger := biz.NewQuotaLedger(quotaStore, log)
	contentUseCase := biz.NewContentUseCase(catalogStore, vectorIndex, blobStore, quotaLedger, embedder, log)
	indexerUseCase := biz.NewIndexerUseCase(catalogStore, vectorIndex, blobStore, chunkStore, parseCache, textProcessor, embedder, log)
	cleanupUseCase := biz.NewCleanupUseCase(catalogStore, vectorIndex, blobStore, cache, chunkStore, parseCache, log)

	// Initialize index worker
	indexWorker := queue.NewWorker(redisClient, indexerUseCase, log.Logger, config.Worker.Workers)
	if err := indexWorker.Start(ctx); err != nil {
		log.Fatal("failed to start index worker", zap.Error(err))
	}
	defer indexWorker.Stop()

	// Initialize upload pool for batch uploads
	uploadPool, err := workerpool.New(&workerpool.Config{
		Workers:   config.Worker.Workers,
		QueueSize: config.Worker.QueueSize,
	}, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize upload pool", zap.Error(err))
	}
	defer uploadPool.Shutdown()

	// Initialize services
	contentService := service.NewContentService(
		contentUseCase,
		indexerUseCase,
		catalogStore,
		quotaLedger,
		indexWorker,
		uploadPool,
		config.Quota.DefaultLimit,
		log.Logger,
	)
	courseService := service.NewCourseService(cleanupUseCase, log.Logger)

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(config, log.Logger, contentService, courseService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// newBlobStore 按配置选择本地磁盘或 MinIO 作为原始文件存储
func newBlobStore(ctx context.Context, config *conf.Config, log *zap.Logger) (biz.BlobStore, error) {
	switch config.Storage.Backend {
	case "", "local":
		return data.NewLocalBlobStore(config.Storage.Root)
	case "minio":
		minioClient, err := minio.NewClient(&minio.Config{
			Endpoint:        config.MinIO.Endpoint,
			AccessKeyID:     config.MinIO.AccessKey,
			SecretAccessKey: config.MinIO.SecretKey,
			UseSSL:          config.MinIO.UseSSL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return data.NewMinioBlobStore(ctx, minioClient, config.MinIO.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}
}
