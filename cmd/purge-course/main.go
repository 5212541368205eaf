package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/conf"
	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/data"
	"github.com/lk2023060901/course-content-backend/internal/pkg/database"
	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"github.com/lk2023060901/course-content-backend/internal/pkg/milvus"
	"github.com/lk2023060901/course-content-backend/internal/pkg/minio"
	"github.com/lk2023060901/course-content-backend/internal/pkg/redis"
)

var (
	configFile     = flag.String("config", "config.yaml", "config file path")
	organizationID = flag.String("org", "", "organization id")
	courseID       = flag.String("course", "", "course id to purge")
)

func main() {
	flag.Parse()

	if *organizationID == "" || *courseID == "" {
		fmt.Println("usage: purge-course -org <organization_id> -course <course_id> [-config config.yaml]")
		os.Exit(1)
	}

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logCfg := logger.DefaultConfig()
	lgr, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lgr.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("==========================================")
	fmt.Printf("清理课程资源: %s\n", *courseID)
	fmt.Println("==========================================")

	// 1. 连接 PostgreSQL
	fmt.Println("\n1. 连接 PostgreSQL...")
	db, err := database.New(&database.Config{
		Host:     config.Database.Host,
		Port:     config.Database.Port,
		User:     config.Database.User,
		Password: config.Database.Password,
		DBName:   config.Database.DBName,
		SSLMode:  config.Database.SSLMode,
	}, lgr)
	if err != nil {
		log.Fatalf("连接 PostgreSQL 失败: %v", err)
	}
	defer db.Close()
	fmt.Println("   ✓ PostgreSQL 连接成功")

	// 2. 连接 Redis
	fmt.Println("\n2. 连接 Redis...")
	redisClient, err := redis.New(&redis.Config{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}, lgr)
	if err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}
	defer redisClient.Close()
	fmt.Println("   ✓ Redis 连接成功")

	// 3. 连接 Milvus
	fmt.Println("\n3. 连接 Milvus...")
	milvusClient, err := milvus.New(ctx, &milvus.Config{
		Address: fmt.Sprintf("%s:%d", config.Milvus.Host, config.Milvus.Port),
	}, lgr)
	if err != nil {
		log.Fatalf("连接 Milvus 失败: %v", err)
	}
	defer milvusClient.Close(ctx)
	fmt.Println("   ✓ Milvus 连接成功")

	// 4. 初始化存储
	fmt.Println("\n4. 初始化文件存储...")
	blobStore, err := newBlobStore(ctx, config, lgr)
	if err != nil {
		log.Fatalf("初始化文件存储失败: %v", err)
	}
	parseCache, err := data.NewFSParseCache(config.Storage.ParseCacheDir)
	if err != nil {
		log.Fatalf("初始化解析缓存失败: %v", err)
	}
	fmt.Println("   ✓ 文件存储初始化成功")

	catalogStore := data.NewCatalogStore(db)
	chunkStore := data.NewChunkCacheStore(db)
	cache := data.NewRedisCache(redisClient)
	vectorIndex := data.NewVectorIndex(milvusClient, config.Milvus.Collection, config.Milvus.Dim)

	cleanupUC := biz.NewCleanupUseCase(catalogStore, vectorIndex, blobStore, cache, chunkStore, parseCache, lgr)

	// 5. 执行清理
	fmt.Println("\n5. 执行课程清理...")
	result := cleanupUC.CleanupCourse(ctx, *organizationID, *courseID)

	fmt.Println("\n==========================================")
	if result.Success {
		fmt.Println("清理完成！")
	} else {
		fmt.Println("清理部分完成（存在失败步骤）")
	}
	fmt.Println("==========================================")
	fmt.Printf("\n清理汇总:\n")
	fmt.Printf("  - Milvus 向量: %d\n", result.VectorsDeleted)
	fmt.Printf("  - Redis 缓存键: %d\n", result.CacheKeysDeleted)
	fmt.Printf("  - PostgreSQL 分块: %d\n", result.ChunkRowsDeleted)
	fmt.Printf("  - 课程文件目录已删除: %v\n", result.BlobDirDeleted)
	fmt.Printf("  - 解析缓存已删除: %d\n", result.ParseCacheDeleted)

	if len(result.Errors) > 0 {
		fmt.Printf("\n失败步骤:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		os.Exit(1)
	}
}

func newBlobStore(ctx context.Context, config *conf.Config, lgr *logger.Logger) (biz.BlobStore, error) {
	switch config.Storage.Backend {
	case "", "local":
		return data.NewLocalBlobStore(config.Storage.Root)
	case "minio":
		minioClient, err := minio.NewClient(&minio.Config{
			Endpoint:        config.MinIO.Endpoint,
			AccessKeyID:     config.MinIO.AccessKey,
			SecretAccessKey: config.MinIO.SecretKey,
			UseSSL:          config.MinIO.UseSSL,
		}, lgr.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return data.NewMinioBlobStore(ctx, minioClient, config.MinIO.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}
}
