package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	pkgredis "github.com/lk2023060901/course-content-backend/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	IndexQueue  = "queue:content:index"
	IndexingSet = "set:content:indexing"

	maxRetries = 3
)

// IndexTask 索引任务
type IndexTask struct {
	FileID     string `json:"file_id"`
	RetryCount int    `json:"retry_count"`
}

// Worker 索引任务 Worker
type Worker struct {
	redis       *pkgredis.Client
	indexer     *biz.IndexerUseCase
	logger      *zap.Logger
	workerCount int
	wg          sync.WaitGroup
	stopCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewWorker 创建 Worker
func NewWorker(
	redis *pkgredis.Client,
	indexer *biz.IndexerUseCase,
	logger *zap.Logger,
	workerCount int,
) *Worker {
	return &Worker{
		redis:       redis,
		indexer:     indexer,
		logger:      logger,
		workerCount: workerCount,
		stopCh:      make(chan struct{}),
		running:     false,
	}
}

// Start 启动 Worker
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.running = true
	w.logger.Info("starting index workers", zap.Int("worker_count", w.workerCount))

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}

	return nil
}

// Stop 停止 Worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Info("stopping index workers")
	close(w.stopCh)
	w.wg.Wait()
	w.running = false
	w.logger.Info("all workers stopped")
}

// EnqueueFile 将文件加入索引队列
func (w *Worker) EnqueueFile(ctx context.Context, fileID string) error {
	task := &IndexTask{
		FileID:     fileID,
		RetryCount: 0,
	}

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if _, err := w.redis.LPush(ctx, IndexQueue, string(taskJSON)); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	w.logger.Info("file enqueued for indexing", zap.String("file_id", fileID))
	return nil
}

// processLoop 处理循环
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With(zap.Int("worker_id", workerID))
	logger.Info("worker started")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Info("worker stopping")
			return
		case <-ctx.Done():
			logger.Info("context cancelled, worker stopping")
			return
		case <-ticker.C:
			taskJSON, err := w.redis.RPop(ctx, IndexQueue)
			if err != nil || taskJSON == "" {
				continue
			}

			var task IndexTask
			if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
				logger.Error("failed to unmarshal task", zap.Error(err))
				continue
			}

			w.processTask(ctx, &task, logger)
		}
	}
}

// processTask 处理单个任务
func (w *Worker) processTask(ctx context.Context, task *IndexTask, logger *zap.Logger) {
	logger = logger.With(zap.String("file_id", task.FileID))
	logger.Info("processing index task")

	if _, err := w.redis.SAdd(ctx, IndexingSet, task.FileID); err != nil {
		logger.Error("failed to mark file as indexing", zap.Error(err))
	}

	err := w.indexer.IndexFile(ctx, task.FileID)

	_, _ = w.redis.SRem(ctx, IndexingSet, task.FileID)

	if err == nil {
		logger.Info("file indexed successfully")
		return
	}

	logger.Error("failed to index file",
		zap.Error(err),
		zap.Int("retry_count", task.RetryCount))

	// 记录已不存在或状态不允许时重试无意义
	if errors.Is(err, biz.ErrFileNotFound) || errors.Is(err, biz.ErrInvalidStatusTransition) {
		return
	}

	if task.RetryCount < maxRetries {
		// 失败的记录要先重置为待索引才能再次进入状态机
		if rerr := w.indexer.ResetForReindex(ctx, task.FileID); rerr != nil {
			logger.Error("failed to reset file for retry", zap.Error(rerr))
			return
		}
		task.RetryCount++
		taskJSON, _ := json.Marshal(task)
		_, _ = w.redis.LPush(ctx, IndexQueue, string(taskJSON))
		logger.Info("file re-enqueued for retry", zap.Int("retry_count", task.RetryCount))
	} else {
		logger.Error("file indexing failed after max retries")
	}
}

// GetQueueSize 获取队列大小
func (w *Worker) GetQueueSize(ctx context.Context) (int64, error) {
	return w.redis.LLen(ctx, IndexQueue)
}

// GetIndexingCount 获取索引中的文件数量
func (w *Worker) GetIndexingCount(ctx context.Context) (int64, error) {
	return w.redis.SCard(ctx, IndexingSet)
}
