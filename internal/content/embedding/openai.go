package embedding

import (
	"context"
	"fmt"

	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// embedBatchSize 每次 API 调用的最大文本数
const embedBatchSize = 64

// OpenAIEmbedder 基于 OpenAI 兼容端点的向量化实现
// 稠密向量来自远端模型，稀疏向量在本地生成
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	logger    *logger.Logger
}

// Config OpenAI Embedder 配置
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
}

// NewOpenAIEmbedder 创建 OpenAI Embedder
func NewOpenAIEmbedder(cfg *Config, lgr *logger.Logger) (*OpenAIEmbedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	log := lgr
	if log == nil {
		log = logger.L()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	log.Info("openai embedder created",
		zap.String("model", cfg.Model),
		zap.Int("dimension", cfg.Dimension))

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		logger:    log,
	}, nil
}

// EmbedChunks 批量向量化分块文本
func (e *OpenAIEmbedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, []map[uint32]float32, error) {
	if len(texts) == 0 {
		return nil, nil, nil
	}

	dense := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, nil, err
		}
		dense = append(dense, batch...)
	}

	sparse := make([]map[uint32]float32, len(texts))
	for i, text := range texts {
		sparse[i] = EncodeSparse(text)
	}

	e.logger.Info("chunks embedded",
		zap.Int("count", len(texts)),
		zap.String("model", e.model))

	return dense, sparse, nil
}

// EmbedQuery 向量化查询文本
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, map[uint32]float32, error) {
	batch, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, nil, err
	}
	if len(batch) == 0 {
		return nil, nil, fmt.Errorf("no embedding generated")
	}
	return batch[0], EncodeSparse(text), nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimension,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.logger.Error("failed to create embeddings",
			zap.Error(err),
			zap.Int("text_count", len(texts)))
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Model 返回模型名称
func (e *OpenAIEmbedder) Model() string {
	return e.model
}
