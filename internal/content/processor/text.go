package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/pkoukk/tiktoken-go"
)

// TextProcessor 纯文本/Markdown 直通处理器
// 不做格式转换，按 token 数切块并标注分块元数据。
// PDF 等二进制格式由外部解析服务处理，不在此实现
type TextProcessor struct {
	encoding *tiktoken.Tiktoken
	size     int
	overlap  int
}

// TextProcessorConfig 文本处理器配置
type TextProcessorConfig struct {
	Size     int    // 每块的 token 数量
	Overlap  int    // 重叠的 token 数量
	Encoding string // 编码方式（默认 cl100k_base）
}

// NewTextProcessor 创建文本处理器
func NewTextProcessor(cfg *TextProcessorConfig) (*TextProcessor, error) {
	if cfg == nil {
		cfg = &TextProcessorConfig{
			Size:     512,
			Overlap:  50,
			Encoding: "cl100k_base",
		}
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size)")
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "cl100k_base"
	}

	encoding, err := tiktoken.GetEncoding(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}

	return &TextProcessor{
		encoding: encoding,
		size:     cfg.Size,
		overlap:  cfg.Overlap,
	}, nil
}

// Supports 是否支持该文件类型
func (p *TextProcessor) Supports(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "txt", "md", "markdown":
		return true
	}
	return false
}

// Process 解析文本并分块
func (p *TextProcessor) Process(ctx context.Context, data []byte, fileType string) (*biz.ParseOutput, error) {
	if !p.Supports(fileType) {
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document is empty")
	}

	tokens := p.encoding.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("document produced no tokens")
	}

	var chunks []*biz.ParsedChunk
	index := 0
	start := 0
	for start < len(tokens) {
		end := start + p.size
		if end > len(tokens) {
			end = len(tokens)
		}

		chunkText := p.encoding.Decode(tokens[start:end])
		chunks = append(chunks, &biz.ParsedChunk{
			ChunkID:     fmt.Sprintf("chunk-%04d", index),
			Content:     chunkText,
			HeadingPath: leadingHeading(chunkText),
			TokenCount:  end - start,
			HasCode:     strings.Contains(chunkText, "```"),
			HasTable:    hasTableRow(chunkText),
			HasImage:    strings.Contains(chunkText, "!["),
		})

		index++
		start += p.size - p.overlap
	}

	markdown := text
	if strings.ToLower(fileType) == "txt" {
		markdown = ""
	}

	return &biz.ParseOutput{
		ParsedContent:   text,
		MarkdownContent: markdown,
		Chunks:          chunks,
	}, nil
}

// leadingHeading 取分块内第一个 Markdown 标题作为标题路径
func leadingHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}

// hasTableRow 检测 Markdown 表格行
func hasTableRow(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") && strings.Count(trimmed, "|") >= 2 {
			return true
		}
	}
	return false
}
