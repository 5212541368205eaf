package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/content/hasher"
)

// parseCacheEntry 解析缓存的落盘格式
type parseCacheEntry struct {
	StoragePath     string `json:"storage_path"`
	ParsedContent   string `json:"parsed_content"`
	MarkdownContent string `json:"markdown_content"`
}

// fsParseCache 本地文件系统解析结果缓存
// 缓存键由存储路径的摘要确定性派生，同一路径总是落到同一个缓存文件
type fsParseCache struct {
	dir string
}

// NewFSParseCache 创建解析结果缓存
func NewFSParseCache(dir string) (biz.ParseCache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parse cache directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parse cache directory: %w", err)
	}
	return &fsParseCache{dir: abs}, nil
}

func (c *fsParseCache) cacheFile(storagePath string) string {
	return filepath.Join(c.dir, hasher.PathKey(storagePath)+".json")
}

// Store 写入解析缓存
func (c *fsParseCache) Store(storagePath, parsedContent, markdownContent string) error {
	entry := parseCacheEntry{
		StoragePath:     storagePath,
		ParsedContent:   parsedContent,
		MarkdownContent: markdownContent,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal parse cache entry: %w", err)
	}

	// 先写临时文件再改名，读取方不会看到半截内容
	path := c.cacheFile(storagePath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write parse cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize parse cache entry: %w", err)
	}
	return nil
}

// Load 读取解析缓存，未命中时 ok 为 false 且不报错
func (c *fsParseCache) Load(storagePath string) (string, string, bool, error) {
	data, err := os.ReadFile(c.cacheFile(storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("failed to read parse cache entry: %w", err)
	}

	var entry parseCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", "", false, fmt.Errorf("failed to unmarshal parse cache entry: %w", err)
	}
	return entry.ParsedContent, entry.MarkdownContent, true, nil
}

// Delete 删除解析缓存，缓存不存在不算错误
func (c *fsParseCache) Delete(storagePath string) error {
	if err := os.Remove(c.cacheFile(storagePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete parse cache entry: %w", err)
	}
	return nil
}
