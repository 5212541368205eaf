package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
)

// localBlobStore 本地文件系统存储
// 目录布局：{root}/{organization_id}/{course_id}/{时间戳}-{文件名}
type localBlobStore struct {
	root string
}

// NewLocalBlobStore 创建本地文件存储，root 会被规范为绝对路径
func NewLocalBlobStore(root string) (biz.BlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &localBlobStore{root: abs}, nil
}

// Save 写入文件并返回绝对存储路径
func (s *localBlobStore) Save(ctx context.Context, organizationID, courseID, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.root, organizationID, courseID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create course directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeFilename(filename))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// Read 读取文件内容
func (s *localBlobStore) Read(ctx context.Context, storagePath string) ([]byte, error) {
	data, err := os.ReadFile(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete 删除单个文件，文件不存在视为成功
func (s *localBlobStore) Delete(ctx context.Context, storagePath string) error {
	if err := os.Remove(storagePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeleteCourseDir 递归删除课程目录
// 先校验解析后的路径严格位于存储根目录之内，防止畸形 ID 造成路径穿越
func (s *localBlobStore) DeleteCourseDir(ctx context.Context, organizationID, courseID string) error {
	dir, err := filepath.Abs(filepath.Join(s.root, organizationID, courseID))
	if err != nil {
		return fmt.Errorf("failed to resolve course directory: %w", err)
	}

	if !strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		return fmt.Errorf("course directory escapes storage root: %s", dir)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove course directory: %w", err)
	}
	return nil
}

// sanitizeFilename 去掉路径分隔符等危险字符，只保留文件名本体
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, "..", "")
	replacer := strings.NewReplacer("/", "_", "\\", "_", "\x00", "")
	name = replacer.Replace(name)
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
