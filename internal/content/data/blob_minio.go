package data

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	pkgminio "github.com/lk2023060901/course-content-backend/internal/pkg/minio"
)

// minioBlobStore 基于 MinIO 的对象存储
// 对象键布局与本地存储一致：{organization_id}/{course_id}/{时间戳}-{文件名}
type minioBlobStore struct {
	client *pkgminio.Client
	bucket string
}

// NewMinioBlobStore 创建 MinIO 文件存储，bucket 不存在时自动创建
func NewMinioBlobStore(ctx context.Context, client *pkgminio.Client, bucket string) (biz.BlobStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, pkgminio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &minioBlobStore{client: client, bucket: bucket}, nil
}

// Save 上传对象并返回对象键
func (s *minioBlobStore) Save(ctx context.Context, organizationID, courseID, filename string, data []byte) (string, error) {
	key := path.Join(organizationID, courseID,
		fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeFilename(filename)))

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		pkgminio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return key, nil
}

// Read 下载对象内容
func (s *minioBlobStore) Read(ctx context.Context, storagePath string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, storagePath, pkgminio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Delete 删除单个对象，对象不存在视为成功
func (s *minioBlobStore) Delete(ctx context.Context, storagePath string) error {
	err := s.client.RemoveObject(ctx, s.bucket, storagePath, pkgminio.RemoveObjectOptions{})
	if err != nil && !pkgminio.IsNotFound(err) {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// DeleteCourseDir 删除课程前缀下的全部对象
func (s *minioBlobStore) DeleteCourseDir(ctx context.Context, organizationID, courseID string) error {
	if strings.Contains(organizationID, "..") || strings.Contains(courseID, "..") ||
		organizationID == "" || courseID == "" {
		return fmt.Errorf("invalid course path segments: %q/%q", organizationID, courseID)
	}

	prefix := organizationID + "/" + courseID + "/"
	if _, err := s.client.RemoveObjectsWithPrefix(ctx, s.bucket, prefix); err != nil {
		return fmt.Errorf("failed to remove course objects: %w", err)
	}
	return nil
}
