package biz

import "errors"

var (
	// ErrFileNotFound 文件记录不存在
	ErrFileNotFound = errors.New("file record not found")

	// ErrQuotaExceeded 组织存储配额不足（增量已自动回滚）
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrQuotaNotConfigured 组织配额记录缺失，属于初始化错误
	ErrQuotaNotConfigured = errors.New("organization quota not configured")

	// ErrNoSourceVectors 去重来源没有任何向量点
	// 说明 donor 被错误地标记为 indexed，是数据完整性信号
	ErrNoSourceVectors = errors.New("donor document has no source vectors")

	// ErrInvalidStatusTransition 非法的向量状态迁移
	ErrInvalidStatusTransition = errors.New("invalid vector status transition")

	// ErrEmptyUpload 上传内容为空
	ErrEmptyUpload = errors.New("uploaded content is empty")
)
