package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint 计算内容指纹（SHA-256 十六进制）
// 相同字节序列永远产生相同指纹，用作去重键
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader 流式计算内容指纹
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PathKey 根据文件绝对路径派生缓存键
// 解析结果缓存以路径摘要作为文件名
func PathKey(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])
}
