package types

// VectorStatus 文件记录的向量生命周期状态
type VectorStatus string

const (
	VectorStatusPending  VectorStatus = "pending"
	VectorStatusIndexing VectorStatus = "indexing"
	VectorStatusIndexed  VectorStatus = "indexed"
	VectorStatusFailed   VectorStatus = "failed"
)

// Valid 判断是否为已知状态
func (s VectorStatus) Valid() bool {
	switch s {
	case VectorStatusPending, VectorStatusIndexing, VectorStatusIndexed, VectorStatusFailed:
		return true
	}
	return false
}

// CanTransition 判断状态迁移是否合法
// pending -> indexing -> indexed；pending|indexing -> failed；failed -> pending（重试）
func (s VectorStatus) CanTransition(to VectorStatus) bool {
	switch s {
	case VectorStatusPending:
		return to == VectorStatusIndexing || to == VectorStatusFailed
	case VectorStatusIndexing:
		return to == VectorStatusIndexed || to == VectorStatusFailed
	case VectorStatusFailed:
		return to == VectorStatusPending
	}
	return false
}

func (s VectorStatus) String() string {
	return string(s)
}
