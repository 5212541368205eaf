package hybrid

import (
	"sort"
)

// RRFResult RRF 融合后的结果
type RRFResult struct {
	ID       string
	Score    float32
	RRFScore float64
	Rank     int
}

// SearchResult 搜索结果接口
type SearchResult interface {
	GetID() string
	GetScore() float32
}

// ReciprocalRankFusion RRF 算法实现
// RRF 公式: score = Σ(1 / (k + rank))
// k 是常数，通常为 60（根据论文推荐）
func ReciprocalRankFusion(results [][]SearchResult, k int) []*RRFResult {
	if k <= 0 {
		k = 60 // 默认值
	}

	rrfScores := make(map[string]*RRFResult)

	for _, resultSet := range results {
		for rank, result := range resultSet {
			id := result.GetID()

			if _, exists := rrfScores[id]; !exists {
				rrfScores[id] = &RRFResult{
					ID:       id,
					Score:    result.GetScore(),
					RRFScore: 0,
				}
			}

			// rank 从 0 开始，rank+1 才是真正的排名
			rrfScores[id].RRFScore += 1.0 / float64(k+rank+1)
		}
	}

	fusedResults := make([]*RRFResult, 0, len(rrfScores))
	for _, result := range rrfScores {
		fusedResults = append(fusedResults, result)
	}

	sort.Slice(fusedResults, func(i, j int) bool {
		return fusedResults[i].RRFScore > fusedResults[j].RRFScore
	})

	for i := range fusedResults {
		fusedResults[i].Rank = i + 1
	}

	return fusedResults
}

// DenseSearchResult 稠密向量搜索结果适配器
type DenseSearchResult struct {
	ID    string
	Score float32
}

func (r *DenseSearchResult) GetID() string {
	return r.ID
}

func (r *DenseSearchResult) GetScore() float32 {
	return r.Score
}

// SparseSearchResult 稀疏向量搜索结果适配器
type SparseSearchResult struct {
	ID    string
	Score float32
}

func (r *SparseSearchResult) GetID() string {
	return r.ID
}

func (r *SparseSearchResult) GetScore() float32 {
	return r.Score
}
