package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// sparseBuckets 稀疏向量的哈希桶数量
const sparseBuckets = 1 << 20

// EncodeSparse 将文本编码为哈希词频稀疏向量
// 词条经 FNV 哈希落桶，权重为对数词频并做 L2 归一化。
// 同一文本永远得到同一向量，用于关键词召回路径
func EncodeSparse(text string) map[uint32]float32 {
	counts := make(map[uint32]float32)
	for _, term := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		counts[h.Sum32()%sparseBuckets]++
	}
	if len(counts) == 0 {
		return map[uint32]float32{}
	}

	var norm float64
	for bucket, tf := range counts {
		w := float32(1 + math.Log(float64(tf)))
		counts[bucket] = w
		norm += float64(w) * float64(w)
	}
	norm = math.Sqrt(norm)

	for bucket, w := range counts {
		counts[bucket] = w / float32(norm)
	}
	return counts
}

// tokenize 按非字母数字切词，英文小写，CJK 逐字成词
func tokenize(text string) []string {
	var (
		terms []string
		sb    strings.Builder
	)
	flush := func() {
		if sb.Len() > 0 {
			terms = append(terms, sb.String())
			sb.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			terms = append(terms, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return terms
}
