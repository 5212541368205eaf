package embedding

import (
	"math"
	"testing"
)

func TestEncodeSparseDeterministic(t *testing.T) {
	a := EncodeSparse("reference counting keeps shared files alive")
	b := EncodeSparse("reference counting keeps shared files alive")

	if len(a) != len(b) {
		t.Fatalf("Expected identical vectors, got sizes %d and %d", len(a), len(b))
	}
	for bucket, w := range a {
		if b[bucket] != w {
			t.Errorf("Expected weight %f at bucket %d, got %f", w, bucket, b[bucket])
		}
	}
}

func TestEncodeSparseNormalized(t *testing.T) {
	vec := EncodeSparse("one two three two three three")
	var norm float64
	for _, w := range vec {
		norm += float64(w) * float64(w)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("Expected unit norm, got %f", norm)
	}
}

func TestEncodeSparseEmptyText(t *testing.T) {
	vec := EncodeSparse("   \t\n  ")
	if len(vec) != 0 {
		t.Errorf("Expected empty vector for blank text, got %d entries", len(vec))
	}
}

func TestEncodeSparseRepeatedTermWeighsMore(t *testing.T) {
	once := EncodeSparse("milvus")
	repeated := EncodeSparse("milvus milvus milvus")

	if len(once) != 1 || len(repeated) != 1 {
		t.Fatalf("Expected single-bucket vectors, got %d and %d", len(once), len(repeated))
	}
	// 单词条向量归一化后权重都是 1，桶必须一致
	for bucket := range once {
		if _, ok := repeated[bucket]; !ok {
			t.Error("Expected same bucket for same term")
		}
	}
}

func TestTokenizeMixedScript(t *testing.T) {
	terms := tokenize("Go语言 API v2")
	want := []string{"go", "语", "言", "api", "v2"}
	if len(terms) != len(want) {
		t.Fatalf("Expected %d terms, got %v", len(want), terms)
	}
	for i, term := range want {
		if terms[i] != term {
			t.Errorf("Expected term %q at %d, got %q", term, i, terms[i])
		}
	}
}
