package data

import (
	"testing"
)

func TestToSparseEmbeddingRoundTrip(t *testing.T) {
	vec := map[uint32]float32{42: 0.5, 7: 0.25, 1048575: 0.125}

	se, err := toSparseEmbedding(vec)
	if err != nil {
		t.Fatalf("toSparseEmbedding failed: %v", err)
	}
	if se.Len() != len(vec) {
		t.Fatalf("Expected %d entries, got %d", len(vec), se.Len())
	}

	got := fromSparseEmbedding(se)
	if len(got) != len(vec) {
		t.Fatalf("Expected %d entries after round trip, got %d", len(vec), len(got))
	}
	for pos, want := range vec {
		if got[pos] != want {
			t.Errorf("Expected weight %f at position %d, got %f", want, pos, got[pos])
		}
	}
}

func TestToSparseEmbeddingEmptyUsesPlaceholder(t *testing.T) {
	// 空稀疏向量不能产生零条目的行，否则整批写入被拒绝
	for _, vec := range []map[uint32]float32{nil, {}} {
		se, err := toSparseEmbedding(vec)
		if err != nil {
			t.Fatalf("toSparseEmbedding failed: %v", err)
		}
		if se.Len() != 1 {
			t.Fatalf("Expected 1 placeholder entry, got %d", se.Len())
		}
		pos, value, ok := se.Get(0)
		if !ok {
			t.Fatal("Expected placeholder entry to be readable")
		}
		if pos != 0 {
			t.Errorf("Expected placeholder at position 0, got %d", pos)
		}
		if value <= 0 || value > 1e-6 {
			t.Errorf("Expected near-zero placeholder weight, got %g", value)
		}
	}
}
