package hybrid

import (
	"math"
	"testing"
)

func dense(ids ...string) []SearchResult {
	out := make([]SearchResult, len(ids))
	for i, id := range ids {
		out[i] = &DenseSearchResult{ID: id, Score: float32(len(ids) - i)}
	}
	return out
}

func sparse(ids ...string) []SearchResult {
	out := make([]SearchResult, len(ids))
	for i, id := range ids {
		out[i] = &SparseSearchResult{ID: id, Score: float32(len(ids) - i)}
	}
	return out
}

func TestReciprocalRankFusionAgreementWins(t *testing.T) {
	// "b" 在两路都靠前，融合后应排第一
	results := ReciprocalRankFusion([][]SearchResult{
		dense("a", "b", "c"),
		sparse("b", "d", "a"),
	}, 60)

	if len(results) != 4 {
		t.Fatalf("expected 4 fused results, got %d", len(results))
	}

	if results[0].ID != "b" {
		t.Fatalf("expected b first, got %s", results[0].ID)
	}

	wantB := 1.0/62.0 + 1.0/61.0
	if math.Abs(results[0].RRFScore-wantB) > 1e-9 {
		t.Fatalf("b score = %v, want %v", results[0].RRFScore, wantB)
	}

	for i, r := range results {
		if r.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, r.Rank)
		}
	}
}

func TestReciprocalRankFusionDefaultK(t *testing.T) {
	withZero := ReciprocalRankFusion([][]SearchResult{dense("a", "b")}, 0)
	withSixty := ReciprocalRankFusion([][]SearchResult{dense("a", "b")}, 60)

	if withZero[0].RRFScore != withSixty[0].RRFScore {
		t.Fatal("k<=0 should fall back to 60")
	}
}

func TestReciprocalRankFusionSingleList(t *testing.T) {
	results := ReciprocalRankFusion([][]SearchResult{dense("x", "y", "z")}, 60)

	if results[0].ID != "x" || results[1].ID != "y" || results[2].ID != "z" {
		t.Fatal("single-list fusion must preserve input order")
	}
}
