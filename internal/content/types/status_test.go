package types

import "testing"

func TestVectorStatusValid(t *testing.T) {
	for _, s := range []VectorStatus{VectorStatusPending, VectorStatusIndexing, VectorStatusIndexed, VectorStatusFailed} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}

	if VectorStatus("done").Valid() {
		t.Error("unknown status accepted")
	}
}

func TestVectorStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to VectorStatus
		ok       bool
	}{
		{VectorStatusPending, VectorStatusIndexing, true},
		{VectorStatusPending, VectorStatusFailed, true},
		{VectorStatusIndexing, VectorStatusIndexed, true},
		{VectorStatusIndexing, VectorStatusFailed, true},
		{VectorStatusFailed, VectorStatusPending, true},
		{VectorStatusPending, VectorStatusIndexed, false},
		{VectorStatusIndexed, VectorStatusPending, false},
		{VectorStatusIndexed, VectorStatusFailed, false},
		{VectorStatusFailed, VectorStatusIndexed, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}
