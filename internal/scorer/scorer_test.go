package scorer

import "testing"

func TestScoreRangeAndMonotonicity(t *testing.T) {
	x := []float64{1, 5, 2, 9, 3, 7, 4, 8, 6, 10}
	s := Score(x)
	if len(s) != len(x) {
		t.Fatalf("Score returned %d elements, want %d", len(s), len(x))
	}
	for i, v := range s {
		if v < 0 || v > 7 {
			t.Errorf("s[%d] = %d, want in [0, 7]", i, v)
		}
	}
	for i := range x {
		for j := range x {
			if x[i] < x[j] && s[i] > s[j] {
				t.Errorf("monotonicity violated: x[%d]=%v < x[%d]=%v but s[%d]=%d > s[%d]=%d",
					i, x[i], j, x[j], i, s[i], j, s[j])
			}
		}
	}
}

func TestScoreMaximumGetsTopVote(t *testing.T) {
	x := make([]float64, 20)
	for i := range x {
		x[i] = float64(i)
	}
	x[19] = 1000 // far above every percentile
	s := Score(x)
	if s[19] != 7 {
		t.Errorf("expected maximum element to score 7, got %d", s[19])
	}
}

func TestScoreDegenerateClusterIsAllZero(t *testing.T) {
	for n := 0; n < MinClusterSize; n++ {
		x := make([]float64, n)
		for i := range x {
			x[i] = float64(i) * 100
		}
		s := Score(x)
		for i, v := range s {
			if v != 0 {
				t.Errorf("n=%d: s[%d] = %d, want 0", n, i, v)
			}
		}
	}
}

func TestScoreConstantVectorIsAllZero(t *testing.T) {
	x := []float64{5, 5, 5, 5, 5}
	s := Score(x)
	for i, v := range s {
		if v != 0 {
			t.Errorf("constant input: s[%d] = %d, want 0 (no element strictly exceeds any threshold)", i, v)
		}
	}
}

func TestExpandLeavesOutsideDaysZero(t *testing.T) {
	scores := []int{3, 7}
	dayIdx := []int{1, 4}
	out := Expand(scores, dayIdx, 6)
	want := []int{0, 3, 0, 0, 7, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Expand[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}
