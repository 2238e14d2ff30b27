package contextmgr

import (
	"errors"
	"testing"
)

func TestNewRejectsOverlappingRanges(t *testing.T) {
	_, err := New([]Range{{0, 10}, {5, 15}}, 20)
	if err == nil {
		t.Fatal("expected an error for overlapping ranges")
	}
	if !errors.Is(err, ErrOverlappingContexts) {
		t.Errorf("expected ErrOverlappingContexts, got %v", err)
	}
}

func TestNewRejectsEmptyRange(t *testing.T) {
	if _, err := New([]Range{{5, 5}}, 10); err == nil {
		t.Error("expected an error for an empty range")
	}
}

func TestNewRejectsOutOfBoundsRange(t *testing.T) {
	if _, err := New([]Range{{0, 25}}, 20); err == nil {
		t.Error("expected an error for a range exceeding the subsequence domain")
	}
}

func TestNewRejectsNonPositiveNumSub(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Error("expected an error for a non-positive numSub")
	}
}

func TestContextOfLookup(t *testing.T) {
	m, err := New([]Range{{0, 4}, {10, 14}}, 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.NumContexts() != 2 {
		t.Fatalf("NumContexts() = %d, want 2", m.NumContexts())
	}

	k, ok := m.ContextOfRow(2)
	if !ok || k != 0 {
		t.Errorf("ContextOfRow(2) = (%d, %v), want (0, true)", k, ok)
	}
	k, ok = m.ContextOfCol(12)
	if !ok || k != 1 {
		t.Errorf("ContextOfCol(12) = (%d, %v), want (1, true)", k, ok)
	}
	if _, ok := m.ContextOfRow(7); ok {
		t.Error("expected index 7 to belong to no context")
	}
	if _, ok := m.ContextOfRow(-1); ok {
		t.Error("expected a negative index to belong to no context")
	}
	if _, ok := m.ContextOfRow(100); ok {
		t.Error("expected an out-of-range index to belong to no context")
	}
}

func TestRangesPreservesConstructionOrder(t *testing.T) {
	m, err := New([]Range{{10, 14}, {0, 4}}, 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ranges := m.Ranges()
	if ranges[0] != (Range{10, 14}) || ranges[1] != (Range{0, 4}) {
		t.Errorf("Ranges() = %v, want construction order preserved", ranges)
	}
	if m.Range(1) != (Range{0, 4}) {
		t.Errorf("Range(1) = %v, want {0, 4}", m.Range(1))
	}
}
