package gate_test

import (
	"math/rand"
	"testing"

	"github.com/bkyoung/covgate/internal/domain"
	"github.com/bkyoung/covgate/internal/usecase/gate"
)

func TestReconcile(t *testing.T) {
	record := domain.ChangeRecord{
		File:         "pkg/Foo.ext",
		LinesChanged: []int{10, 11, 12, 13},
	}
	cov := domain.CoverageMap{10: true, 11: false, 12: false}

	stats := gate.Reconcile(record, cov)

	want := domain.LineStats{Covered: 1, Uncovered: 2, Ignored: 1}
	if stats != want {
		t.Errorf("Reconcile() = %+v, want %+v", stats, want)
	}

	coverage, ok := stats.Coverage()
	if !ok || coverage != 0.5 {
		t.Errorf("Coverage() = %v, %v, want 0.5, true", coverage, ok)
	}
}

func TestReconcile_ClassificationIsExhaustive(t *testing.T) {
	record := domain.ChangeRecord{
		File:         "a.go",
		LinesChanged: []int{1, 2, 3, 4, 5, 6, 7},
	}
	cov := domain.CoverageMap{2: true, 4: false, 6: true}

	stats := gate.Reconcile(record, cov)

	if stats.Total() != len(record.LinesChanged) {
		t.Errorf("covered+uncovered+ignored = %d, want %d", stats.Total(), len(record.LinesChanged))
	}
}

func TestReconcile_OrderIndependent(t *testing.T) {
	lines := []int{5, 6, 7, 8, 9, 10, 11, 12}
	cov := domain.CoverageMap{5: true, 7: false, 9: true, 11: false}

	base := gate.Reconcile(domain.ChangeRecord{File: "a.go", LinesChanged: lines}, cov)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]int(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := gate.Reconcile(domain.ChangeRecord{File: "a.go", LinesChanged: shuffled}, cov)
		if got != base {
			t.Fatalf("permutation changed stats: %+v vs %+v", got, base)
		}
	}
}

func TestReconcile_EmptyMapCountsEverythingUncovered(t *testing.T) {
	record := domain.ChangeRecord{File: "a.go", LinesChanged: []int{1, 2, 3}}

	stats := gate.Reconcile(record, domain.CoverageMap{})

	want := domain.LineStats{Uncovered: 3}
	if stats != want {
		t.Errorf("Reconcile() = %+v, want %+v", stats, want)
	}
}

func TestUncoveredLines(t *testing.T) {
	record := domain.ChangeRecord{File: "a.go", LinesChanged: []int{10, 11, 12, 13}}
	cov := domain.CoverageMap{10: true, 11: false, 12: false}

	got := gate.UncoveredLines(record, cov)

	if len(got) != 2 || got[0] != 11 || got[1] != 12 {
		t.Errorf("UncoveredLines() = %v, want [11 12]", got)
	}
}
