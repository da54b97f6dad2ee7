package domain_test

import (
	"testing"

	"github.com/bkyoung/covgate/internal/domain"
)

func TestLineStats_AddIsCommutative(t *testing.T) {
	a := domain.LineStats{Covered: 3, Uncovered: 1, Ignored: 2}
	b := domain.LineStats{Covered: 5, Uncovered: 4}

	ab := a.Add(b)
	ba := b.Add(a)

	if ab != ba {
		t.Errorf("Add not commutative: %+v vs %+v", ab, ba)
	}
}

func TestLineStats_AddIsAssociative(t *testing.T) {
	a := domain.LineStats{Covered: 1}
	b := domain.LineStats{Uncovered: 2, Ignored: 1}
	c := domain.LineStats{Covered: 4, Uncovered: 1}

	left := a.Add(b).Add(c)
	right := a.Add(b.Add(c))

	if left != right {
		t.Errorf("Add not associative: %+v vs %+v", left, right)
	}
}

func TestLineStats_Coverage(t *testing.T) {
	tests := []struct {
		name   string
		stats  domain.LineStats
		want   float64
		wantOK bool
	}{
		{"half covered", domain.LineStats{Covered: 1, Uncovered: 1}, 0.5, true},
		{"fully covered", domain.LineStats{Covered: 4}, 1.0, true},
		{"fully uncovered", domain.LineStats{Uncovered: 3}, 0.0, true},
		{"ignored lines excluded", domain.LineStats{Covered: 3, Uncovered: 1, Ignored: 10}, 0.75, true},
		{"no instrumented lines", domain.LineStats{Ignored: 7}, 0, false},
		{"zero stats", domain.LineStats{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.stats.Coverage()
			if ok != tt.wantOK {
				t.Fatalf("Coverage() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Coverage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLineStats_Total(t *testing.T) {
	s := domain.LineStats{Covered: 2, Uncovered: 3, Ignored: 4}
	if s.Total() != 9 {
		t.Errorf("Total() = %d, want 9", s.Total())
	}
}
