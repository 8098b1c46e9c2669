package streak

import (
	"testing"

	"github.com/emberwell/emberwell-api/internal/types"
)

func dates(ss ...string) []types.LocalDate {
	out := make([]types.LocalDate, len(ss))
	for i, s := range ss {
		out[i] = types.LocalDate(s)
	}
	return out
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	a := Analyze(nil, "2024-06-10")

	if len(a.Cycles) != 0 {
		t.Errorf("Expected 0 cycles, got %d", len(a.Cycles))
	}
	if a.CurrentStreak != 0 {
		t.Errorf("Expected streak 0, got %d", a.CurrentStreak)
	}
	if a.HadBreak {
		t.Error("Expected hadBreak=false for empty history")
	}
}

func TestAnalyzeSingleDate(t *testing.T) {
	a := Analyze(dates("2024-06-10"), "2024-06-10")

	if len(a.Cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(a.Cycles))
	}
	if a.Cycles[0].Length != 1 {
		t.Errorf("Expected cycle length 1, got %d", a.Cycles[0].Length)
	}
	if a.CurrentStreak != 1 {
		t.Errorf("Expected streak 1, got %d", a.CurrentStreak)
	}
	if a.HadBreak {
		t.Error("Expected hadBreak=false for a single date")
	}
}

func TestAnalyzeContiguousRun(t *testing.T) {
	// Streak monotonicity: N contiguous dates ending today yield streak N.
	a := Analyze(dates("2024-06-06", "2024-06-07", "2024-06-08", "2024-06-09", "2024-06-10"), "2024-06-10")

	if len(a.Cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(a.Cycles))
	}
	if a.HadBreak {
		t.Error("Expected hadBreak=false for contiguous run")
	}
	if a.CurrentStreak != 5 {
		t.Errorf("Expected streak 5, got %d", a.CurrentStreak)
	}
}

func TestAnalyzeBreakDetection(t *testing.T) {
	// Gap between D+1 and D+3 splits the run into cycles of lengths 2 and 3.
	a := Analyze(dates("2024-06-01", "2024-06-02", "2024-06-04", "2024-06-05", "2024-06-06"), "2024-06-06")

	if !a.HadBreak {
		t.Error("Expected hadBreak=true")
	}
	if len(a.Cycles) != 2 {
		t.Fatalf("Expected 2 cycles, got %d", len(a.Cycles))
	}
	if a.Cycles[0].Length != 2 || a.Cycles[1].Length != 3 {
		t.Errorf("Expected cycle lengths [2 3], got [%d %d]", a.Cycles[0].Length, a.Cycles[1].Length)
	}
	if a.CurrentStreak != 3 {
		t.Errorf("Expected streak 3, got %d", a.CurrentStreak)
	}
}

func TestAnalyzeYesterdayGrace(t *testing.T) {
	// Final cycle ends yesterday: still the current streak.
	a := Analyze(dates("2024-06-08", "2024-06-09"), "2024-06-10")
	if a.CurrentStreak != 2 {
		t.Errorf("Expected streak 2 with yesterday grace, got %d", a.CurrentStreak)
	}

	// Final cycle ends two days ago: streak has lapsed.
	a = Analyze(dates("2024-06-07", "2024-06-08"), "2024-06-10")
	if a.CurrentStreak != 0 {
		t.Errorf("Expected streak 0 after lapse, got %d", a.CurrentStreak)
	}
}

func TestAnalyzeUnsortedWithDuplicates(t *testing.T) {
	a := Analyze(dates("2024-06-10", "2024-06-08", "2024-06-09", "2024-06-09"), "2024-06-10")

	if len(a.Cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(a.Cycles))
	}
	if a.CurrentStreak != 3 {
		t.Errorf("Expected streak 3, got %d", a.CurrentStreak)
	}
}

func TestWalkBack(t *testing.T) {
	tests := []struct {
		name     string
		history  []types.LocalDate
		today    types.LocalDate
		expected int
	}{
		{"empty", nil, "2024-06-10", 0},
		{"today only", dates("2024-06-10"), "2024-06-10", 1},
		{"run ending today", dates("2024-06-08", "2024-06-09", "2024-06-10"), "2024-06-10", 3},
		{"run ending yesterday", dates("2024-06-08", "2024-06-09"), "2024-06-10", 2},
		{"lapsed", dates("2024-06-06", "2024-06-07"), "2024-06-10", 0},
		{"gap behind today", dates("2024-06-10", "2024-06-08"), "2024-06-10", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WalkBack(DateSet(tt.history), tt.today)
			if got != tt.expected {
				t.Errorf("Expected streak %d, got %d", tt.expected, got)
			}
		})
	}
}
