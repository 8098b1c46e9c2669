// Package streak derives consecutive-day activity state from a sparse,
// append-only set of calendar dates. All computation is pure; persistence
// of the underlying activity record lives in the services layer.
package streak

import (
	"sort"

	"github.com/emberwell/emberwell-api/internal/types"
)

// Cycle is a maximal contiguous run of activity dates with no gap greater
// than one day.
type Cycle struct {
	Start  types.LocalDate `json:"start"`
	End    types.LocalDate `json:"end"`
	Length int             `json:"length"`
}

// Analysis is the full decomposition of a user's activity history.
type Analysis struct {
	Cycles        []Cycle `json:"cycles"`
	CurrentStreak int     `json:"currentStreak"`
	HadBreak      bool    `json:"hadBreak"`
}

// Analyze decomposes the given activity dates into cycles and reports the
// current streak relative to today. Duplicate dates are tolerated. The
// final cycle counts as the current streak only when it reaches today or
// yesterday; an older cycle means the streak has lapsed and the current
// streak is zero.
func Analyze(dates []types.LocalDate, today types.LocalDate) Analysis {
	sorted := dedupeSorted(dates)
	if len(sorted) == 0 {
		return Analysis{Cycles: []Cycle{}}
	}

	cycles := []Cycle{}
	start := sorted[0]
	prev := sorted[0]
	for _, d := range sorted[1:] {
		if prev.DaysUntil(d) > 1 {
			cycles = append(cycles, Cycle{Start: start, End: prev, Length: start.DaysUntil(prev) + 1})
			start = d
		}
		prev = d
	}
	cycles = append(cycles, Cycle{Start: start, End: prev, Length: start.DaysUntil(prev) + 1})

	analysis := Analysis{
		Cycles:   cycles,
		HadBreak: len(cycles) > 1,
	}

	last := cycles[len(cycles)-1]
	if gap := last.End.DaysUntil(today); gap >= 0 && gap <= 1 {
		analysis.CurrentStreak = last.Length
	}

	return analysis
}

// WalkBack counts the current streak by stepping backward one day at a
// time while dates remain present in the set. The walk starts at today, or
// at yesterday when today is not yet logged (grace for a day not logged
// yet); it returns zero as soon as a gap is hit.
func WalkBack(set map[types.LocalDate]struct{}, today types.LocalDate) int {
	cursor := today
	if _, ok := set[cursor]; !ok {
		cursor = today.AddDays(-1)
	}

	count := 0
	for {
		if _, ok := set[cursor]; !ok {
			break
		}
		count++
		cursor = cursor.AddDays(-1)
	}
	return count
}

// DateSet builds a membership set from a date slice.
func DateSet(dates []types.LocalDate) map[types.LocalDate]struct{} {
	set := make(map[types.LocalDate]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// dedupeSorted returns the dates sorted ascending with duplicates removed.
func dedupeSorted(dates []types.LocalDate) []types.LocalDate {
	if len(dates) == 0 {
		return nil
	}
	out := make([]types.LocalDate, len(dates))
	copy(out, dates)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
