package scheduler

import (
	"fmt"
	"sort"

	"github.com/arnavshah/study-planner-api/internal/timeofday"
	"github.com/arnavshah/study-planner-api/pkg/models"
)

// RemainingMinutes returns the free minutes of window after subtracting the
// overlap of every commitment. Commitments outside the window contribute 0.
func RemainingMinutes(window models.Interval, commitments []models.Interval) int {
	used := 0
	for _, c := range commitments {
		used += timeofday.OverlapMinutes(window.Start, window.End, c.Start, c.End)
	}
	remaining := window.Minutes() - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FirstFit returns the earliest start inside window where minutes fit without
// touching any busy interval.
func FirstFit(window models.Interval, busy []models.Interval, minutes int) (models.Clock, bool) {
	cursor := window.Start
	for _, b := range sortedIntervals(busy) {
		if b.End <= cursor {
			continue
		}
		if b.Start >= window.End {
			break
		}
		if timeofday.Duration(cursor, b.Start) >= minutes {
			return cursor, true
		}
		cursor = max(cursor, b.End)
	}
	if timeofday.Duration(cursor, window.End) >= minutes {
		return cursor, true
	}
	return 0, false
}

// LargestGap returns the longest contiguous free stretch inside window.
func LargestGap(window models.Interval, busy []models.Interval) int {
	best := 0
	cursor := window.Start
	for _, b := range sortedIntervals(busy) {
		if b.End <= cursor {
			continue
		}
		if b.Start >= window.End {
			break
		}
		best = max(best, timeofday.Duration(cursor, b.Start))
		cursor = max(cursor, b.End)
	}
	return max(best, timeofday.Duration(cursor, window.End))
}

// mergeIntervals collapses overlapping intervals so overlap sums do not count a minute twice.
func mergeIntervals(in []models.Interval) []models.Interval {
	sorted := sortedIntervals(in)
	merged := make([]models.Interval, 0, len(sorted))
	for _, iv := range sorted {
		if iv.End <= iv.Start {
			continue
		}
		if n := len(merged); n > 0 && iv.Start <= merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, iv.End)
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func sortedIntervals(in []models.Interval) []models.Interval {
	out := make([]models.Interval, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].End < out[j].End
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// BuildDateWindows turns the per-date slot configuration and prior plans into
// date windows ordered chronologically. Dates without slots get no spans.
func BuildDateWindows(req models.AllocationRequest) ([]models.DateWindow, error) {
	windows := make([]models.DateWindow, 0, len(req.AvailableDates))
	index := make(map[string]int, len(req.AvailableDates))

	for _, date := range req.AvailableDates {
		if _, err := timeofday.ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: available date %q: %v", ErrInvalidInput, date, err)
		}
		if _, dup := index[date]; dup {
			continue
		}

		window := models.DateWindow{Date: date, Role: req.DateRoles[date]}
		for _, entry := range req.DateTimeSlots[date] {
			category, ok := entry.Type.Category()
			if !ok {
				return nil, fmt.Errorf("%w: unknown slot type %q on %s", ErrInvalidInput, entry.Type, date)
			}
			if entry.End <= entry.Start {
				return nil, fmt.Errorf("%w: slot %s-%s on %s ends before it starts", ErrInvalidInput, entry.Start, entry.End, date)
			}
			window.Spans = append(window.Spans, models.Span{
				Category: category,
				Start:    entry.Start,
				End:      entry.End,
				Label:    entry.Label,
			})
		}
		sort.SliceStable(window.Spans, func(i, j int) bool {
			return window.Spans[i].Start < window.Spans[j].Start
		})

		index[date] = len(windows)
		windows = append(windows, window)
	}

	for _, plan := range req.ExistingPlans {
		if _, err := timeofday.ParseDate(plan.Date); err != nil {
			return nil, fmt.Errorf("%w: existing plan date %q: %v", ErrInvalidInput, plan.Date, err)
		}
		if plan.EndTime <= plan.StartTime {
			return nil, fmt.Errorf("%w: existing plan %s-%s on %s ends before it starts", ErrInvalidInput, plan.StartTime, plan.EndTime, plan.Date)
		}
		i, ok := index[plan.Date]
		if !ok {
			continue
		}
		windows[i].Commitments = append(windows[i].Commitments, models.Commitment{
			Interval: models.Interval{Start: plan.StartTime, End: plan.EndTime},
			Source:   "existing_plan",
		})
	}

	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].Date < windows[j].Date
	})
	return windows, nil
}
