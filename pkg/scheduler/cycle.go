package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arnavshah/study-planner-api/internal/timeofday"
	"github.com/arnavshah/study-planner-api/pkg/models"
)

// Cycle presets accepted in CycleOptions.CycleType
const (
	CycleType1730   = "1730"
	CycleTypeNone   = "none"
	CycleTypeCustom = "custom"
)

// Cycle is a repeating block of StudyDays study dates followed by ReviewDays review dates
type Cycle struct {
	StudyDays  int
	ReviewDays int
}

// Length is the number of dates in one full cycle
func (c Cycle) Length() int {
	return c.StudyDays + c.ReviewDays
}

// ResolveCycle turns cadence options into a Cycle. Explicit day counts
// override the preset.
func ResolveCycle(opts models.CycleOptions) (Cycle, error) {
	if opts.StudyDays < 0 || opts.ReviewDays < 0 {
		return Cycle{}, fmt.Errorf("%w: negative cycle length %d/%d", ErrInvalidInput, opts.StudyDays, opts.ReviewDays)
	}

	var c Cycle
	switch strings.ToLower(strings.TrimSpace(opts.CycleType)) {
	case CycleType1730:
		c = Cycle{StudyDays: 6, ReviewDays: 1}
	case CycleTypeNone:
		return Cycle{}, nil
	case "", CycleTypeCustom:
	default:
		return Cycle{}, fmt.Errorf("%w: unknown cycle type %q", ErrInvalidInput, opts.CycleType)
	}

	if opts.StudyDays > 0 {
		c.StudyDays = opts.StudyDays
	}
	if opts.ReviewDays > 0 {
		c.ReviewDays = opts.ReviewDays
	}
	if c.ReviewDays > 0 && c.StudyDays == 0 {
		return Cycle{}, fmt.Errorf("%w: a cycle with review days needs at least one study day", ErrInvalidInput)
	}
	return c, nil
}

// Classify labels each date study or review under the cycle. Dates are walked
// chronologically in windows of cycle.Length(); the first StudyDays of each
// window are study. A list shorter than one full cycle is entirely study.
func Classify(dates []string, cycle Cycle) (map[string]models.DayRole, error) {
	if cycle.StudyDays < 0 || cycle.ReviewDays < 0 {
		return nil, fmt.Errorf("%w: negative cycle length %d/%d", ErrInvalidInput, cycle.StudyDays, cycle.ReviewDays)
	}
	if cycle.ReviewDays > 0 && cycle.StudyDays == 0 {
		return nil, fmt.Errorf("%w: a cycle with review days needs at least one study day", ErrInvalidInput)
	}
	sorted := make([]string, 0, len(dates))
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		if _, err := timeofday.ParseDate(d); err != nil {
			return nil, fmt.Errorf("%w: date %q: %v", ErrInvalidInput, d, err)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	roles := make(map[string]models.DayRole, len(sorted))
	length := cycle.Length()
	allStudy := cycle.ReviewDays == 0 || len(sorted) < length
	for i, d := range sorted {
		if allStudy || i%length < cycle.StudyDays {
			roles[d] = models.RoleStudy
		} else {
			roles[d] = models.RoleReview
		}
	}
	return roles, nil
}
