package scheduler

import (
	"fmt"
	"sort"

	"github.com/arnavshah/study-planner-api/internal/timeofday"
	"github.com/arnavshah/study-planner-api/pkg/models"
)

var koreanWeekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// PreviewOptions tunes the preview projection
type PreviewOptions struct {
	RecommendedDailyMinutes int
}

// Preview groups a report's entries by date and adds overload warnings.
// It never re-runs placement: every entry appears exactly as allocated.
func Preview(report *models.AllocationReport, opts PreviewOptions) models.Timeline {
	timeline := models.Timeline{
		Days:     []models.DayPlan{},
		Warnings: []models.Warning{},
	}
	if report == nil {
		return timeline
	}
	timeline.Warnings = append(timeline.Warnings, report.Warnings...)

	byDate := make(map[string]*models.DayPlan)
	var dates []string
	for _, e := range report.Entries {
		day, ok := byDate[e.Date]
		if !ok {
			day = &models.DayPlan{Date: e.Date, Weekday: weekdayOf(e.Date), DayRole: e.DayRole}
			byDate[e.Date] = day
			dates = append(dates, e.Date)
		}
		day.Entries = append(day.Entries, e)
		day.TotalMinutes += e.Minutes()
	}
	sort.Strings(dates)

	overloadByWeekday := make(map[string]int)
	for _, date := range dates {
		day := byDate[date]
		sort.SliceStable(day.Entries, func(i, j int) bool {
			return day.Entries[i].StartTime < day.Entries[j].StartTime
		})
		timeline.Days = append(timeline.Days, *day)

		limit := opts.RecommendedDailyMinutes
		if limit <= 0 || day.TotalMinutes <= limit {
			continue
		}
		if idx, seen := overloadByWeekday[day.Weekday]; seen {
			if day.TotalMinutes > timeline.Warnings[idx].Minutes {
				timeline.Warnings[idx] = overloadWarning(day, limit)
			}
			continue
		}
		overloadByWeekday[day.Weekday] = len(timeline.Warnings)
		timeline.Warnings = append(timeline.Warnings, overloadWarning(day, limit))
	}
	return timeline
}

func overloadWarning(day *models.DayPlan, limit int) models.Warning {
	return models.Warning{
		Type:    models.WarningOverload,
		Message: fmt.Sprintf("%s요일 학습량 %d분이 권장 학습 시간 %d분을 초과합니다", day.Weekday, day.TotalMinutes, limit),
		Date:    day.Date,
		Weekday: day.Weekday,
		Minutes: day.TotalMinutes,
	}
}

func weekdayOf(date string) string {
	t, err := timeofday.ParseDate(date)
	if err != nil {
		return ""
	}
	return koreanWeekdays[t.Weekday()]
}
