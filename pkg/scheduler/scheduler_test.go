package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/arnavshah/study-planner-api/pkg/models"
)

func slot(kind models.SlotType, start, end string) models.TimeSlotEntry {
	return models.TimeSlotEntry{Type: kind, Start: clk(start), End: clk(end)}
}

func sameSlots(dates []string, entries ...models.TimeSlotEntry) map[string][]models.TimeSlotEntry {
	out := make(map[string][]models.TimeSlotEntry, len(dates))
	for _, d := range dates {
		out[d] = entries
	}
	return out
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("group-%d", n)
	}
}

func runAllocation(t *testing.T, req models.AllocationRequest) *models.AllocationReport {
	t.Helper()
	report, err := NewAllocator(WithIDGenerator(sequentialIDs())).Run(req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func hasWarning(report *models.AllocationReport, sub string) bool {
	return containsText(report.WarningMessages(), sub)
}

func entryFor(t *testing.T, report *models.AllocationReport, id string) models.PlanEntry {
	t.Helper()
	for _, e := range report.Entries {
		if e.ContentUnitID == id {
			return e
		}
	}
	t.Fatalf("Expected %s to be placed, report: %+v", id, report)
	return models.PlanEntry{}
}

func TestAllocate_LinkedUnitsShareDate(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots: sameSlots(dates,
			slot(models.SlotStudy, "09:00", "10:00"),
			slot(models.SlotSelfStudy, "10:00", "11:00"),
		),
		Units: []models.ContentUnit{
			{ID: "a", Type: models.ContentBook, RequiredMinutes: 50, SequenceIndex: 0},
			{ID: "b", Type: models.ContentBook, RequiredMinutes: 50, SequenceIndex: 1, LinkedUnitID: "a", LinkType: models.LinkAfter},
		},
	})

	if len(report.Entries) != 2 {
		t.Fatalf("Expected 2 placements, got %d (failures %+v)", len(report.Entries), report.Failures)
	}
	a, b := entryFor(t, report, "a"), entryFor(t, report, "b")
	if a.Date != b.Date {
		t.Errorf("Expected linked units on the same date, got %s and %s", a.Date, b.Date)
	}
	if b.StartTime < a.EndTime {
		t.Errorf("Expected successor to start after %s, got %s", a.EndTime, b.StartTime)
	}
	if b.WindowCategory != models.SpanSecondary || b.StartTime != clk("10:00") {
		t.Errorf("Expected successor at 10:00 in the secondary window, got %s in %s", b.StartTime, b.WindowCategory)
	}
	if a.LinkedGroupID == "" || a.LinkedGroupID != b.LinkedGroupID {
		t.Errorf("Expected shared linked group id, got %q and %q", a.LinkedGroupID, b.LinkedGroupID)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", report.WarningMessages())
	}
}

func TestAllocate_LinkedRelaxationSplitsDates(t *testing.T) {
	dates := []string{"2025-03-03", "2025-03-04"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "10:00")),
		Units: []models.ContentUnit{
			{ID: "a", RequiredMinutes: 50, SequenceIndex: 0},
			{ID: "b", RequiredMinutes: 50, SequenceIndex: 1, LinkedUnitID: "a", LinkType: models.LinkAfter},
		},
	})

	a, b := entryFor(t, report, "a"), entryFor(t, report, "b")
	if a.Date == b.Date {
		t.Errorf("Expected the pair to split across dates, both on %s", a.Date)
	}
	if !hasWarning(report, "연계된 슬롯") {
		t.Errorf("Expected linked relaxation warning, got %v", report.WarningMessages())
	}
	if a.LinkedGroupID != b.LinkedGroupID {
		t.Errorf("Expected relaxed pair to keep one group id, got %q and %q", a.LinkedGroupID, b.LinkedGroupID)
	}
}

func TestAllocate_LinkedChainSharesOneGroup(t *testing.T) {
	dates := consecutiveDates("2025-03-03", 2)
	units := []models.ContentUnit{
		{ID: "c1", RequiredMinutes: 30, SequenceIndex: 0},
		{ID: "c2", RequiredMinutes: 30, SequenceIndex: 1, LinkedUnitID: "c1"},
		{ID: "c3", RequiredMinutes: 30, SequenceIndex: 2, LinkedUnitID: "c2"},
		{ID: "c4", RequiredMinutes: 30, SequenceIndex: 3, LinkedUnitID: "c3"},
		{ID: "p1", RequiredMinutes: 30, SequenceIndex: 4},
		{ID: "p2", RequiredMinutes: 30, SequenceIndex: 5, LinkedUnitID: "p1"},
		{ID: "solo", RequiredMinutes: 30, SequenceIndex: 6},
	}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "13:00")),
		Units:          units,
	})

	chain := entryFor(t, report, "c1").LinkedGroupID
	for _, id := range []string{"c2", "c3", "c4"} {
		e := entryFor(t, report, id)
		if e.LinkedGroupID != chain {
			t.Errorf("%s: expected group %q, got %q", id, chain, e.LinkedGroupID)
		}
		if e.Date != "2025-03-03" {
			t.Errorf("%s: expected chain to stay on 2025-03-03, got %s", id, e.Date)
		}
	}
	pair := entryFor(t, report, "p1").LinkedGroupID
	if pair == "" || pair == chain || entryFor(t, report, "p2").LinkedGroupID != pair {
		t.Errorf("Expected a distinct group for the second pair, got %q (chain %q)", pair, chain)
	}
	if got := entryFor(t, report, "solo").LinkedGroupID; got != "" {
		t.Errorf("Expected unlinked unit without group, got %q", got)
	}
}

func TestAllocate_PredecessorWithLaterSequenceIsPlacedFirst(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "11:00")),
		Units: []models.ContentUnit{
			{ID: "after", RequiredMinutes: 40, SequenceIndex: 0, LinkedUnitID: "before", LinkType: models.LinkAfter},
			{ID: "before", RequiredMinutes: 40, SequenceIndex: 1},
		},
	})

	before, after := entryFor(t, report, "before"), entryFor(t, report, "after")
	if after.StartTime < before.EndTime {
		t.Errorf("Expected %s to follow %s, got %s", after.ContentUnitID, before.ContentUnitID, after.StartTime)
	}
	if report.Entries[0].ContentUnitID != "before" {
		t.Errorf("Expected predecessor to be placed first, got %s", report.Entries[0].ContentUnitID)
	}
}

func TestAllocate_ExclusiveUnitsSeparate(t *testing.T) {
	dates := consecutiveDates("2025-03-03", 7)
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "12:00")),
		Units: []models.ContentUnit{
			{ID: "math", RequiredMinutes: 60, SequenceIndex: 0, ExclusiveWithIDs: []string{"science"}},
			{ID: "science", RequiredMinutes: 60, SequenceIndex: 1},
		},
	})

	if len(report.Entries) != 2 {
		t.Fatalf("Expected 2 placements, got %d", len(report.Entries))
	}
	if report.Entries[0].Date == report.Entries[1].Date {
		t.Errorf("Expected exclusive units on different dates, both on %s", report.Entries[0].Date)
	}
	if !hasWarning(report, "배타적") {
		t.Errorf("Expected exclusive warning, got %v", report.WarningMessages())
	}
	if got := entryFor(t, report, "science").ExclusiveWithIndices; len(got) != 1 || got[0] != 0 {
		t.Errorf("Expected symmetric exclusive indices [0], got %v", got)
	}
	if got := entryFor(t, report, "math").ExclusiveWithIndices; len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected exclusive indices [1], got %v", got)
	}
}

func TestAllocate_ExclusiveRelaxedOnSingleDate(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "12:00")),
		Units: []models.ContentUnit{
			{ID: "a", RequiredMinutes: 60, SequenceIndex: 0, ExclusiveWithIDs: []string{"b"}},
			{ID: "b", RequiredMinutes: 60, SequenceIndex: 1, ExclusiveWithIDs: []string{"a"}},
		},
	})

	if len(report.Entries) != 2 || len(report.Failures) != 0 {
		t.Fatalf("Expected best-effort placement of both units, got %+v", report)
	}
	if !hasWarning(report, "배타적 관계로 조정되지 못했습니다") {
		t.Errorf("Expected exclusive relaxation warning, got %v", report.WarningMessages())
	}
}

func TestAllocate_LinkedAndExclusiveOnSingleDate(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "12:00")),
		Units: []models.ContentUnit{
			{ID: "a", RequiredMinutes: 30, SequenceIndex: 0},
			{ID: "b", RequiredMinutes: 30, SequenceIndex: 1, LinkedUnitID: "a", LinkType: models.LinkAfter, ExclusiveWithIDs: []string{"a"}},
		},
	})

	if len(report.Entries) != 2 || len(report.Failures) != 0 {
		t.Fatalf("Expected both units placed, got %+v", report)
	}
	b := entryFor(t, report, "b")
	if b.StartTime != clk("09:30") {
		t.Errorf("Expected b right after a at 09:30, got %s", b.StartTime)
	}
	if !hasWarning(report, "배타적 관계로 조정되지 못했습니다") {
		t.Errorf("Expected exclusive relaxation warning, got %v", report.WarningMessages())
	}
}

func TestAllocate_LinkedFallsBackToPredecessorDateLast(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots: sameSlots(dates,
			slot(models.SlotStudy, "09:00", "10:00"),
			slot(models.SlotSelfStudy, "08:00", "08:40"),
		),
		Units: []models.ContentUnit{
			{ID: "a", RequiredMinutes: 50, SequenceIndex: 0},
			{ID: "b", RequiredMinutes: 40, SequenceIndex: 1, LinkedUnitID: "a", LinkType: models.LinkAfter},
		},
	})

	b := entryFor(t, report, "b")
	if b.Date != "2025-03-03" || b.StartTime != clk("08:00") {
		t.Errorf("Expected b in the remaining window at 08:00, got %s %s", b.Date, b.StartTime)
	}
	if !hasWarning(report, "연계된 슬롯이 다른 날짜에 배치되었습니다") {
		t.Errorf("Expected linked relaxation warning, got %v", report.WarningMessages())
	}
}

func TestAllocate_SuccessorOfFailedPredecessorIsPlaced(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "10:00")),
		Units: []models.ContentUnit{
			{ID: "a", RequiredMinutes: 200, SequenceIndex: 0},
			{ID: "b", RequiredMinutes: 30, SequenceIndex: 1, LinkedUnitID: "a", LinkType: models.LinkAfter},
		},
	})

	if len(report.Failures) != 1 || report.Failures[0].ContentUnitID != "a" {
		t.Fatalf("Expected only a to fail, got %+v", report.Failures)
	}
	b := entryFor(t, report, "b")
	if b.StartTime != clk("09:00") {
		t.Errorf("Expected b at 09:00, got %s", b.StartTime)
	}
	if !hasWarning(report, "연계된 선행 슬롯") {
		t.Errorf("Expected unplaced predecessor warning, got %v", report.WarningMessages())
	}
}

func TestAllocate_NoAvailableDates(t *testing.T) {
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: []string{},
		Units:          []models.ContentUnit{{ID: "a", RequiredMinutes: 30}},
	})

	if len(report.Entries) != 0 {
		t.Errorf("Expected no plans, got %d", len(report.Entries))
	}
	if len(report.Failures) == 0 || report.Failures[0].Type != models.FailureNoStudyDays {
		t.Fatalf("Expected no_study_days failure, got %+v", report.Failures)
	}
	if len(report.Unplaced) != 1 || report.Unplaced[0] != "a" {
		t.Errorf("Expected unit in the dock, got %v", report.Unplaced)
	}
}

func TestAllocate_CommitmentPushesIntoSecondaryWindow(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots: sameSlots(dates,
			slot(models.SlotStudy, "09:00", "12:00"),
			slot(models.SlotSelfStudy, "13:00", "15:00"),
		),
		ExistingPlans: []models.ExistingPlan{{Date: "2025-03-03", StartTime: clk("09:00"), EndTime: clk("12:00")}},
		Units:         []models.ContentUnit{{ID: "a", RequiredMinutes: 30}},
	})

	e := entryFor(t, report, "a")
	if e.WindowCategory != models.SpanSecondary {
		t.Errorf("Expected secondary window, got %s", e.WindowCategory)
	}
	if e.StartTime != clk("13:00") || e.EndTime != clk("13:30") {
		t.Errorf("Expected 13:00-13:30, got %s-%s", e.StartTime, e.EndTime)
	}
}

func TestAllocate_NoDoubleBooking(t *testing.T) {
	dates := consecutiveDates("2025-03-03", 2)
	existing := []models.ExistingPlan{}
	for _, d := range dates {
		existing = append(existing, models.ExistingPlan{Date: d, StartTime: clk("10:00"), EndTime: clk("10:30")})
	}
	spans := []models.TimeSlotEntry{
		slot(models.SlotStudy, "09:00", "12:00"),
		slot(models.SlotLunch, "11:30", "12:30"),
		slot(models.SlotSelfStudy, "19:00", "21:00"),
	}
	var units []models.ContentUnit
	for i := 0; i < 8; i++ {
		units = append(units, models.ContentUnit{ID: fmt.Sprintf("u%d", i), RequiredMinutes: 40, SequenceIndex: i})
	}

	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, spans...),
		ExistingPlans:  existing,
		Units:          units,
	})

	if len(report.Entries) != 8 {
		t.Fatalf("Expected all 8 units placed, got %d (failures %+v)", len(report.Entries), report.Failures)
	}
	blocked := []models.Interval{iv("10:00", "10:30"), iv("11:30", "12:30")}
	for i, a := range report.Entries {
		for _, b := range blocked {
			if a.StartTime < b.End && b.Start < a.EndTime {
				t.Errorf("%s overlaps commitment %s-%s", a.ContentUnitID, b.Start, b.End)
			}
		}
		inside := false
		for _, s := range spans {
			if cat, _ := s.Type.Category(); cat != models.SpanBlocked && a.StartTime >= s.Start && a.EndTime <= s.End {
				inside = true
			}
		}
		if !inside {
			t.Errorf("%s (%s-%s) is outside every allocatable span", a.ContentUnitID, a.StartTime, a.EndTime)
		}
		for _, b := range report.Entries[i+1:] {
			if a.Date == b.Date && a.StartTime < b.EndTime && b.StartTime < a.EndTime {
				t.Errorf("%s and %s overlap on %s", a.ContentUnitID, b.ContentUnitID, a.Date)
			}
		}
	}
	if e := entryFor(t, report, "u1"); e.StartTime != clk("10:30") {
		t.Errorf("Expected u1 right after the existing plan at 10:30, got %s", e.StartTime)
	}
}

func TestAllocate_FailureDoesNotBlockLaterUnits(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "11:00")),
		Units: []models.ContentUnit{
			{ID: "huge", Title: "수학의 정석", RequiredMinutes: 500, SequenceIndex: 0},
			{ID: "next", RequiredMinutes: 60, SequenceIndex: 1, LinkedUnitID: "huge", LinkType: models.LinkAfter},
		},
	})

	if len(report.Failures) != 1 || report.Failures[0].Type != models.FailureInsufficientTime {
		t.Fatalf("Expected one insufficient_time failure, got %+v", report.Failures)
	}
	f := report.Failures[0]
	if f.LargestFreeMinutes != 120 || !strings.Contains(f.Message, "수학의 정석") {
		t.Errorf("Unexpected failure details: %+v", f)
	}
	if e := entryFor(t, report, "next"); e.StartTime != clk("09:00") {
		t.Errorf("Expected unconstrained successor at 09:00, got %s", e.StartTime)
	}
	if !hasWarning(report, "연계된 선행 슬롯") {
		t.Errorf("Expected unplaced predecessor warning, got %v", report.WarningMessages())
	}
}

func TestAllocate_ReviewUnitsPreferReviewDays(t *testing.T) {
	dates := consecutiveDates("2025-03-03", 7)
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "10:00")),
		Options:        models.CycleOptions{CycleType: CycleType1730},
		Units: []models.ContentUnit{
			{ID: "review", RequiredMinutes: 60, SequenceIndex: 0, Review: true},
			{ID: "review-overflow", RequiredMinutes: 60, SequenceIndex: 1, Review: true},
			{ID: "study", RequiredMinutes: 60, SequenceIndex: 2},
		},
	})

	if e := entryFor(t, report, "review"); e.Date != "2025-03-09" || e.DayRole != models.RoleReview {
		t.Errorf("Expected review unit on the review day, got %s (%s)", e.Date, e.DayRole)
	}
	if e := entryFor(t, report, "review-overflow"); e.Date != "2025-03-03" {
		t.Errorf("Expected overflow review unit to fall back to the first study day, got %s", e.Date)
	}
	if e := entryFor(t, report, "study"); e.Date != "2025-03-04" || e.DayRole != models.RoleStudy {
		t.Errorf("Expected study unit on the next free study day, got %s (%s)", e.Date, e.DayRole)
	}
}

func TestAllocate_StudyUnitsSkipReviewDays(t *testing.T) {
	dates := consecutiveDates("2025-03-03", 7)
	slots := map[string][]models.TimeSlotEntry{
		"2025-03-09": {slot(models.SlotStudy, "09:00", "12:00")},
	}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  slots,
		Options:        models.CycleOptions{CycleType: CycleType1730},
		Units:          []models.ContentUnit{{ID: "a", RequiredMinutes: 30}},
	})

	if len(report.Entries) != 0 || len(report.Failures) != 1 || report.Failures[0].Type != models.FailureInsufficientTime {
		t.Errorf("Expected the study unit to stay off the review day, got %+v", report)
	}
}

func TestAllocate_HolidayWindowsAreSkipped(t *testing.T) {
	windows := []models.DateWindow{
		{Date: "2025-03-03", Role: models.RoleHoliday, Spans: []models.Span{{Category: models.SpanPrimary, Start: clk("09:00"), End: clk("12:00")}}},
		{Date: "2025-03-04", Spans: []models.Span{{Category: models.SpanPrimary, Start: clk("09:00"), End: clk("12:00")}}},
	}
	report, err := NewAllocator().Allocate([]models.ContentUnit{{ID: "a", RequiredMinutes: 30}}, windows, Cycle{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if e := entryFor(t, report, "a"); e.Date != "2025-03-04" {
		t.Errorf("Expected holiday to be skipped, got %s", e.Date)
	}
}

func TestAllocate_MissingReferenceProceeds(t *testing.T) {
	dates := []string{"2025-03-03"}
	report := runAllocation(t, models.AllocationRequest{
		AvailableDates: dates,
		DateTimeSlots:  sameSlots(dates, slot(models.SlotStudy, "09:00", "10:00")),
		Units:          []models.ContentUnit{{ID: "a", RequiredMinutes: 30, LinkedUnitID: "ghost", LinkType: models.LinkAfter}},
	})

	e := entryFor(t, report, "a")
	if e.LinkedGroupID != "" {
		t.Errorf("Expected dangling link to be ignored, got group %q", e.LinkedGroupID)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Type != models.WarningMissingReference {
		t.Errorf("Expected one missing reference warning, got %+v", report.Warnings)
	}
}

func TestAllocate_EmptyInput(t *testing.T) {
	report := runAllocation(t, models.AllocationRequest{AvailableDates: []string{"2025-03-03"}})
	if len(report.Entries) != 0 || len(report.Failures) != 0 {
		t.Errorf("Expected an empty report, got %+v", report)
	}
}

func TestAllocate_RejectsInvalidInput(t *testing.T) {
	a := NewAllocator()

	_, err := a.Allocate([]models.ContentUnit{{ID: "a", RequiredMinutes: -5}}, nil, Cycle{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected negative duration to fail the run, got %v", err)
	}

	_, err = a.Allocate([]models.ContentUnit{{ID: "a", RequiredMinutes: 5, LinkedUnitID: "b", LinkType: "before"}, {ID: "b", RequiredMinutes: 5}}, nil, Cycle{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected unknown link type to fail the run, got %v", err)
	}

	_, err = a.Allocate([]models.ContentUnit{{ID: "a", RequiredMinutes: 5}}, []models.DateWindow{{Date: "not-a-date"}}, Cycle{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected malformed window date to fail the run, got %v", err)
	}

	_, err = a.Allocate([]models.ContentUnit{
		{ID: "a", RequiredMinutes: 5, LinkedUnitID: "b"},
		{ID: "b", RequiredMinutes: 5, LinkedUnitID: "a"},
	}, nil, Cycle{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for a cycle, got %v", err)
	}
	if verr.Result.Valid || !containsText(verr.Result.Errors, "순환") {
		t.Errorf("Expected circular reference in validation result, got %+v", verr.Result)
	}
}
