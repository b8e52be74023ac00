package scheduler

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arnavshah/study-planner-api/internal/timeofday"
	"github.com/arnavshah/study-planner-api/pkg/models"
)

// Warning texts relied upon by callers as substring matches
const (
	msgLinkedRelaxed     = "연계된 슬롯이 다른 날짜에 배치되었습니다"
	msgLinkedUnplaced    = "연계된 선행 슬롯이 배치되지 않아 독립적으로 배치되었습니다"
	msgExclusiveAdjusted = "배타적 관계로 다른 날짜에 배치되었습니다"
	msgExclusiveRelaxed  = "배타적 관계로 조정되지 못했습니다"
)

// Allocator places content units onto date windows. It holds no state
// between runs and is safe to share across goroutines.
type Allocator struct {
	logger zerolog.Logger
	newID  func() string
}

// Option configures an Allocator
type Option func(*Allocator)

// WithLogger sets the logger used for per-unit debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger.With().Str("component", "allocator").Logger()
	}
}

// WithIDGenerator replaces the linked group id generator
func WithIDGenerator(fn func() string) Option {
	return func(a *Allocator) {
		a.newID = fn
	}
}

// NewAllocator creates a new allocator instance
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		logger: zerolog.Nop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run builds date windows from the request and allocates its units
func (a *Allocator) Run(req models.AllocationRequest) (*models.AllocationReport, error) {
	windows, err := BuildDateWindows(req)
	if err != nil {
		return nil, err
	}
	cycle, err := ResolveCycle(req.Options)
	if err != nil {
		return nil, err
	}
	return a.Allocate(req.Units, windows, cycle)
}

// Allocate greedily places units in visit order. Infeasibility is reported as
// failures and warnings; an error means the input itself was unusable.
func (a *Allocator) Allocate(units []models.ContentUnit, windows []models.DateWindow, cycle Cycle) (*models.AllocationReport, error) {
	if err := checkUnits(units); err != nil {
		return nil, err
	}
	validation := ValidateRelationships(units)
	if !validation.Valid {
		return nil, &ValidationError{Result: validation}
	}

	run, err := newAllocationRun(a, units, windows, cycle)
	if err != nil {
		return nil, err
	}
	for _, msg := range validation.Warnings {
		run.report.Warnings = append(run.report.Warnings, models.Warning{
			Type:    models.WarningMissingReference,
			Message: msg,
		})
	}

	for _, i := range run.visitOrder() {
		run.place(i)
	}

	a.logger.Debug().
		Int("units", len(units)).
		Int("dates", len(run.days)).
		Int("placed", len(run.report.Entries)).
		Int("failed", len(run.report.Failures)).
		Msg("allocation finished")
	return run.report, nil
}

func checkUnits(units []models.ContentUnit) error {
	for _, u := range units {
		if u.ID == "" {
			return fmt.Errorf("%w: unit at sequence %d has no id", ErrInvalidInput, u.SequenceIndex)
		}
		if u.RequiredMinutes <= 0 {
			return fmt.Errorf("%w: unit %q requires %d minutes", ErrInvalidInput, u.ID, u.RequiredMinutes)
		}
		if u.LinkType != "" && u.LinkType != models.LinkAfter {
			return fmt.Errorf("%w: unit %q has unsupported link type %q", ErrInvalidInput, u.ID, u.LinkType)
		}
	}
	return nil
}

// dayState is the running cursor for one date, scoped to a single run
type dayState struct {
	date  string
	role  models.DayRole
	spans []models.Span
	busy  []models.Interval
}

type allocationRun struct {
	alloc     *Allocator
	units     []models.ContentUnit
	byID      map[string]int
	days      []*dayState
	dayByDate map[string]*dayState
	links     map[string]string
	linked    map[string]bool
	exclusive map[string]map[string]bool
	parent    []int
	groupIDs  map[int]string
	placed    map[string]models.PlanEntry
	failed    map[string]bool
	report    *models.AllocationReport
}

func newAllocationRun(a *Allocator, units []models.ContentUnit, windows []models.DateWindow, cycle Cycle) (*allocationRun, error) {
	r := &allocationRun{
		alloc:     a,
		units:     units,
		byID:      make(map[string]int, len(units)),
		dayByDate: make(map[string]*dayState, len(windows)),
		links:     make(map[string]string),
		linked:    make(map[string]bool),
		exclusive: make(map[string]map[string]bool),
		parent:    make([]int, len(units)),
		groupIDs:  make(map[int]string),
		placed:    make(map[string]models.PlanEntry, len(units)),
		failed:    make(map[string]bool),
		report: &models.AllocationReport{
			Entries:  []models.PlanEntry{},
			Failures: []models.FailureReason{},
			Warnings: []models.Warning{},
			Unplaced: []string{},
		},
	}
	for i, u := range units {
		r.byID[u.ID] = i
		r.parent[i] = i
	}

	if err := r.buildDays(windows, cycle); err != nil {
		return nil, err
	}

	for _, u := range units {
		if _, ok := r.byID[u.LinkedUnitID]; ok && u.LinkedUnitID != u.ID {
			r.links[u.ID] = u.LinkedUnitID
			r.linked[u.ID] = true
			r.linked[u.LinkedUnitID] = true
			r.union(r.byID[u.ID], r.byID[u.LinkedUnitID])
		}
		for _, other := range u.ExclusiveWithIDs {
			if _, ok := r.byID[other]; !ok || other == u.ID {
				continue
			}
			r.addExclusive(u.ID, other)
			r.addExclusive(other, u.ID)
		}
	}
	return r, nil
}

func (r *allocationRun) buildDays(windows []models.DateWindow, cycle Cycle) error {
	sorted := make([]models.DateWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var cadenceDates []string
	for _, w := range sorted {
		if _, err := timeofday.ParseDate(w.Date); err != nil {
			return fmt.Errorf("%w: window date %q: %v", ErrInvalidInput, w.Date, err)
		}
		if _, dup := r.dayByDate[w.Date]; dup {
			return fmt.Errorf("%w: duplicate window for %s", ErrInvalidInput, w.Date)
		}
		if w.Role == models.RoleHoliday {
			r.dayByDate[w.Date] = nil
			continue
		}

		day := &dayState{date: w.Date, role: w.Role}
		for _, s := range w.Spans {
			if s.End <= s.Start {
				return fmt.Errorf("%w: span %s-%s on %s ends before it starts", ErrInvalidInput, s.Start, s.End, w.Date)
			}
			switch s.Category {
			case models.SpanPrimary, models.SpanSecondary:
				day.spans = append(day.spans, s)
			case models.SpanBlocked:
				day.busy = append(day.busy, s.Interval())
			default:
				return fmt.Errorf("%w: unknown span category %q on %s", ErrInvalidInput, s.Category, w.Date)
			}
		}
		sort.SliceStable(day.spans, func(i, j int) bool { return day.spans[i].Start < day.spans[j].Start })
		for _, c := range w.Commitments {
			day.busy = append(day.busy, c.Interval)
		}

		r.dayByDate[w.Date] = day
		r.days = append(r.days, day)
		cadenceDates = append(cadenceDates, w.Date)
	}

	roles, err := Classify(cadenceDates, cycle)
	if err != nil {
		return err
	}
	for _, day := range r.days {
		if day.role == "" {
			day.role = roles[day.date]
		}
	}
	return nil
}

func (r *allocationRun) addExclusive(a, b string) {
	if r.exclusive[a] == nil {
		r.exclusive[a] = make(map[string]bool)
	}
	r.exclusive[a][b] = true
}

func (r *allocationRun) find(i int) int {
	for r.parent[i] != i {
		r.parent[i] = r.parent[r.parent[i]]
		i = r.parent[i]
	}
	return i
}

func (r *allocationRun) union(a, b int) {
	ra, rb := r.find(a), r.find(b)
	if ra != rb {
		r.parent[rb] = ra
	}
}

// linkedGroupID mints one id per linked component, the first time any of its units is placed
func (r *allocationRun) linkedGroupID(i int) string {
	if !r.linked[r.units[i].ID] {
		return ""
	}
	root := r.find(i)
	if id, ok := r.groupIDs[root]; ok {
		return id
	}
	id := r.alloc.newID()
	r.groupIDs[root] = id
	return id
}

// visitOrder sorts by sequence index and pulls each linked predecessor ahead of its successor
func (r *allocationRun) visitOrder() []int {
	bySequence := make([]int, len(r.units))
	for i := range bySequence {
		bySequence[i] = i
	}
	sort.SliceStable(bySequence, func(a, b int) bool {
		return r.units[bySequence[a]].SequenceIndex < r.units[bySequence[b]].SequenceIndex
	})

	visited := make([]bool, len(r.units))
	order := make([]int, 0, len(r.units))
	var emit func(i int)
	emit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		if pred, ok := r.links[r.units[i].ID]; ok {
			emit(r.byID[pred])
		}
		order = append(order, i)
	}
	for _, i := range bySequence {
		emit(i)
	}
	return order
}

// candidateDays lists days in preference order for the unit's role
func (r *allocationRun) candidateDays(u models.ContentUnit) []*dayState {
	var study, review []*dayState
	for _, d := range r.days {
		switch d.role {
		case models.RoleStudy:
			study = append(study, d)
		case models.RoleReview:
			review = append(review, d)
		}
	}
	if u.Review {
		return append(review, study...)
	}
	return study
}

func (r *allocationRun) place(i int) {
	u := r.units[i]
	log := r.alloc.logger.With().Str("unit_id", u.ID).Int("sequence", u.SequenceIndex).Logger()

	candidates := r.candidateDays(u)
	if len(candidates) == 0 {
		r.fail(u, models.FailureNoStudyDays, 0, fmt.Sprintf("학습일이 없어 %s을(를) 배치할 수 없습니다", u.Label()))
		log.Debug().Msg("no candidate dates")
		return
	}
	allCandidates := candidates

	var pending []models.Warning
	excludedDates := r.exclusiveDates(u.ID)
	exclusiveApplied := false
	if len(excludedDates) > 0 {
		filtered := withoutDates(candidates, excludedDates)
		switch {
		case len(filtered) == 0:
			pending = append(pending, r.warning(models.WarningExclusiveRelaxed, msgExclusiveRelaxed, u))
		case len(filtered) < len(candidates):
			pending = append(pending, r.warning(models.WarningExclusiveAdjusted, msgExclusiveAdjusted, u))
			candidates = filtered
			exclusiveApplied = true
		}
	}

	if pred, ok := r.links[u.ID]; ok {
		if before, placed := r.placed[pred]; placed {
			day := r.dayByDate[before.Date]
			if !exclusiveApplied || !excludedDates[before.Date] {
				if entry, ok := r.tryDay(i, day, before.EndTime); ok {
					r.commit(day, entry, pending)
					log.Debug().Str("date", entry.Date).Msg("placed with linked predecessor")
					return
				}
			}
			candidates = predecessorDateLast(candidates, before.Date)
			pending = append(pending, r.warning(models.WarningLinkedRelaxed, msgLinkedRelaxed, u))
		} else if r.failed[pred] {
			pending = append(pending, r.warning(models.WarningLinkedUnplaced, msgLinkedUnplaced, u))
		}
	}

	for _, day := range candidates {
		if entry, ok := r.tryDay(i, day, 0); ok {
			r.commit(day, entry, pending)
			log.Debug().Str("date", entry.Date).Str("window", string(entry.WindowCategory)).Msg("placed")
			return
		}
	}

	largest := 0
	for _, day := range allCandidates {
		for _, s := range day.spans {
			largest = max(largest, LargestGap(s.Interval(), day.busy))
		}
	}
	r.fail(u, models.FailureInsufficientTime, largest,
		fmt.Sprintf("%s을(를) 배치할 시간이 부족합니다 (필요 %d분, 최대 가용 %d분)", u.Label(), u.RequiredMinutes, largest))
	log.Debug().Int("largest_free", largest).Msg("insufficient time")
}

// tryDay tries every primary span, then every secondary span, starting no earlier than notBefore
func (r *allocationRun) tryDay(i int, day *dayState, notBefore models.Clock) (models.PlanEntry, bool) {
	u := r.units[i]
	busy := mergeIntervals(day.busy)
	for _, category := range []models.SpanCategory{models.SpanPrimary, models.SpanSecondary} {
		for _, span := range day.spans {
			if span.Category != category {
				continue
			}
			window := models.Interval{Start: max(span.Start, notBefore), End: span.End}
			if window.Minutes() < u.RequiredMinutes {
				continue
			}
			if RemainingMinutes(window, busy) < u.RequiredMinutes {
				continue
			}
			start, ok := FirstFit(window, busy, u.RequiredMinutes)
			if !ok {
				continue
			}
			return models.PlanEntry{
				ContentUnitID:        u.ID,
				SequenceIndex:        u.SequenceIndex,
				ContentType:          u.Type,
				SubjectCategory:      u.SubjectCategory,
				Date:                 day.date,
				StartTime:            start,
				EndTime:              start.Add(u.RequiredMinutes),
				WindowCategory:       category,
				DayRole:              day.role,
				LinkedGroupID:        r.linkedGroupID(i),
				ExclusiveWithIndices: r.exclusiveIndices(u.ID),
			}, true
		}
	}
	return models.PlanEntry{}, false
}

func (r *allocationRun) commit(day *dayState, entry models.PlanEntry, pending []models.Warning) {
	day.busy = append(day.busy, models.Interval{Start: entry.StartTime, End: entry.EndTime})
	r.placed[entry.ContentUnitID] = entry
	r.report.Entries = append(r.report.Entries, entry)
	for _, w := range pending {
		w.Date = entry.Date
		r.report.Warnings = append(r.report.Warnings, w)
	}
}

func (r *allocationRun) fail(u models.ContentUnit, kind models.FailureType, largest int, msg string) {
	r.failed[u.ID] = true
	r.report.Unplaced = append(r.report.Unplaced, u.ID)
	r.report.Failures = append(r.report.Failures, models.FailureReason{
		Type:               kind,
		ContentUnitID:      u.ID,
		SequenceIndex:      u.SequenceIndex,
		RequiredMinutes:    u.RequiredMinutes,
		LargestFreeMinutes: largest,
		Message:            msg,
	})
}

func (r *allocationRun) warning(kind models.WarningType, msg string, u models.ContentUnit) models.Warning {
	return models.Warning{
		Type:          kind,
		Message:       fmt.Sprintf("%s: %s", u.Label(), msg),
		ContentUnitID: u.ID,
	}
}

// exclusiveDates returns dates already used by placed exclusive partners
func (r *allocationRun) exclusiveDates(id string) map[string]bool {
	dates := make(map[string]bool)
	for other := range r.exclusive[id] {
		if entry, ok := r.placed[other]; ok {
			dates[entry.Date] = true
		}
	}
	return dates
}

func (r *allocationRun) exclusiveIndices(id string) []int {
	if len(r.exclusive[id]) == 0 {
		return nil
	}
	indices := make([]int, 0, len(r.exclusive[id]))
	for other := range r.exclusive[id] {
		indices = append(indices, r.units[r.byID[other]].SequenceIndex)
	}
	sort.Ints(indices)
	return indices
}

// predecessorDateLast moves date to the end of days so other dates are tried first
func predecessorDateLast(days []*dayState, date string) []*dayState {
	out := withoutDates(days, map[string]bool{date: true})
	for _, d := range days {
		if d.date == date {
			out = append(out, d)
		}
	}
	return out
}

func withoutDates(days []*dayState, excluded map[string]bool) []*dayState {
	out := make([]*dayState, 0, len(days))
	for _, d := range days {
		if !excluded[d.date] {
			out = append(out, d)
		}
	}
	return out
}
