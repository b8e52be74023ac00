package models

import "github.com/arnavshah/study-planner-api/internal/timeofday"

// Clock is a time of day in minutes after midnight, encoded as "HH:MM".
type Clock = timeofday.Clock

// ContentType identifies what kind of learning content a unit carries
type ContentType string

const (
	ContentBook      ContentType = "book"
	ContentLecture   ContentType = "lecture"
	ContentCustom    ContentType = "custom"
	ContentSelfStudy ContentType = "self_study"
)

// LinkType describes how a unit relates to the unit it links to
type LinkType string

// LinkAfter means the unit must follow the referenced unit
const LinkAfter LinkType = "after"

// ContentUnit is one piece of content awaiting placement
type ContentUnit struct {
	ID               string      `json:"id" yaml:"id" binding:"required"`
	Type             ContentType `json:"type" yaml:"type"`
	Title            string      `json:"title,omitempty" yaml:"title,omitempty"`
	SubjectCategory  string      `json:"subject_category,omitempty" yaml:"subject_category,omitempty"`
	RequiredMinutes  int         `json:"required_minutes" yaml:"required_minutes"`
	LinkedUnitID     string      `json:"linked_unit_id,omitempty" yaml:"linked_unit_id,omitempty"`
	LinkType         LinkType    `json:"link_type,omitempty" yaml:"link_type,omitempty"`
	ExclusiveWithIDs []string    `json:"exclusive_with_ids,omitempty" yaml:"exclusive_with_ids,omitempty"`
	SequenceIndex    int         `json:"sequence_index" yaml:"sequence_index"`
	Review           bool        `json:"review,omitempty" yaml:"review,omitempty"` // prefers review days
}

// Label returns the title when present, otherwise the id
func (u ContentUnit) Label() string {
	if u.Title != "" {
		return u.Title
	}
	return u.ID
}

// DayRole is the cadence role of a calendar date
type DayRole string

const (
	RoleStudy   DayRole = "study"
	RoleReview  DayRole = "review"
	RoleHoliday DayRole = "holiday"
)

// SpanCategory classifies a block of time on a date
type SpanCategory string

const (
	SpanPrimary   SpanCategory = "primary"
	SpanSecondary SpanCategory = "secondary"
	SpanBlocked   SpanCategory = "blocked"
)

// SlotType is the block type produced by the weekly block configuration
type SlotType string

const (
	SlotStudy     SlotType = "학습시간"
	SlotSelfStudy SlotType = "자율학습"
	SlotAcademy   SlotType = "학원일정"
	SlotTravel    SlotType = "이동시간"
	SlotLunch     SlotType = "점심시간"
)

// Category maps a slot type onto its span category
func (t SlotType) Category() (SpanCategory, bool) {
	switch t {
	case SlotStudy:
		return SpanPrimary, true
	case SlotSelfStudy:
		return SpanSecondary, true
	case SlotAcademy, SlotTravel, SlotLunch:
		return SpanBlocked, true
	}
	return "", false
}

// TimeSlotEntry is one configured block on a date
type TimeSlotEntry struct {
	Type  SlotType `json:"type" yaml:"type"`
	Start Clock    `json:"start" yaml:"start"`
	End   Clock    `json:"end" yaml:"end"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Interval is a half-open time range on a single date
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Minutes returns the interval length
func (i Interval) Minutes() int {
	return timeofday.Duration(i.Start, i.End)
}

// Span is a categorized, contiguous block of time on one date
type Span struct {
	Category SpanCategory `json:"category"`
	Start    Clock        `json:"start"`
	End      Clock        `json:"end"`
	Label    string       `json:"label,omitempty"`
}

// Interval returns the span bounds
func (s Span) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// ExistingPlan is a previously scheduled plan supplied by the persistence layer
type ExistingPlan struct {
	Date      string `json:"date" yaml:"date"`
	StartTime Clock  `json:"start_time" yaml:"start_time"`
	EndTime   Clock  `json:"end_time" yaml:"end_time"`
}

// Commitment is an interval already occupied on a date
type Commitment struct {
	Interval
	Source string `json:"source,omitempty"`
}

// DateWindow is one date's usable time, read-only to the engine
type DateWindow struct {
	Date        string       `json:"date"`
	Role        DayRole      `json:"role,omitempty"` // set only when marked upstream
	Spans       []Span       `json:"spans"`
	Commitments []Commitment `json:"commitments,omitempty"`
}

// CycleOptions configures the repeating study/review cadence
type CycleOptions struct {
	CycleType  string `json:"cycle_type,omitempty" yaml:"cycle_type,omitempty"`
	StudyDays  int    `json:"study_days,omitempty" yaml:"study_days,omitempty"`
	ReviewDays int    `json:"review_day,omitempty" yaml:"review_day,omitempty"`
}

// AllocationRequest is the full input of one scheduling run
type AllocationRequest struct {
	AvailableDates          []string                   `json:"available_dates" yaml:"available_dates"`
	Units                   []ContentUnit              `json:"content_units" yaml:"content_units" binding:"dive"`
	DateTimeSlots           map[string][]TimeSlotEntry `json:"date_time_slots" yaml:"date_time_slots"`
	ExistingPlans           []ExistingPlan             `json:"existing_plans,omitempty" yaml:"existing_plans,omitempty"`
	DateRoles               map[string]DayRole         `json:"date_roles,omitempty" yaml:"date_roles,omitempty"`
	Options                 CycleOptions               `json:"options" yaml:"options"`
	RecommendedDailyMinutes int                        `json:"recommended_daily_minutes,omitempty" yaml:"recommended_daily_minutes,omitempty"`
}

// PlanEntry is one output placement
type PlanEntry struct {
	ContentUnitID        string       `json:"content_unit_id"`
	SequenceIndex        int          `json:"sequence_index"`
	ContentType          ContentType  `json:"content_type,omitempty"`
	SubjectCategory      string       `json:"subject_category,omitempty"`
	Date                 string       `json:"date"`
	StartTime            Clock        `json:"start_time"`
	EndTime              Clock        `json:"end_time"`
	WindowCategory       SpanCategory `json:"window_category"`
	DayRole              DayRole      `json:"day_role"`
	LinkedGroupID        string       `json:"linked_group_id,omitempty"`
	ExclusiveWithIndices []int        `json:"exclusive_with_indices,omitempty"`
}

// Minutes returns the placed duration
func (e PlanEntry) Minutes() int {
	return timeofday.Duration(e.StartTime, e.EndTime)
}

// FailureType names why a unit could not be placed
type FailureType string

const (
	FailureNoStudyDays      FailureType = "no_study_days"
	FailureInsufficientTime FailureType = "insufficient_time"
)

// FailureReason represents why a unit ended unplaced
type FailureReason struct {
	Type               FailureType `json:"type"`
	ContentUnitID      string      `json:"content_unit_id"`
	SequenceIndex      int         `json:"sequence_index"`
	RequiredMinutes    int         `json:"required_minutes"`
	LargestFreeMinutes int         `json:"largest_free_minutes"`
	Message            string      `json:"message"`
}

// WarningType names the kind of soft advisory
type WarningType string

const (
	WarningLinkedRelaxed     WarningType = "linked_relaxed"
	WarningLinkedUnplaced    WarningType = "linked_unplaced"
	WarningExclusiveAdjusted WarningType = "exclusive_adjusted"
	WarningExclusiveRelaxed  WarningType = "exclusive_relaxed"
	WarningMissingReference  WarningType = "missing_reference"
	WarningOverload          WarningType = "overload"
)

// Warning is an informational advisory attached to a run
type Warning struct {
	Type          WarningType `json:"type"`
	Message       string      `json:"message"`
	ContentUnitID string      `json:"content_unit_id,omitempty"`
	Date          string      `json:"date,omitempty"`
	Weekday       string      `json:"weekday,omitempty"`
	Minutes       int         `json:"minutes,omitempty"`
}

// AllocationReport is the immutable outcome of one run
type AllocationReport struct {
	Entries  []PlanEntry     `json:"plans"`
	Failures []FailureReason `json:"failure_reasons"`
	Warnings []Warning       `json:"warnings"`
	Unplaced []string        `json:"unplaced"` // the dock
}

// WarningMessages flattens warnings to their message text
func (r *AllocationReport) WarningMessages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Message)
	}
	return out
}

// ValidationResult is the outcome of relationship validation
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// DayPlan groups the entries placed on one date
type DayPlan struct {
	Date         string      `json:"date"`
	Weekday      string      `json:"weekday"`
	DayRole      DayRole     `json:"day_role,omitempty"`
	TotalMinutes int         `json:"total_minutes"`
	Entries      []PlanEntry `json:"entries"`
}

// Timeline is the read-only preview projection of a report
type Timeline struct {
	Days     []DayPlan `json:"plans"`
	Warnings []Warning `json:"warnings"`
}

// PlanResponse is the data structure returned by the plan endpoints
type PlanResponse struct {
	RunID          string          `json:"run_id,omitempty"`
	Plans          []PlanEntry     `json:"plans"`
	FailureReasons []FailureReason `json:"failure_reasons"`
	Warnings       []Warning       `json:"warnings"`
	Unplaced       []string        `json:"unplaced"`
	Timeline       Timeline        `json:"timeline"`
}
