package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/study-planner-api/internal/timeofday"
	"github.com/arnavshah/study-planner-api/pkg/database"
	"github.com/arnavshah/study-planner-api/pkg/export"
	"github.com/arnavshah/study-planner-api/pkg/models"
	"github.com/arnavshah/study-planner-api/pkg/scheduler"
)

// PreviewPlans runs an allocation without persisting it
func (h *Handler) PreviewPlans(c *gin.Context) {
	req, report, timeline, ok := h.allocate(c)
	if !ok {
		return
	}
	h.RecordUsage(c, len(req.Units), len(report.Entries))
	c.JSON(http.StatusOK, planResponse("", report, timeline))
}

// CommitPlans runs an allocation and persists the run with all of its entries
func (h *Handler) CommitPlans(c *gin.Context) {
	req, report, timeline, ok := h.allocate(c)
	if !ok {
		return
	}

	runID, err := h.Store.SaveRun(c.GetString(ctxStudentID), len(req.Units), report)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save plans"})
		return
	}
	h.RecordUsage(c, len(req.Units), len(report.Entries))
	c.JSON(http.StatusCreated, planResponse(runID, report, timeline))
}

// allocate binds the request, merges the student's stored plans as commitments
// and runs the allocator. It writes the error response itself when ok is false.
func (h *Handler) allocate(c *gin.Context) (req *models.AllocationRequest, report *models.AllocationReport, timeline models.Timeline, ok bool) {
	req = &models.AllocationRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, timeline, false
	}

	studentID := c.GetString(ctxStudentID)
	existing, err := h.Store.ExistingPlans(studentID, req.AvailableDates)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load existing plans"})
		return nil, nil, timeline, false
	}
	req.ExistingPlans = append(req.ExistingPlans, existing...)

	opts := &req.Options
	if opts.CycleType == "" && opts.StudyDays == 0 && opts.ReviewDays == 0 {
		opts.CycleType = h.DefaultCycleType
	}

	start := time.Now()
	report, err = h.Allocator.Run(*req)
	if err != nil {
		h.Metrics.ObserveRun(nil, nil, time.Since(start))
		writeAllocationError(c, err)
		return nil, nil, timeline, false
	}

	limit := req.RecommendedDailyMinutes
	if limit <= 0 {
		limit = h.RecommendedDailyMinutes
	}
	timeline = scheduler.Preview(report, scheduler.PreviewOptions{RecommendedDailyMinutes: limit})
	h.Metrics.ObserveRun(report, timeline.Warnings, time.Since(start))

	h.Logger.Debug().
		Str("student_id", studentID).
		Int("units", len(req.Units)).
		Int("placed", len(report.Entries)).
		Int("failed", len(report.Failures)).
		Int("warnings", len(timeline.Warnings)).
		Msg("allocation run")
	return req, report, timeline, true
}

func writeAllocationError(c *gin.Context, err error) {
	var verr *scheduler.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, verr.Result)
	case errors.Is(err, scheduler.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Allocation failed"})
	}
}

func planResponse(runID string, report *models.AllocationReport, timeline models.Timeline) models.PlanResponse {
	return models.PlanResponse{
		RunID:          runID,
		Plans:          report.Entries,
		FailureReasons: report.Failures,
		Warnings:       timeline.Warnings,
		Unplaced:       report.Unplaced,
		Timeline:       timeline,
	}
}

// ListPlans returns the student's persisted plans, optionally bounded by from/to dates
func (h *Handler) ListPlans(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	plans, err := h.Store.ListPlans(c.GetString(ctxStudentID), from, to)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list plans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// ExportCSV returns the student's persisted plans as a CSV file
func (h *Handler) ExportCSV(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	plans, err := h.Store.ListPlans(c.GetString(ctxStudentID), from, to)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list plans"})
		return
	}

	var out strings.Builder
	if err := export.WritePlans(&out, plans); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not export plans"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="plans.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out.String()))
}

// DeleteRun discards a persisted run and its entries
func (h *Handler) DeleteRun(c *gin.Context) {
	err := h.Store.DeleteRun(c.GetString(ctxStudentID), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Run deleted"})
}

func dateRange(c *gin.Context) (string, string, bool) {
	from, to := c.Query("from"), c.Query("to")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := timeofday.ParseDate(d); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
			return "", "", false
		}
	}
	return from, to, true
}
