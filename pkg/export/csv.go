package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/arnavshah/study-planner-api/pkg/models"
)

// Header is the column order of exported plans
var Header = []string{
	"date", "start_time", "end_time", "minutes", "content_unit_id", "sequence_index",
	"content_type", "subject_category", "window_category", "day_role", "linked_group_id", "exclusive_with_indices",
}

// WritePlans writes plans to w as CSV, one row per entry
func WritePlans(w io.Writer, plans []models.PlanEntry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, p := range plans {
		indices := make([]string, 0, len(p.ExclusiveWithIndices))
		for _, i := range p.ExclusiveWithIndices {
			indices = append(indices, strconv.Itoa(i))
		}
		err := writer.Write([]string{
			p.Date,
			p.StartTime.String(),
			p.EndTime.String(),
			strconv.Itoa(p.Minutes()),
			p.ContentUnitID,
			strconv.Itoa(p.SequenceIndex),
			string(p.ContentType),
			p.SubjectCategory,
			string(p.WindowCategory),
			string(p.DayRole),
			p.LinkedGroupID,
			strings.Join(indices, "|"),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
