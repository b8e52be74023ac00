package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arnavshah/study-planner-api/pkg/models"
)

const scenarioYAML = `
available_dates: ["2025-03-03", "2025-03-04"]
content_units:
  - id: u1
    type: book
    title: 국어 1강
    required_minutes: 90
    sequence_index: 0
  - id: u2
    type: lecture
    required_minutes: 60
    sequence_index: 1
    exclusive_with_ids: [u1]
date_time_slots:
  "2025-03-03":
    - {type: 학습시간, start: "09:00", end: "12:00"}
  "2025-03-04":
    - {type: 학습시간, start: "09:00", end: "12:00"}
options:
  cycle_type: none
`

func writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAllocateJSON(t *testing.T) {
	path := writeScenario(t, "scenario.yaml", scenarioYAML)

	out, err := execute(t, "allocate", "-f", path)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	var resp models.PlanResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(resp.Plans) != 2 {
		t.Fatalf("Expected 2 plans, got %d", len(resp.Plans))
	}
	if resp.Plans[0].Date == resp.Plans[1].Date {
		t.Errorf("Expected exclusive units on different dates, both on %s", resp.Plans[0].Date)
	}
}

func TestAllocateCSV(t *testing.T) {
	path := writeScenario(t, "scenario.yaml", scenarioYAML)

	out, err := execute(t, "allocate", "-f", path, "--format", "csv")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Errorf("Expected header and 2 rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "2025-03-03,09:00,10:30,90,u1") {
		t.Errorf("Unexpected first row %q", lines[1])
	}
}

func TestValidateReportsErrors(t *testing.T) {
	path := writeScenario(t, "scenario.json", `{"content_units": [
		{"id": "a", "required_minutes": 10, "linked_unit_id": "b", "link_type": "after"},
		{"id": "b", "required_minutes": 10, "linked_unit_id": "a", "link_type": "after"}
	]}`)

	out, err := execute(t, "validate", "-f", path)
	if err == nil {
		t.Fatal("Expected a circular link to fail validation")
	}
	if !strings.Contains(out, "circular reference") {
		t.Errorf("Expected the cycle to be reported, got %s", out)
	}
}

func TestAllocateRejectsUnknownFormat(t *testing.T) {
	path := writeScenario(t, "scenario.yaml", scenarioYAML)
	if _, err := execute(t, "allocate", "-f", path, "--format", "xml"); err == nil {
		t.Error("Expected an unknown format to fail")
	}
}
