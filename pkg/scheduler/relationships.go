package scheduler

import (
	"fmt"
	"strings"

	"github.com/arnavshah/study-planner-api/pkg/models"
)

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

// ValidateRelationships checks the link and exclusion graph between units.
// Self references, duplicate ids and link cycles are errors. References to
// unknown units are warnings and are ignored during allocation.
func ValidateRelationships(units []models.ContentUnit) models.ValidationResult {
	result := models.ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}
	addError := func(format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		result.Valid = false
	}

	known := make(map[string]bool, len(units))
	for _, u := range units {
		if known[u.ID] {
			addError("중복된 슬롯 ID입니다: %s (duplicate slot id)", u.ID)
			continue
		}
		known[u.ID] = true
	}

	links := make(map[string]string, len(units))
	for _, u := range units {
		if u.LinkedUnitID != "" {
			switch {
			case u.LinkedUnitID == u.ID:
				addError("슬롯 %s이(가) 자기 자신을 연계 대상으로 참조합니다 (references itself)", u.ID)
			case !known[u.LinkedUnitID]:
				result.Warnings = append(result.Warnings, missingReference(u.ID, u.LinkedUnitID))
			default:
				if _, seen := links[u.ID]; !seen {
					links[u.ID] = u.LinkedUnitID
				}
			}
		}
		for _, other := range u.ExclusiveWithIDs {
			switch {
			case other == u.ID:
				addError("슬롯 %s이(가) 자기 자신을 배타 대상으로 참조합니다 (references itself)", u.ID)
			case !known[other]:
				result.Warnings = append(result.Warnings, missingReference(u.ID, other))
			}
		}
	}

	// Every unit has at most one outgoing link, so each walk is a simple chain.
	state := make(map[string]visitState, len(links))
	for _, u := range units {
		if state[u.ID] != unvisited {
			continue
		}
		var path []string
		id := u.ID
		for {
			state[id] = inProgress
			path = append(path, id)
			next, ok := links[id]
			if !ok || state[next] == done {
				break
			}
			if state[next] == inProgress {
				start := indexOf(path, next)
				cycle := append(append([]string{}, path[start:]...), next)
				addError("슬롯 %s에서 순환 참조가 발견되었습니다: %s (circular reference)", next, strings.Join(cycle, " → "))
				break
			}
			id = next
		}
		for _, p := range path {
			state[p] = done
		}
	}

	return result
}

func missingReference(from, to string) string {
	return fmt.Sprintf("슬롯 %s이(가) 참조하는 슬롯 %s이(가) 존재하지 않습니다 (referenced slot does not exist)", from, to)
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}
