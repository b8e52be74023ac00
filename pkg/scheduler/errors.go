package scheduler

import (
	"errors"
	"strings"

	"github.com/arnavshah/study-planner-api/pkg/models"
)

// ErrInvalidInput marks upstream contract violations that abort the whole run
var ErrInvalidInput = errors.New("invalid allocation input")

// ValidationError is returned when relationship validation blocks a run
type ValidationError struct {
	Result models.ValidationResult
}

func (e *ValidationError) Error() string {
	return "relationship validation failed: " + strings.Join(e.Result.Errors, "; ")
}
