package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetupWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "test").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug output to be dropped outside development")
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("Expected JSON fields in output, got %q", out)
	}

	buf.Reset()
	logger = SetupWithWriter("development", &buf)
	logger.Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("Expected debug output in development")
	}
}
