// Package timeofday holds minute-of-day arithmetic shared by the planner.
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used on every input and output.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds a Clock value.
const MinutesPerDay = 24 * 60

// ErrBadClock is returned for time-of-day strings that are not HH:MM or HH:MM:SS.
var ErrBadClock = errors.New("invalid time of day")

// Clock is a wall-clock time expressed in minutes after midnight.
type Clock int

// Parse reads "HH:MM" or "HH:MM:SS". The hour may be a single digit ("9:05");
// minutes and seconds must be two digits. Seconds are truncated. "24:00" is
// accepted as end of day.
func Parse(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	if !digits(parts[0], 1, 2) || !digits(parts[1], 2, 2) || (len(parts) == 3 && !digits(parts[2], 2, 2)) {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
		}
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return Clock(h*60 + m), nil
}

func digits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Clock {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock shifted by the given minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// MarshalJSON encodes the clock as an "HH:MM" string.
func (c Clock) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// UnmarshalJSON decodes an "HH:MM" or "HH:MM:SS" string.
func (c *Clock) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadClock, data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML encodes the clock as an "HH:MM" scalar.
func (c Clock) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML decodes an "HH:MM" scalar.
func (c *Clock) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Duration returns the minutes between start and end, or 0 when end is not after start.
func Duration(start, end Clock) int {
	if end <= start {
		return 0
	}
	return int(end - start)
}

// OverlapMinutes returns how many minutes two half-open ranges share.
func OverlapMinutes(aStart, aEnd, bStart, bEnd Clock) int {
	return Duration(max(aStart, bStart), min(aEnd, bEnd))
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
