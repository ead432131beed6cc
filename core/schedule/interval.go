package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const minutesPerDay = 24 * 60

var errInvalidClock = errors.New("invalid time of day, expected HH:MM")

// ClockTime is a time of day in minutes since midnight.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses "HH:MM" (a trailing ":SS" is accepted and ignored).
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errInvalidClock
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errInvalidClock
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errInvalidClock
	}
	return NewClockTime(h, m), nil
}

func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Valid() bool { return c >= 0 && c < minutesPerDay }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errInvalidClock
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan reads a postgres TIME column.
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case time.Time:
		*c = NewClockTime(v.Hour(), v.Minute())
		return nil
	default:
		return errors.Errorf("cannot scan %T into ClockTime", src)
	}
}

func (c *ClockTime) scanString(s string) error {
	parsed, err := ParseClock(s)
	if err != nil {
		return errors.Wrapf(err, "scanning %q", s)
	}
	*c = parsed
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

func (iv Interval) Valid() bool {
	return iv.Start.Valid() && iv.End.Valid() && iv.Start < iv.End
}

// Overlaps reports whether iv and other share any instant. Touching endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

// Partition splits window into consecutive slots of step minutes; a trailing partial slot is dropped.
func Partition(window Interval, step int) []Interval {
	if step <= 0 || !window.Valid() {
		return nil
	}
	slots := make([]Interval, 0, int(window.End-window.Start)/step)
	for start := window.Start; start+ClockTime(step) <= window.End; start += ClockTime(step) {
		slots = append(slots, Interval{Start: start, End: start + ClockTime(step)})
	}
	return slots
}
