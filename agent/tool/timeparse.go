package tool

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrStartTimeRequired = errors.New("start_time is required")
	ErrStartTimeFormat   = errors.New("start_time must be ISO 8601 formatted")
)

var (
	offsetLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04Z07:00",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05-07",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15",
		"2006-01-02",
	}
)

// TimeParser turns tool and action timestamps into UTC instants.
// Input without an offset is read in the offset the local clock has at parse time.
type TimeParser struct {
	Location *time.Location
	Now      func() time.Time
}

func DefaultTimeParser() TimeParser {
	return TimeParser{Location: time.Local, Now: time.Now}
}

func (p TimeParser) Parse(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrStartTimeRequired
	}

	for _, layout := range offsetLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}

	local := p.localOffset()
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, value, local); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, ErrStartTimeFormat
}

// localOffset pins the zone to the offset in effect now, not on the parsed date.
func (p TimeParser) localOffset() *time.Location {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	name, offset := now().In(loc).Zone()
	return time.FixedZone(name, offset)
}
