package stats

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Interval is the bucket size of trend series.
type Interval string

const (
	Weekly  Interval = "week"
	Monthly Interval = "month"
)

var ErrInvalidInterval = errors.New("interval must be one of: week, month")

func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Weekly, Monthly:
		return Interval(s), nil
	case "":
		return Weekly, nil
	}
	return "", ErrInvalidInterval
}

// Key labels the bucket holding `t`: ISO 8601 week ("2021-W01") or month ("2021-01").
func (iv Interval) Key(t time.Time) string {
	if iv == Monthly {
		return t.Format("2006-01")
	}
	return ISOWeekKey(t)
}

// Start returns the first day of the bucket holding `t`, at midnight in t's location.
func (iv Interval) Start(t time.Time) time.Time {
	if iv == Monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return WeekStart(t)
}

// ISOWeekKey returns the ISO 8601 week of `t`, e.g. 2020-12-31 -> "2020-W53", 2021-01-04 -> "2021-W01".
func ISOWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekStart returns the Monday of t's ISO week, at midnight.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}
