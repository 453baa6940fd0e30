package schedule

import (
	"fmt"

	"classmate/internal/apperror"
)

// Weekday is an ISO day of week, Monday = 1 through Sunday = 7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// TimeSlot is a day of week plus an inclusive period range.
type TimeSlot struct {
	Day         Weekday `json:"day_of_week"`
	StartPeriod int     `json:"start_period"`
	EndPeriod   int     `json:"end_period"`
}

// Validate checks the slot against the configured number of periods.
func (s TimeSlot) Validate(maxPeriod int) error {
	if !s.Day.Valid() {
		return apperror.Validation("day_of_week must be between 1 and 7")
	}
	if s.StartPeriod < 1 || s.EndPeriod < 1 {
		return apperror.Validation("periods must be at least 1")
	}
	if s.StartPeriod > maxPeriod || s.EndPeriod > maxPeriod {
		return apperror.Validation(fmt.Sprintf("periods must be at most %d", maxPeriod))
	}
	if s.StartPeriod > s.EndPeriod {
		return apperror.Validation("start_period must not be after end_period")
	}
	return nil
}

func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return Overlaps(s, other)
}

// Overlaps reports whether two slots share a day and at least one period.
// It is symmetric, and a well-formed slot overlaps itself.
func Overlaps(a, b TimeSlot) bool {
	return a.Day == b.Day && a.StartPeriod <= b.EndPeriod && a.EndPeriod >= b.StartPeriod
}
