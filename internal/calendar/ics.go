package calendar

import (
	"fmt"
	"strings"
	"time"

	"classmate/internal/model"
	"classmate/internal/schedule"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	productID       = "-//classmate//timetable//EN"
	localTimeFormat = "20060102T150405"
)

var rruleWeekdays = map[schedule.Weekday]rrule.Weekday{
	schedule.Monday:    rrule.MO,
	schedule.Tuesday:   rrule.TU,
	schedule.Wednesday: rrule.WE,
	schedule.Thursday:  rrule.TH,
	schedule.Friday:    rrule.FR,
	schedule.Saturday:  rrule.SA,
	schedule.Sunday:    rrule.SU,
}

// WeeklyRule returns the recurrence for a course and its first occurrence on or
// after from's date, at the period's wall-clock start in from's location.
func WeeklyRule(day schedule.Weekday, start time.Duration, from time.Time) (string, time.Time, error) {
	wd, ok := rruleWeekdays[day]
	if !ok {
		return "", time.Time{}, fmt.Errorf("invalid weekday %d", day)
	}

	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{wd},
		Dtstart:   midnight.Add(start),
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build rrule: %w", err)
	}

	first := r.After(midnight, true)
	if first.IsZero() {
		return "", time.Time{}, fmt.Errorf("no occurrence for %s", day)
	}

	rule := rrule.ROption{Freq: rrule.WEEKLY, Byweekday: []rrule.Weekday{wd}}
	return rule.RRuleString(), first, nil
}

// BuildTimetable renders courses as a weekly-recurring iCalendar feed.
// Courses whose periods are not in the table are skipped. Event times are
// written as wall-clock times with a TZID in now's location, so BYDAY always
// refers to the same day as DTSTART.
func BuildTimetable(courses []*model.Course, periods *schedule.PeriodTable, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Class schedule")

	tzid := zoneID(now.Location())
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
	}

	for _, c := range courses {
		start, end, ok := periods.Bounds(c.StartPeriod, c.EndPeriod)
		if !ok {
			continue
		}

		rule, first, err := WeeklyRule(c.DayOfWeek, start, now)
		if err != nil {
			return "", err
		}

		event := cal.AddEvent(c.ID + "@classmate")
		event.SetDtStampTime(now)
		setEventTimes(event, first, first.Add(end-start), tzid)
		event.SetSummary(c.Name)
		if c.Classroom != nil {
			event.SetLocation(*c.Classroom)
		}
		if desc := describe(c); desc != "" {
			event.SetDescription(desc)
		}
		event.AddRrule(rule)
	}

	return cal.Serialize(), nil
}

// zoneID returns the IANA name to use as TZID, or "" when times should be
// written in UTC.
func zoneID(loc *time.Location) string {
	name := loc.String()
	if name == "UTC" || name == "Local" || name == "" {
		return ""
	}
	return name
}

func setEventTimes(event *ical.VEvent, start, end time.Time, tzid string) {
	if tzid == "" {
		event.SetStartAt(start)
		event.SetEndAt(end)
		return
	}
	event.SetProperty(ical.ComponentPropertyDtStart, start.Format(localTimeFormat), ical.WithTZID(tzid))
	event.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localTimeFormat), ical.WithTZID(tzid))
}

func describe(c *model.Course) string {
	var parts []string
	if c.Teacher != nil && *c.Teacher != "" {
		parts = append(parts, "Teacher: "+*c.Teacher)
	}
	parts = append(parts, fmt.Sprintf("Periods %d-%d", c.StartPeriod, c.EndPeriod))
	return strings.Join(parts, "\n")
}
