package schedule

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const clockLayout = "15:04"

// Period maps a period number to its wall-clock bounds (HH:MM).
type Period struct {
	Number int    `yaml:"number" json:"number"`
	Start  string `yaml:"start" json:"start"`
	End    string `yaml:"end" json:"end"`
}

type periodFile struct {
	Periods []Period `yaml:"periods"`
}

// PeriodTable is an ordered, validated set of periods numbered from 1.
type PeriodTable struct {
	periods []Period
}

// DefaultPeriods is the hourly grid from 08:00 to 20:00.
func DefaultPeriods() []Period {
	periods := make([]Period, 0, 12)
	for i := 0; i < 12; i++ {
		periods = append(periods, Period{
			Number: i + 1,
			Start:  fmt.Sprintf("%02d:00", 8+i),
			End:    fmt.Sprintf("%02d:00", 9+i),
		})
	}
	return periods
}

func DefaultPeriodTable() *PeriodTable {
	t, _ := NewPeriodTable(DefaultPeriods())
	return t
}

func NewPeriodTable(periods []Period) (*PeriodTable, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("period table is empty")
	}

	var prevEnd time.Time
	for i, p := range periods {
		if p.Number != i+1 {
			return nil, fmt.Errorf("period %d: expected number %d", p.Number, i+1)
		}
		start, err := time.Parse(clockLayout, p.Start)
		if err != nil {
			return nil, fmt.Errorf("period %d: invalid start %q", p.Number, p.Start)
		}
		end, err := time.Parse(clockLayout, p.End)
		if err != nil {
			return nil, fmt.Errorf("period %d: invalid end %q", p.Number, p.End)
		}
		if !start.Before(end) {
			return nil, fmt.Errorf("period %d: start must be before end", p.Number)
		}
		if i > 0 && start.Before(prevEnd) {
			return nil, fmt.Errorf("period %d: starts before period %d ends", p.Number, p.Number-1)
		}
		prevEnd = end
	}

	cp := make([]Period, len(periods))
	copy(cp, periods)
	return &PeriodTable{periods: cp}, nil
}

// LoadPeriods reads a YAML period table from path. An empty path yields the default table.
func LoadPeriods(path string) (*PeriodTable, error) {
	if path == "" {
		return DefaultPeriodTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read period table: %w", err)
	}

	var f periodFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse period table: %w", err)
	}

	return NewPeriodTable(f.Periods)
}

func (t *PeriodTable) MaxPeriod() int {
	return len(t.periods)
}

func (t *PeriodTable) Lookup(number int) (Period, bool) {
	if number < 1 || number > len(t.periods) {
		return Period{}, false
	}
	return t.periods[number-1], true
}

func (t *PeriodTable) All() []Period {
	cp := make([]Period, len(t.periods))
	copy(cp, t.periods)
	return cp
}

// Bounds returns the wall-clock start of startPeriod and end of endPeriod as
// offsets from midnight.
func (t *PeriodTable) Bounds(startPeriod, endPeriod int) (time.Duration, time.Duration, bool) {
	first, ok := t.Lookup(startPeriod)
	if !ok {
		return 0, 0, false
	}
	last, ok := t.Lookup(endPeriod)
	if !ok {
		return 0, 0, false
	}
	return clockOffset(first.Start), clockOffset(last.End), true
}

func clockOffset(hhmm string) time.Duration {
	ts, err := time.Parse(clockLayout, hhmm)
	if err != nil {
		return 0
	}
	return time.Duration(ts.Hour())*time.Hour + time.Duration(ts.Minute())*time.Minute
}
