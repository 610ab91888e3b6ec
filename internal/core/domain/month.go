package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Month identifies a calendar month. Opening balances, recalibrations and
// payroll periods are all keyed by Month.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return MonthOf(t), nil
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start is midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the exclusive upper bound: the start of the next month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

func (m Month) Prev() Month { return MonthOf(m.Start().AddDate(0, -1, 0)) }
func (m Month) Next() Month { return MonthOf(m.End()) }

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) IsZero() bool { return m.Year == 0 }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
