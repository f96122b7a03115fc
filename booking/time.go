package booking

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date at UTC midnight
// =============================================================================

// DayLayout is the wire and storage format of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date. Its instant is midnight UTC, so Unix() matches
// epoch-seconds-at-midnight semantics.
type Day struct {
	t time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t (in UTC) to its calendar date.
func DayOf(t time.Time) Day {
	t = t.UTC()
	return NewDay(t.Year(), t.Month(), t.Day())
}

// DayFromUnix accepts epoch seconds and truncates to midnight.
func DayFromUnix(sec int64) Day { return DayOf(time.Unix(sec, 0)) }

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: invalid day %q (use YYYY-MM-DD)", ErrInvalidInput, s)
	}
	return DayOf(t), nil
}

func (d Day) Time() time.Time       { return d.t }
func (d Day) Unix() int64           { return d.t.Unix() }
func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Before(o Day) bool     { return d.t.Before(o.t) }
func (d Day) After(o Day) bool      { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool      { return d.t.Equal(o.t) }
func (d Day) AddDays(n int) Day     { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) At(hour int) time.Time { return d.t.Add(time.Duration(hour) * time.Hour) }
func (d Day) String() string        { return d.t.Format(DayLayout) }

func (d Day) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Day) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
