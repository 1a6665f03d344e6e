package daterange

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the ISO calendar-date wire format.
const Layout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: start must not be after end")
	ErrInvalidDate  = errors.New("daterange: invalid calendar date")
)

// Date is a calendar day without time of day or zone. The zero value is "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New normalizes overflowing components the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return Of(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Of returns the calendar day of t in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func Parse(raw string) (Date, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Of(t), nil
}

func MustParse(raw string) Date {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(Layout)
}

func (d Date) AddDays(n int) Date {
	return New(d.Year, d.Month, d.Day+n)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.Time().Compare(other.Time())
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is a closed interval [Start, End] of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// Ordered builds a range from two days in either order.
func Ordered(a, b Date) DateRange {
	if b.Before(a) {
		a, b = b, a
	}
	return DateRange{Start: a, End: b}
}

func NewRange(start, end Date) (DateRange, error) {
	dr := DateRange{Start: start, End: end}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrInvalidRange
	}
	if dr.Start.After(dr.End) {
		return ErrInvalidRange
	}
	return nil
}

// Len is the number of days in the range, both ends included.
func (dr DateRange) Len() int {
	if dr.Validate() != nil {
		return 0
	}
	return int(dr.End.Time().Sub(dr.Start.Time()).Hours()/24) + 1
}

// Days expands the range into its explicit list of dates.
func (dr DateRange) Days() []Date {
	n := dr.Len()
	out := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dr.Start.AddDays(i))
	}
	return out
}

func (dr DateRange) Single() bool {
	return dr.Start == dr.End
}

func (dr DateRange) Contains(d Date) bool {
	return !d.Before(dr.Start) && !d.After(dr.End)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return !dr.Start.After(other.End) && !other.Start.After(dr.End)
}

func (dr DateRange) String() string {
	return dr.Start.String() + ".." + dr.End.String()
}
