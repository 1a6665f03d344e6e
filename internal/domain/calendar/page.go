package calendar

import (
	"fmt"
	"time"

	"ownercal/internal/domain/shared/daterange"
)

// Page is one calendar month, the unit of loading and caching.
type Page struct {
	Year  int
	Month time.Month
}

func PageOf(d daterange.Date) Page {
	return Page{Year: d.Year, Month: d.Month}
}

func CurrentPage(now time.Time) Page {
	return PageOf(daterange.Of(now))
}

// Next wraps December into January of the following year.
func (p Page) Next() Page {
	if p.Month == time.December {
		return Page{Year: p.Year + 1, Month: time.January}
	}
	return Page{Year: p.Year, Month: p.Month + 1}
}

func (p Page) Advance(n int) Page {
	for i := 0; i < n; i++ {
		p = p.Next()
	}
	return p
}

// Window returns n consecutive pages starting at p.
func (p Page) Window(n int) []Page {
	out := make([]Page, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, p)
		p = p.Next()
	}
	return out
}

// Distance counts pages from p to other; negative when other is earlier.
func (p Page) Distance(other Page) int {
	return (other.Year-p.Year)*12 + int(other.Month) - int(p.Month)
}

func (p Page) First() daterange.Date {
	return daterange.Date{Year: p.Year, Month: p.Month, Day: 1}
}

func (p Page) Last() daterange.Date {
	return p.Next().First().AddDays(-1)
}

func (p Page) Range() daterange.DateRange {
	return daterange.DateRange{Start: p.First(), End: p.Last()}
}

func (p Page) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

func (p Page) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
