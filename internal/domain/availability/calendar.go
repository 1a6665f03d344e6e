package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/shared/daterange"
	"ownercal/internal/domain/shared/events"
)

var (
	ErrPropertyNotFound = errors.New("availability: property not found")
	ErrDateBooked       = errors.New("availability: date is already booked")
	ErrNoDates          = errors.New("availability: no dates given")
	ErrInvalidPrice     = errors.New("availability: price must be positive")
	ErrInvalidBooking   = errors.New("availability: check-out must be after check-in")
	ErrConcurrentUpdate = errors.New("availability: concurrent update detected")
)

type PropertyID string

// Booking is a confirmed stay. The check-out day itself is not occupied.
type Booking struct {
	Reference string
	CheckIn   daterange.Date
	CheckOut  daterange.Date
}

func (b Booking) Covers(d daterange.Date) bool {
	return !d.Before(b.CheckIn) && d.Before(b.CheckOut)
}

func (b Booking) Validate() error {
	if !b.CheckOut.After(b.CheckIn) {
		return ErrInvalidBooking
	}
	return nil
}

type ManualBlock struct {
	Date      daterange.Date
	Comment   *string
	CreatedAt time.Time
}

type PriceRule struct {
	Range     daterange.DateRange
	Price     int
	CreatedAt time.Time
}

// PropertyCalendar holds everything needed to answer a month view for one
// property: its base nightly price, confirmed bookings, owner blocks and
// price rules.
type PropertyCalendar struct {
	PropertyID PropertyID
	BasePrice  int
	Bookings   []Booking
	Blocks     map[daterange.Date]ManualBlock
	PriceRules []PriceRule
	Version    int64
	events.EventRecorder
}

type Repository interface {
	Calendar(ctx context.Context, id PropertyID) (*PropertyCalendar, error)
	Save(ctx context.Context, cal *PropertyCalendar) error
}

func NewCalendar(id PropertyID, basePrice int) *PropertyCalendar {
	return &PropertyCalendar{
		PropertyID: id,
		BasePrice:  basePrice,
		Blocks:     make(map[daterange.Date]ManualBlock),
	}
}

func (c *PropertyCalendar) IsBooked(d daterange.Date) bool {
	for _, b := range c.Bookings {
		if b.Covers(d) {
			return true
		}
	}
	return false
}

// PriceFor returns the price of the covering rule with the latest start date,
// falling back to the base price. Among rules starting on the same day the
// most recently added wins.
func (c *PropertyCalendar) PriceFor(d daterange.Date) int {
	price := c.BasePrice
	var best *PriceRule
	for i := range c.PriceRules {
		rule := &c.PriceRules[i]
		if !rule.Range.Contains(d) {
			continue
		}
		if best == nil || !rule.Range.Start.Before(best.Range.Start) {
			best = rule
		}
	}
	if best != nil {
		price = best.Price
	}
	return price
}

// Day resolves the status of d as seen on today:
// past > booked > manual_block > available.
func (c *PropertyCalendar) Day(d, today daterange.Date) calendar.DayRecord {
	rec := calendar.DayRecord{Date: d, Status: calendar.StatusAvailable}
	switch {
	case d.Before(today):
		rec.Status = calendar.StatusPast
	case c.IsBooked(d):
		rec.Status = calendar.StatusBooked
	default:
		if block, ok := c.Blocks[d]; ok {
			rec.Status = calendar.StatusManualBlock
			rec.Comment = block.Comment
		}
	}
	if rec.Status == calendar.StatusAvailable {
		price := c.PriceFor(d)
		rec.Price = &price
	}
	return rec
}

func (c *PropertyCalendar) Month(page calendar.Page, today daterange.Date) []calendar.DayRecord {
	days := page.Range().Days()
	out := make([]calendar.DayRecord, 0, len(days))
	for _, d := range days {
		out = append(out, c.Day(d, today))
	}
	return out
}

// SetAvailability blocks (available == false) or releases the given dates.
// Nothing changes when any of them is booked.
func (c *PropertyCalendar) SetAvailability(dates []daterange.Date, available bool, comment *string, now time.Time) error {
	if len(dates) == 0 {
		return ErrNoDates
	}
	for _, d := range dates {
		if c.IsBooked(d) {
			return fmt.Errorf("%w: %s", ErrDateBooked, d)
		}
	}
	if c.Blocks == nil {
		c.Blocks = make(map[daterange.Date]ManualBlock)
	}

	var changed []daterange.Date
	for _, d := range uniqueSorted(dates) {
		existing, blocked := c.Blocks[d]
		if available {
			if blocked {
				delete(c.Blocks, d)
				changed = append(changed, d)
			}
			continue
		}
		if blocked && sameComment(existing.Comment, comment) {
			continue
		}
		c.Blocks[d] = ManualBlock{Date: d, Comment: copyComment(comment), CreatedAt: now.UTC()}
		changed = append(changed, d)
	}
	if len(changed) == 0 {
		return nil
	}
	if available {
		c.Record(DaysReleasedEvent(c.PropertyID, changed, now))
	} else {
		c.Record(DaysBlockedEvent(c.PropertyID, changed, comment, now))
	}
	return nil
}

func (c *PropertyCalendar) AddPriceRule(r daterange.DateRange, price int, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if price <= 0 {
		return ErrInvalidPrice
	}
	c.PriceRules = append(c.PriceRules, PriceRule{Range: r, Price: price, CreatedAt: now.UTC()})
	c.Record(PriceRuleAddedEvent(c.PropertyID, r, price, now))
	return nil
}

func (c *PropertyCalendar) AddBooking(b Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	c.Bookings = append(c.Bookings, b)
	return nil
}

// Clone returns a deep copy without pending events.
func (c *PropertyCalendar) Clone() *PropertyCalendar {
	out := &PropertyCalendar{
		PropertyID: c.PropertyID,
		BasePrice:  c.BasePrice,
		Bookings:   append([]Booking(nil), c.Bookings...),
		Blocks:     make(map[daterange.Date]ManualBlock, len(c.Blocks)),
		PriceRules: append([]PriceRule(nil), c.PriceRules...),
		Version:    c.Version,
	}
	for d, b := range c.Blocks {
		b.Comment = copyComment(b.Comment)
		out.Blocks[d] = b
	}
	return out
}

// SortedBlocks returns the manual blocks ordered by date.
func (c *PropertyCalendar) SortedBlocks() []ManualBlock {
	out := make([]ManualBlock, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func uniqueSorted(dates []daterange.Date) []daterange.Date {
	seen := make(map[daterange.Date]struct{}, len(dates))
	out := make([]daterange.Date, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sameComment(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyComment(c *string) *string {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
