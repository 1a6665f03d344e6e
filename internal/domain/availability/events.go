package availability

import (
	"time"

	"ownercal/internal/domain/shared/daterange"
)

const (
	EventDaysBlocked    = "calendar.days_blocked"
	EventDaysReleased   = "calendar.days_released"
	EventPriceRuleAdded = "calendar.price_rule_added"
)

type DaysBlocked struct {
	PropertyID string    `json:"property_id"`
	Dates      []string  `json:"dates"`
	Comment    *string   `json:"comment"`
	At         time.Time `json:"occurred_at"`
}

func (e DaysBlocked) EventName() string     { return EventDaysBlocked }
func (e DaysBlocked) AggregateID() string   { return e.PropertyID }
func (e DaysBlocked) OccurredAt() time.Time { return e.At }

type DaysReleased struct {
	PropertyID string    `json:"property_id"`
	Dates      []string  `json:"dates"`
	At         time.Time `json:"occurred_at"`
}

func (e DaysReleased) EventName() string     { return EventDaysReleased }
func (e DaysReleased) AggregateID() string   { return e.PropertyID }
func (e DaysReleased) OccurredAt() time.Time { return e.At }

type PriceRuleAdded struct {
	PropertyID string    `json:"property_id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Price      int       `json:"price"`
	At         time.Time `json:"occurred_at"`
}

func (e PriceRuleAdded) EventName() string     { return EventPriceRuleAdded }
func (e PriceRuleAdded) AggregateID() string   { return e.PropertyID }
func (e PriceRuleAdded) OccurredAt() time.Time { return e.At }

func DaysBlockedEvent(id PropertyID, dates []daterange.Date, comment *string, at time.Time) DaysBlocked {
	return DaysBlocked{PropertyID: string(id), Dates: formatDates(dates), Comment: copyComment(comment), At: at.UTC()}
}

func DaysReleasedEvent(id PropertyID, dates []daterange.Date, at time.Time) DaysReleased {
	return DaysReleased{PropertyID: string(id), Dates: formatDates(dates), At: at.UTC()}
}

func PriceRuleAddedEvent(id PropertyID, r daterange.DateRange, price int, at time.Time) PriceRuleAdded {
	return PriceRuleAdded{
		PropertyID: string(id),
		StartDate:  r.Start.String(),
		EndDate:    r.End.String(),
		Price:      price,
		At:         at.UTC(),
	}
}

func formatDates(dates []daterange.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}
