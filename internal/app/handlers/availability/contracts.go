package availability

import (
	"fmt"
	"strings"
	"time"

	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/shared/daterange"
)

const (
	getMonthKey        = "calendar.month"
	setAvailabilityKey = "calendar.set_availability"
	addPriceRuleKey    = "calendar.add_price_rule"
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type GetMonthQuery struct {
	PropertyID string
	Year       int
	Month      int
}

func (q GetMonthQuery) Key() string { return getMonthKey }

func (q GetMonthQuery) Validate() error {
	if strings.TrimSpace(q.PropertyID) == "" {
		return ValidationError{Field: "property_id", Reason: "required"}
	}
	if !q.Page().Valid() {
		return ValidationError{Field: "month", Reason: fmt.Sprintf("%04d-%02d is out of range", q.Year, q.Month)}
	}
	return nil
}

func (q GetMonthQuery) Page() calendar.Page {
	return calendar.Page{Year: q.Year, Month: time.Month(q.Month)}
}

type SetAvailabilityCommand struct {
	PropertyID string
	Dates      []daterange.Date
	Available  bool
	Comment    *string
}

func (c SetAvailabilityCommand) Key() string { return setAvailabilityKey }

func (c SetAvailabilityCommand) Validate() error {
	if strings.TrimSpace(c.PropertyID) == "" {
		return ValidationError{Field: "property_id", Reason: "required"}
	}
	if len(c.Dates) == 0 {
		return ValidationError{Field: "dates", Reason: "at least one date is required"}
	}
	return nil
}

type AddPriceRuleCommand struct {
	PropertyID string
	Range      daterange.DateRange
	Price      int
}

func (c AddPriceRuleCommand) Key() string { return addPriceRuleKey }

func (c AddPriceRuleCommand) Validate() error {
	if strings.TrimSpace(c.PropertyID) == "" {
		return ValidationError{Field: "property_id", Reason: "required"}
	}
	if err := c.Range.Validate(); err != nil {
		return ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	if c.Price <= 0 {
		return ValidationError{Field: "price", Reason: "must be a positive integer"}
	}
	return nil
}

// Status is the acknowledgement returned by owner commands.
type Status struct {
	Status string `json:"status"`
}
