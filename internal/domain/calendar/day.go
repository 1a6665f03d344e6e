package calendar

import (
	"errors"
	"fmt"

	"ownercal/internal/domain/shared/daterange"
)

var ErrUnknownStatus = errors.New("calendar: unknown day status")

type Status string

const (
	StatusAvailable   Status = "available"
	StatusBooked      Status = "booked"
	StatusPast        Status = "past"
	StatusManualBlock Status = "manual_block"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusAvailable, StatusBooked, StatusPast, StatusManualBlock:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// Immutable days cannot be part of a selectable range.
func (s Status) Immutable() bool {
	return s == StatusPast || s == StatusBooked
}

// DayRecord is the per-day view the backend returns for a property.
type DayRecord struct {
	Date    daterange.Date
	Status  Status
	Price   *int
	Comment *string
}

func (r DayRecord) Immutable() bool {
	return r.Status.Immutable()
}

// BlockComment is the comment of a manual block, empty for any other status.
func (r DayRecord) BlockComment() string {
	if r.Status != StatusManualBlock || r.Comment == nil {
		return ""
	}
	return *r.Comment
}

func (r DayRecord) equal(other DayRecord) bool {
	if r.Date != other.Date || r.Status != other.Status {
		return false
	}
	if (r.Price == nil) != (other.Price == nil) || (r.Price != nil && *r.Price != *other.Price) {
		return false
	}
	if (r.Comment == nil) != (other.Comment == nil) || (r.Comment != nil && *r.Comment != *other.Comment) {
		return false
	}
	return true
}
