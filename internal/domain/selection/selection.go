package selection

import (
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/shared/daterange"
)

// Selection is one of Idle, AnchorSet or RangeConfirmed.
type Selection interface {
	isSelection()
}

type Idle struct{}

type AnchorSet struct {
	Anchor daterange.Date
}

// RangeConfirmed holds a validated range; Start <= End.
type RangeConfirmed struct {
	Range daterange.DateRange
}

func (Idle) isSelection()           {}
func (AnchorSet) isSelection()      {}
func (RangeConfirmed) isSelection() {}

// Contains reports whether d is highlighted by s.
func Contains(s Selection, d daterange.Date) bool {
	switch v := s.(type) {
	case AnchorSet:
		return v.Anchor == d
	case RangeConfirmed:
		return v.Range.Contains(d)
	default:
		return false
	}
}

// Lookup is the read side of the day cache used for validation.
type Lookup interface {
	Get(d daterange.Date) (calendar.DayRecord, bool)
	FirstImmutable(r daterange.DateRange) (calendar.DayRecord, bool)
}

var _ Lookup = (*calendar.Store)(nil)
