package selection

import (
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/shared/daterange"
)

type Effect int

const (
	// EffectIgnored: the click hit a past or booked day.
	EffectIgnored Effect = iota
	EffectAnchored
	EffectConfirmed
	// EffectRejected: the range spans an immutable day and was discarded.
	EffectRejected
)

func (e Effect) String() string {
	switch e {
	case EffectIgnored:
		return "ignored"
	case EffectAnchored:
		return "anchored"
	case EffectConfirmed:
		return "confirmed"
	case EffectRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome describes what a click did.
type Outcome struct {
	Effect    Effect
	Selection Selection
	// Conflict is the immutable day that caused a rejection.
	Conflict calendar.DayRecord
	// MenuClosed is set when a confirmed range was discarded by the click.
	MenuClosed bool
}

// Machine is the click-driven range selection state machine. It is not safe
// for concurrent use; the owning session serializes access.
type Machine struct {
	state Selection
}

func NewMachine() *Machine {
	return &Machine{state: Idle{}}
}

func (m *Machine) State() Selection {
	if m.state == nil {
		return Idle{}
	}
	return m.state
}

func (m *Machine) Reset() {
	m.state = Idle{}
}

// Click applies one click on d against the cached days.
func (m *Machine) Click(d daterange.Date, days Lookup) Outcome {
	if rec, ok := days.Get(d); ok && rec.Immutable() {
		return Outcome{Effect: EffectIgnored, Selection: m.State()}
	}

	closed := false
	if _, ok := m.State().(RangeConfirmed); ok {
		m.Reset()
		closed = true
	}

	switch cur := m.State().(type) {
	case AnchorSet:
		r := daterange.Ordered(cur.Anchor, d)
		if conflict, blocked := days.FirstImmutable(r); blocked {
			m.Reset()
			return Outcome{Effect: EffectRejected, Selection: m.state, Conflict: conflict}
		}
		m.state = RangeConfirmed{Range: r}
		return Outcome{Effect: EffectConfirmed, Selection: m.state}
	default:
		m.state = AnchorSet{Anchor: d}
		return Outcome{Effect: EffectAnchored, Selection: m.state, MenuClosed: closed}
	}
}
