package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/shared/daterange"
)

func d(raw string) daterange.Date {
	return daterange.MustParse(raw)
}

func storeWith(records ...calendar.DayRecord) *calendar.Store {
	s := calendar.NewStore()
	s.Merge(records...)
	return s
}

func rec(raw string, status calendar.Status) calendar.DayRecord {
	return calendar.DayRecord{Date: d(raw), Status: status}
}

func TestMachine_ClickOnBookedFromIdleIsNoop(t *testing.T) {
	s := storeWith(rec("2024-12-25", calendar.StatusBooked))
	m := NewMachine()

	out := m.Click(d("2024-12-25"), s)
	assert.Equal(t, EffectIgnored, out.Effect)
	assert.Equal(t, Idle{}, m.State())
}

func TestMachine_AnchorThenConfirm(t *testing.T) {
	s := storeWith(rec("2024-12-12", calendar.StatusAvailable))
	m := NewMachine()

	out := m.Click(d("2024-12-10"), s)
	assert.Equal(t, EffectAnchored, out.Effect)
	assert.Equal(t, AnchorSet{Anchor: d("2024-12-10")}, m.State())

	out = m.Click(d("2024-12-15"), s)
	assert.Equal(t, EffectConfirmed, out.Effect)
	assert.Equal(t, RangeConfirmed{Range: daterange.DateRange{Start: d("2024-12-10"), End: d("2024-12-15")}}, m.State())
}

func TestMachine_ReverseClickAutoSwaps(t *testing.T) {
	m := NewMachine()
	s := storeWith()

	m.Click(d("2024-12-10"), s)
	out := m.Click(d("2024-12-05"), s)

	require.Equal(t, EffectConfirmed, out.Effect)
	confirmed, ok := m.State().(RangeConfirmed)
	require.True(t, ok)
	assert.Equal(t, d("2024-12-05"), confirmed.Range.Start)
	assert.Equal(t, d("2024-12-10"), confirmed.Range.End)
}

func TestMachine_SameDayConfirmsSingleDayRange(t *testing.T) {
	m := NewMachine()
	s := storeWith()

	m.Click(d("2024-12-10"), s)
	m.Click(d("2024-12-10"), s)

	confirmed, ok := m.State().(RangeConfirmed)
	require.True(t, ok)
	assert.True(t, confirmed.Range.Single())
}

func TestMachine_RangeOverImmutableDayResets(t *testing.T) {
	s := storeWith(rec("2024-12-12", calendar.StatusBooked))
	m := NewMachine()

	m.Click(d("2024-12-10"), s)
	out := m.Click(d("2024-12-15"), s)

	assert.Equal(t, EffectRejected, out.Effect)
	assert.Equal(t, "2024-12-12", out.Conflict.Date.String())
	assert.Equal(t, Idle{}, m.State())
}

func TestMachine_ClickAfterConfirmRestartsSelection(t *testing.T) {
	s := storeWith()
	m := NewMachine()
	m.Click(d("2024-12-05"), s)
	m.Click(d("2024-12-10"), s)

	out := m.Click(d("2024-12-20"), s)
	assert.Equal(t, EffectAnchored, out.Effect)
	assert.True(t, out.MenuClosed)
	assert.Equal(t, AnchorSet{Anchor: d("2024-12-20")}, m.State())
}

func TestMachine_ImmutableClickKeepsConfirmedRange(t *testing.T) {
	s := storeWith(rec("2024-12-25", calendar.StatusPast))
	m := NewMachine()
	m.Click(d("2024-12-05"), s)
	m.Click(d("2024-12-10"), s)
	before := m.State()

	out := m.Click(d("2024-12-25"), s)
	assert.Equal(t, EffectIgnored, out.Effect)
	assert.Equal(t, before, m.State())
}

func TestMachine_ConfirmedRangesAreOrdered(t *testing.T) {
	s := storeWith()
	days := []string{"2024-12-31", "2024-12-01", "2025-01-15", "2024-11-30", "2024-12-15"}
	for _, a := range days {
		for _, b := range days {
			m := NewMachine()
			m.Click(d(a), s)
			m.Click(d(b), s)
			confirmed, ok := m.State().(RangeConfirmed)
			require.True(t, ok)
			assert.False(t, confirmed.Range.Start.After(confirmed.Range.End), "%s..%s", a, b)
		}
	}
}

func TestContains(t *testing.T) {
	r := RangeConfirmed{Range: daterange.Ordered(d("2024-12-05"), d("2024-12-10"))}
	assert.True(t, Contains(r, d("2024-12-07")))
	assert.False(t, Contains(r, d("2024-12-11")))
	assert.True(t, Contains(AnchorSet{Anchor: d("2024-12-05")}, d("2024-12-05")))
	assert.False(t, Contains(Idle{}, d("2024-12-05")))
}
