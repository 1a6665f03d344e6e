package daterange

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	d, err := Parse("2024-12-25")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.December, Day: 25}, d)
	assert.Equal(t, "2024-12-25", d.String())

	_, err = Parse("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDate_AddDaysCrossesYear(t *testing.T) {
	d := MustParse("2024-12-31")
	assert.Equal(t, "2025-01-01", d.AddDays(1).String())
	assert.Equal(t, "2024-02-29", MustParse("2024-03-01").AddDays(-1).String())
}

func TestDate_JSON(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-12-05"}`), &payload))
	assert.Equal(t, MustParse("2024-12-05"), payload.Date)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-12-05"}`, string(raw))
}

func TestOrdered_SwapsReversedPair(t *testing.T) {
	a := MustParse("2024-12-10")
	b := MustParse("2024-12-05")

	dr := Ordered(a, b)
	assert.Equal(t, b, dr.Start)
	assert.Equal(t, a, dr.End)
	assert.NoError(t, dr.Validate())
}

func TestNewRange_RejectsReversed(t *testing.T) {
	_, err := NewRange(MustParse("2024-12-10"), MustParse("2024-12-05"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDateRange_DaysInclusive(t *testing.T) {
	dr := Ordered(MustParse("2024-12-05"), MustParse("2024-12-10"))
	days := dr.Days()
	require.Len(t, days, 6)
	assert.Equal(t, "2024-12-05", days[0].String())
	assert.Equal(t, "2024-12-10", days[5].String())
	assert.Equal(t, 6, dr.Len())

	single := Ordered(MustParse("2024-12-05"), MustParse("2024-12-05"))
	assert.True(t, single.Single())
	assert.Len(t, single.Days(), 1)
}

func TestDateRange_ContainsOverlaps(t *testing.T) {
	dr := Ordered(MustParse("2024-12-05"), MustParse("2024-12-10"))
	assert.True(t, dr.Contains(MustParse("2024-12-05")))
	assert.True(t, dr.Contains(MustParse("2024-12-10")))
	assert.False(t, dr.Contains(MustParse("2024-12-11")))

	assert.True(t, dr.Overlaps(Ordered(MustParse("2024-12-10"), MustParse("2024-12-20"))))
	assert.False(t, dr.Overlaps(Ordered(MustParse("2024-12-11"), MustParse("2024-12-20"))))
}
