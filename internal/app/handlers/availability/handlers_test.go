package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "ownercal/internal/app/outbox"
	domain "ownercal/internal/domain/availability"
	"ownercal/internal/domain/shared/daterange"
)

var now = time.Date(2024, time.December, 5, 12, 0, 0, 0, time.UTC)

type flakyRepo struct {
	cal       *domain.PropertyCalendar
	conflicts int
	saves     int
	saveErr   error
}

func (r *flakyRepo) Calendar(ctx context.Context, id domain.PropertyID) (*domain.PropertyCalendar, error) {
	if r.cal == nil || r.cal.PropertyID != id {
		return nil, domain.ErrPropertyNotFound
	}
	return r.cal.Clone(), nil
}

func (r *flakyRepo) Save(ctx context.Context, cal *domain.PropertyCalendar) error {
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrConcurrentUpdate
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	cal.Version++
	r.cal = cal.Clone()
	return nil
}

type recordingOutbox struct {
	records []appoutbox.EventRecord
}

func (o *recordingOutbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	o.records = append(o.records, rec)
	return nil
}

func (o *recordingOutbox) Flush(context.Context) error { return nil }

func dates(raw ...string) []daterange.Date {
	out := make([]daterange.Date, 0, len(raw))
	for _, r := range raw {
		out = append(out, daterange.MustParse(r))
	}
	return out
}

func TestSetAvailabilityHandler_RetriesOnConflict(t *testing.T) {
	repo := &flakyRepo{cal: domain.NewCalendar("42", 5000), conflicts: 1}
	box := &recordingOutbox{}
	h := &SetAvailabilityHandler{Repo: repo, Outbox: box, Now: func() time.Time { return now }}

	res, err := h.Handle(context.Background(), SetAvailabilityCommand{PropertyID: "42", Dates: dates("2024-12-10")})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, 2, repo.saves)
	require.Len(t, box.records, 1)
	assert.Equal(t, domain.EventDaysBlocked, box.records[0].Name)
	assert.Equal(t, "42", box.records[0].PropertyID)
	assert.NotEmpty(t, box.records[0].ID)
}

func TestSetAvailabilityHandler_NoEventsWhenSaveFails(t *testing.T) {
	repo := &flakyRepo{cal: domain.NewCalendar("42", 5000), saveErr: errors.New("disk full")}
	box := &recordingOutbox{}
	h := &SetAvailabilityHandler{Repo: repo, Outbox: box}

	_, err := h.Handle(context.Background(), SetAvailabilityCommand{PropertyID: "42", Dates: dates("2024-12-10")})
	assert.Error(t, err)
	assert.Empty(t, box.records)
}

func TestSetAvailabilityHandler_NoopSkipsSave(t *testing.T) {
	repo := &flakyRepo{cal: domain.NewCalendar("42", 5000)}
	h := &SetAvailabilityHandler{Repo: repo}

	_, err := h.Handle(context.Background(), SetAvailabilityCommand{PropertyID: "42", Dates: dates("2024-12-10"), Available: true})
	require.NoError(t, err)
	assert.Zero(t, repo.saves)
}

func TestSetAvailabilityHandler_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &flakyRepo{cal: domain.NewCalendar("42", 5000), conflicts: maxSaveAttempts}
	h := &SetAvailabilityHandler{Repo: repo}

	_, err := h.Handle(context.Background(), SetAvailabilityCommand{PropertyID: "42", Dates: dates("2024-12-10")})
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
}

func TestAddPriceRuleHandler(t *testing.T) {
	repo := &flakyRepo{cal: domain.NewCalendar("42", 5000)}
	box := &recordingOutbox{}
	h := &AddPriceRuleHandler{Repo: repo, Outbox: box, Now: func() time.Time { return now }}

	r := daterange.Ordered(daterange.MustParse("2024-12-10"), daterange.MustParse("2024-12-12"))
	_, err := h.Handle(context.Background(), AddPriceRuleCommand{PropertyID: "42", Range: r, Price: 7000})
	require.NoError(t, err)
	assert.Equal(t, 7000, repo.cal.PriceFor(daterange.MustParse("2024-12-11")))
	require.Len(t, box.records, 1)
	assert.JSONEq(t,
		`{"property_id":"42","start_date":"2024-12-10","end_date":"2024-12-12","price":7000,"occurred_at":"2024-12-05T12:00:00Z"}`,
		string(box.records[0].Payload))
}

func TestGetMonthHandler(t *testing.T) {
	h := &GetMonthHandler{Repo: &flakyRepo{cal: domain.NewCalendar("42", 5000)}, Now: func() time.Time { return now }}
	days, err := h.Handle(context.Background(), GetMonthQuery{PropertyID: "42", Year: 2024, Month: 12})
	require.NoError(t, err)
	require.Len(t, days, 31)
	assert.Equal(t, "past", days[0].Status)
	assert.Equal(t, "available", days[4].Status)

	_, err = h.Handle(context.Background(), GetMonthQuery{PropertyID: "9", Year: 2024, Month: 12})
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)
}

func TestContracts_Validate(t *testing.T) {
	var verr ValidationError
	assert.ErrorAs(t, GetMonthQuery{PropertyID: "42", Year: 2024, Month: 0}.Validate(), &verr)
	assert.ErrorAs(t, GetMonthQuery{Year: 2024, Month: 1}.Validate(), &verr)
	assert.NoError(t, GetMonthQuery{PropertyID: "42", Year: 2024, Month: 1}.Validate())

	assert.ErrorAs(t, SetAvailabilityCommand{PropertyID: "42"}.Validate(), &verr)
	assert.Equal(t, "dates", verr.Field)

	bad := AddPriceRuleCommand{PropertyID: "42", Range: daterange.DateRange{Start: daterange.MustParse("2024-12-12"), End: daterange.MustParse("2024-12-10")}, Price: 1}
	assert.ErrorAs(t, bad.Validate(), &verr)
	assert.Equal(t, "end_date", verr.Field)
}

func TestHandlers_RequireRepository(t *testing.T) {
	_, err := (&GetMonthHandler{}).Handle(context.Background(), GetMonthQuery{})
	assert.ErrorIs(t, err, ErrRepositoryMissing)
	_, err = (&SetAvailabilityHandler{}).Handle(context.Background(), SetAvailabilityCommand{})
	assert.ErrorIs(t, err, ErrRepositoryMissing)
}
