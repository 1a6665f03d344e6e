package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ownercal/internal/app/dispatch"
	"ownercal/internal/app/host"
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/selection"
	"ownercal/internal/domain/shared/daterange"
)

type fakeBackend struct {
	mu      sync.Mutex
	days    map[daterange.Date]calendar.DayRecord
	fetches []calendar.Page
	changes []dispatch.AvailabilityChange
	rules   []dispatch.PriceRule
	failSet error
}

func newFakeBackend(records ...calendar.DayRecord) *fakeBackend {
	b := &fakeBackend{days: make(map[daterange.Date]calendar.DayRecord)}
	for _, r := range records {
		b.days[r.Date] = r
	}
	return b
}

func (b *fakeBackend) FetchMonth(ctx context.Context, propertyID string, page calendar.Page) ([]calendar.DayRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches = append(b.fetches, page)
	var out []calendar.DayRecord
	for _, d := range page.Range().Days() {
		rec, ok := b.days[d]
		if !ok {
			rec = calendar.DayRecord{Date: d, Status: calendar.StatusAvailable}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *fakeBackend) SetAvailability(ctx context.Context, change dispatch.AvailabilityChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, change)
	if b.failSet != nil {
		return b.failSet
	}
	for _, d := range change.Dates {
		if change.Available {
			delete(b.days, d)
			continue
		}
		b.days[d] = calendar.DayRecord{Date: d, Status: calendar.StatusManualBlock, Comment: change.Comment}
	}
	return nil
}

func (b *fakeBackend) AddPriceRule(ctx context.Context, rule dispatch.PriceRule) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, rule)
	return nil
}

func (b *fakeBackend) Fetches() []calendar.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]calendar.Page(nil), b.fetches...)
}

type scriptedHost struct {
	answers  []host.Answer
	prompts  []host.Prompt
	notices  []host.Notice
	expanded bool
}

func (h *scriptedHost) Ask(ctx context.Context, p host.Prompt) (host.Answer, error) {
	h.prompts = append(h.prompts, p)
	if len(h.answers) == 0 {
		return host.Answer{}, nil
	}
	a := h.answers[0]
	h.answers = h.answers[1:]
	return a, nil
}

func (h *scriptedHost) Notify(ctx context.Context, n host.Notice) error {
	h.notices = append(h.notices, n)
	return nil
}

func (h *scriptedHost) Expand(context.Context) error {
	h.expanded = true
	return nil
}

type recordingRenderer struct {
	views []View
}

func (r *recordingRenderer) Render(ctx context.Context, v View) error {
	r.views = append(r.views, v)
	return nil
}

func d(raw string) daterange.Date { return daterange.MustParse(raw) }

func now() time.Time { return time.Date(2024, time.November, 20, 9, 0, 0, 0, time.UTC) }

func newSession(t *testing.T, b *fakeBackend, h *scriptedHost, r *recordingRenderer) *Session {
	t.Helper()
	s, err := New(Options{PropertyID: "42", Backend: b, Host: h, Renderer: r, Now: now, DefaultPrice: "5000"})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	return s
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Backend: newFakeBackend(), Host: &scriptedHost{}})
	assert.ErrorIs(t, err, ErrMissingProperty)
	_, err = New(Options{PropertyID: "1", Host: &scriptedHost{}})
	assert.ErrorIs(t, err, ErrMissingBackend)
	_, err = New(Options{PropertyID: "1", Backend: newFakeBackend()})
	assert.ErrorIs(t, err, ErrMissingHost)
}

func TestSession_StartLoadsInitialWindow(t *testing.T) {
	b := newFakeBackend()
	h := &scriptedHost{}
	r := &recordingRenderer{}
	s := newSession(t, b, h, r)

	assert.True(t, h.expanded)
	assert.Len(t, b.Fetches(), 3)
	require.NotEmpty(t, r.views)
	last := r.views[len(r.views)-1]
	assert.Len(t, last.Pages, 3)
	assert.Equal(t, 30+31+31, len(last.Days))
	assert.Equal(t, selection.Idle{}, s.Selection())
}

func TestSession_ClickOnBookedDayIsNoop(t *testing.T) {
	b := newFakeBackend(calendar.DayRecord{Date: d("2024-12-25"), Status: calendar.StatusBooked})
	s := newSession(t, b, &scriptedHost{}, nil)

	res, err := s.Click(context.Background(), d("2024-12-25"))
	require.NoError(t, err)
	assert.Equal(t, selection.EffectIgnored, res.Outcome.Effect)
	assert.Equal(t, selection.Idle{}, s.Selection())
}

func TestSession_UnblockRangeThroughMenu(t *testing.T) {
	b := newFakeBackend(
		calendar.DayRecord{Date: d("2024-12-06"), Status: calendar.StatusManualBlock},
	)
	h := &scriptedHost{answers: []host.Answer{{Confirmed: true, Value: string(dispatch.KindUnblock)}}}
	r := &recordingRenderer{}
	s := newSession(t, b, h, r)
	ctx := context.Background()

	res, err := s.Click(ctx, d("2024-12-10"))
	require.NoError(t, err)
	assert.Equal(t, selection.AnchorSet{Anchor: d("2024-12-10")}, s.Selection())
	assert.Nil(t, res.Action)

	res, err = s.Click(ctx, d("2024-12-05"))
	require.NoError(t, err)
	assert.Equal(t, selection.EffectConfirmed, res.Outcome.Effect)
	require.NotNil(t, res.Action)
	require.NoError(t, res.Action.Err)

	require.Len(t, h.prompts, 1)
	assert.Equal(t, "Range actions", h.prompts[0].Title)

	require.Len(t, b.changes, 1)
	change := b.changes[0]
	assert.True(t, change.Available)
	assert.Nil(t, change.Comment)
	require.Len(t, change.Dates, 6)
	assert.Equal(t, d("2024-12-05"), change.Dates[0])
	assert.Equal(t, d("2024-12-10"), change.Dates[5])

	assert.Equal(t, selection.Idle{}, s.Selection())
	fetches := b.Fetches()
	require.Len(t, fetches, 6)
	assert.Equal(t, calendar.Page{Year: 2024, Month: time.November}, fetches[3])

	rec, ok := s.Day(d("2024-12-06"))
	require.True(t, ok)
	assert.Equal(t, calendar.StatusAvailable, rec.Status)

	for _, v := range r.views[len(r.views)-2:] {
		assert.Equal(t, selection.Idle{}, v.Selection)
	}
}

func TestSession_RejectedRangeNotifies(t *testing.T) {
	b := newFakeBackend(calendar.DayRecord{Date: d("2024-12-12"), Status: calendar.StatusBooked})
	h := &scriptedHost{}
	s := newSession(t, b, h, nil)
	ctx := context.Background()

	_, err := s.Click(ctx, d("2024-12-10"))
	require.NoError(t, err)
	res, err := s.Click(ctx, d("2024-12-15"))
	require.NoError(t, err)

	assert.Equal(t, selection.EffectRejected, res.Outcome.Effect)
	assert.Equal(t, selection.Idle{}, s.Selection())
	require.Len(t, h.notices, 1)
	assert.Contains(t, h.notices[0].Message, "2024-12-12")
	assert.Empty(t, h.prompts)
}

func TestSession_DismissedMenuKeepsRange(t *testing.T) {
	h := &scriptedHost{answers: []host.Answer{{Confirmed: false}}}
	b := newFakeBackend()
	r := &recordingRenderer{}
	s := newSession(t, b, h, r)
	ctx := context.Background()

	_, _ = s.Click(ctx, d("2024-12-10"))
	res, err := s.Click(ctx, d("2024-12-12"))
	require.NoError(t, err)
	assert.Nil(t, res.Action)
	confirmed := selection.RangeConfirmed{Range: daterange.Ordered(d("2024-12-10"), d("2024-12-12"))}
	assert.Equal(t, confirmed, s.Selection())
	assert.Equal(t, confirmed, r.views[len(r.views)-1].Selection)
	assert.Empty(t, b.changes)
}

func TestSession_ActOnRangeLeftByDismissedMenu(t *testing.T) {
	h := &scriptedHost{answers: []host.Answer{
		{Confirmed: false},
		{Confirmed: true, Value: "painting"},
	}}
	b := newFakeBackend()
	s := newSession(t, b, h, nil)
	ctx := context.Background()

	_, _ = s.Click(ctx, d("2024-12-10"))
	_, err := s.Click(ctx, d("2024-12-12"))
	require.NoError(t, err)

	res, err := s.Act(ctx, dispatch.KindBlock)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Len(t, b.changes, 1)
	assert.False(t, b.changes[0].Available)
	assert.Len(t, b.changes[0].Dates, 3)
	require.NotNil(t, b.changes[0].Comment)
	assert.Equal(t, "painting", *b.changes[0].Comment)
	assert.Equal(t, selection.Idle{}, s.Selection())

	_, err = s.Act(ctx, dispatch.KindBlock)
	assert.ErrorIs(t, err, dispatch.ErrNothingSelected)
}

func TestSession_ClickAfterDismissedMenuStartsOver(t *testing.T) {
	h := &scriptedHost{answers: []host.Answer{{Confirmed: false}}}
	s := newSession(t, newFakeBackend(), h, nil)
	ctx := context.Background()

	_, _ = s.Click(ctx, d("2024-12-10"))
	_, _ = s.Click(ctx, d("2024-12-12"))
	res, err := s.Click(ctx, d("2024-12-20"))
	require.NoError(t, err)
	assert.True(t, res.Outcome.MenuClosed)
	assert.Equal(t, selection.AnchorSet{Anchor: d("2024-12-20")}, s.Selection())
}

func TestSession_ResyncClearsSelection(t *testing.T) {
	r := &recordingRenderer{}
	s := newSession(t, newFakeBackend(), &scriptedHost{}, r)
	ctx := context.Background()

	_, _ = s.Click(ctx, d("2024-12-10"))
	require.Equal(t, selection.AnchorSet{Anchor: d("2024-12-10")}, s.Selection())

	_, err := s.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, selection.Idle{}, s.Selection())
	assert.Equal(t, selection.Idle{}, r.views[len(r.views)-1].Selection)
}

func TestSession_SingleDayMenuOffersUnblockForManualBlock(t *testing.T) {
	comment := "repairs"
	b := newFakeBackend(calendar.DayRecord{Date: d("2024-12-06"), Status: calendar.StatusManualBlock, Comment: &comment})
	h := &scriptedHost{answers: []host.Answer{{Confirmed: false}}}
	s := newSession(t, b, h, nil)
	ctx := context.Background()

	_, _ = s.Click(ctx, d("2024-12-06"))
	_, err := s.Click(ctx, d("2024-12-06"))
	require.NoError(t, err)

	require.Len(t, h.prompts, 1)
	menu := h.prompts[0]
	require.Len(t, menu.Options, 2)
	assert.Equal(t, string(dispatch.KindUnblock), menu.Options[0].ID)
	assert.Contains(t, menu.Message, "repairs")
}

func TestSession_MutationFailureStillResyncs(t *testing.T) {
	b := newFakeBackend()
	b.failSet = errors.New("boom")
	h := &scriptedHost{answers: []host.Answer{
		{Confirmed: true, Value: string(dispatch.KindBlock)},
		{Confirmed: true, Value: "guests"},
	}}
	s := newSession(t, b, h, nil)
	ctx := context.Background()

	_, _ = s.Click(ctx, d("2024-12-10"))
	res, err := s.Click(ctx, d("2024-12-11"))
	require.NoError(t, err)
	require.NotNil(t, res.Action)
	assert.Error(t, res.Action.Err)
	assert.Equal(t, selection.Idle{}, s.Selection())
	assert.Len(t, b.Fetches(), 6)
}

func TestSession_ActRequiresConfirmedRange(t *testing.T) {
	s := newSession(t, newFakeBackend(), &scriptedHost{}, nil)
	_, err := s.Act(context.Background(), dispatch.KindUnblock)
	assert.ErrorIs(t, err, dispatch.ErrNothingSelected)
}

func TestSession_ScrollLoadsMore(t *testing.T) {
	b := newFakeBackend()
	s := newSession(t, b, &scriptedHost{}, nil)

	batch, err := s.Scroll(context.Background(), calendar.Page{Year: 2025, Month: time.January})
	require.NoError(t, err)
	assert.Len(t, batch.Loaded, 3)
	assert.Len(t, s.View().Pages, 6)
}

func TestSession_ClosedRejectsCalls(t *testing.T) {
	s := newSession(t, newFakeBackend(), &scriptedHost{}, nil)
	s.Close()

	_, err := s.Click(context.Background(), d("2024-12-10"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Resync(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
