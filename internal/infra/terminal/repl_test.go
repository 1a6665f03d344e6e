package terminal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ownercal/internal/app/console"
	"ownercal/internal/app/dispatch"
	"ownercal/internal/app/loader"
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/selection"
	"ownercal/internal/domain/shared/daterange"
)

type fakeController struct {
	clicks   []daterange.Date
	acts     []dispatch.Kind
	scrolled []calendar.Page
	retried  []calendar.Page
	resyncs  int
	resets   int
	view     console.View
	actErr   error
	past     map[daterange.Date]bool
}

func (f *fakeController) Click(_ context.Context, d daterange.Date) (console.ClickResult, error) {
	f.clicks = append(f.clicks, d)
	if f.past[d] {
		return console.ClickResult{Outcome: selection.Outcome{Selection: selection.Idle{}, Effect: selection.EffectIgnored}}, nil
	}
	return console.ClickResult{Outcome: selection.Outcome{Selection: selection.AnchorSet{Anchor: d}}}, nil
}

func (f *fakeController) Act(_ context.Context, kind dispatch.Kind) (dispatch.Result, error) {
	f.acts = append(f.acts, kind)
	return dispatch.Result{}, f.actErr
}

func (f *fakeController) Scroll(_ context.Context, p calendar.Page) (loader.Batch, error) {
	f.scrolled = append(f.scrolled, p)
	return loader.Batch{}, nil
}

func (f *fakeController) Retry(_ context.Context, p calendar.Page) (loader.Batch, error) {
	f.retried = append(f.retried, p)
	return loader.Batch{}, nil
}

func (f *fakeController) Resync(context.Context) (loader.Batch, error) {
	f.resyncs++
	return loader.Batch{}, nil
}

func (f *fakeController) ResetSelection() { f.resets++ }

func (f *fakeController) View() console.View { return f.view }

func TestRun_Commands(t *testing.T) {
	dec := calendar.Page{Year: 2024, Month: time.December}
	ctrl := &fakeController{view: console.View{
		Pages:  []calendar.Page{dec, dec.Next(), dec.Advance(2)},
		Failed: []loader.PageError{{Page: dec.Next()}},
	}}
	term, _ := newTerminal("c 2024-12-05\nselect 2024-12-10 2024-12-12\nblock\nprice\nscroll 2025-01\nnext\nretry\nretry 2024-12\nrefresh\nclear\nquit\nclick 2024-12-31\n")

	require.NoError(t, term.Run(context.Background(), ctrl))

	assert.Equal(t, []daterange.Date{
		daterange.MustParse("2024-12-05"),
		daterange.MustParse("2024-12-10"),
		daterange.MustParse("2024-12-12"),
	}, ctrl.clicks)
	assert.Equal(t, []dispatch.Kind{dispatch.KindBlock, dispatch.KindSetPrice}, ctrl.acts)
	assert.Equal(t, []calendar.Page{dec.Next(), dec.Advance(2)}, ctrl.scrolled)
	assert.Equal(t, []calendar.Page{dec.Next(), dec}, ctrl.retried)
	assert.Equal(t, 1, ctrl.resyncs)
	assert.Equal(t, 2, ctrl.resets)
}

func TestRun_ReportsErrorsAndContinues(t *testing.T) {
	ctrl := &fakeController{actErr: dispatch.ErrNothingSelected}
	term, out := newTerminal("bogus\nclick tomorrow\nunblock\n")

	require.NoError(t, term.Run(context.Background(), ctrl))

	got := out.String()
	assert.Contains(t, got, `unknown command "bogus"`)
	assert.Contains(t, got, "select a range first")
	assert.Empty(t, ctrl.clicks)
	assert.Equal(t, []dispatch.Kind{dispatch.KindUnblock}, ctrl.acts)
}

func TestRun_StopsWhenSessionClosed(t *testing.T) {
	ctrl := &fakeController{actErr: console.ErrClosed}
	term, _ := newTerminal("block\nrefresh\n")

	err := term.Run(context.Background(), ctrl)
	assert.ErrorIs(t, err, console.ErrClosed)
	assert.Zero(t, ctrl.resyncs)
}

func TestRun_SelectReportsUnavailableStart(t *testing.T) {
	ctrl := &fakeController{past: map[daterange.Date]bool{daterange.MustParse("2024-11-02"): true}}
	term, out := newTerminal("select 2024-11-02 2024-11-25\nclick 2024-11-02\n")

	require.NoError(t, term.Run(context.Background(), ctrl))

	assert.Equal(t, []daterange.Date{
		daterange.MustParse("2024-11-02"),
		daterange.MustParse("2024-11-02"),
	}, ctrl.clicks)
	assert.Equal(t, 2, strings.Count(out.String(), "past or booked"))
	assert.Contains(t, out.String(), "2024-11-02")
}

type memoryBackend struct {
	changes []dispatch.AvailabilityChange
}

func (b *memoryBackend) FetchMonth(_ context.Context, _ string, page calendar.Page) ([]calendar.DayRecord, error) {
	var out []calendar.DayRecord
	for _, d := range page.Range().Days() {
		out = append(out, calendar.DayRecord{Date: d, Status: calendar.StatusAvailable})
	}
	return out, nil
}

func (b *memoryBackend) SetAvailability(_ context.Context, change dispatch.AvailabilityChange) error {
	b.changes = append(b.changes, change)
	return nil
}

func (b *memoryBackend) AddPriceRule(context.Context, dispatch.PriceRule) error { return nil }

func TestRun_BlockAfterClosingMenu(t *testing.T) {
	b := &memoryBackend{}
	// The empty line closes the action menu; "guests" answers the reason prompt.
	term, out := newTerminal("select 2024-12-10 2024-12-12\n\nblock\nguests\nquit\n")
	s, err := console.New(console.Options{
		PropertyID: "42",
		Backend:    b,
		Host:       term,
		Renderer:   term,
		Now:        func() time.Time { return time.Date(2024, time.November, 20, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, term.Run(ctx, s))

	require.Len(t, b.changes, 1)
	change := b.changes[0]
	assert.False(t, change.Available)
	assert.Equal(t, []daterange.Date{
		daterange.MustParse("2024-12-10"),
		daterange.MustParse("2024-12-11"),
		daterange.MustParse("2024-12-12"),
	}, change.Dates)
	require.NotNil(t, change.Comment)
	assert.Equal(t, "guests", *change.Comment)
	assert.Equal(t, selection.Idle{}, s.View().Selection)
	assert.NotContains(t, out.String(), "select a range first")
}
