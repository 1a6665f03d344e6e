package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ownercal/internal/domain/calendar"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []calendar.Page
	fail  map[calendar.Page]error
	// block holds fetches of a page until its channel is closed.
	block   map[calendar.Page]chan struct{}
	started chan calendar.Page
}

func (f *fakeFetcher) FetchMonth(ctx context.Context, propertyID string, page calendar.Page) ([]calendar.DayRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	err := f.fail[page]
	gate := f.block[page]
	f.mu.Unlock()
	if f.started != nil {
		f.started <- page
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return []calendar.DayRecord{
		{Date: page.First(), Status: calendar.StatusAvailable},
		{Date: page.Last(), Status: calendar.StatusAvailable},
	}, nil
}

func (f *fakeFetcher) Calls() []calendar.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]calendar.Page(nil), f.calls...)
}

func fixedNow() time.Time {
	return time.Date(2024, time.November, 20, 12, 0, 0, 0, time.UTC)
}

func newLoader(f Fetcher) *Loader {
	return &Loader{
		PropertyID: "42",
		Fetcher:    f,
		Store:      calendar.NewStore(),
		Now:        fixedNow,
	}
}

func page(y int, m time.Month) calendar.Page {
	return calendar.Page{Year: y, Month: m}
}

func TestLoader_InitialLoadsThreePagesFromCurrentMonth(t *testing.T) {
	f := &fakeFetcher{}
	l := newLoader(f)

	batch, err := l.LoadInitial(context.Background())
	require.NoError(t, err)
	want := []calendar.Page{page(2024, time.November), page(2024, time.December), page(2025, time.January)}
	assert.Equal(t, want, batch.Loaded)
	assert.Equal(t, want, f.Calls())
	for _, p := range want {
		assert.True(t, l.Store.IsPageLoaded(p))
	}
	assert.False(t, l.InFlight())
}

func TestLoader_LoadMoreAdvancesCursorAcrossYear(t *testing.T) {
	f := &fakeFetcher{}
	l := newLoader(f)
	_, err := l.LoadInitial(context.Background())
	require.NoError(t, err)

	batch, err := l.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []calendar.Page{page(2025, time.February), page(2025, time.March), page(2025, time.April)}, batch.Loaded)
	assert.Len(t, l.Reserved(), 6)
}

func TestLoader_LoadedPageIsNeverFetchedAgain(t *testing.T) {
	f := &fakeFetcher{}
	l := newLoader(f)
	ctx := context.Background()
	_, err := l.LoadInitial(ctx)
	require.NoError(t, err)

	batch, err := l.LoadPage(ctx, page(2024, time.December))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Page{page(2024, time.December)}, batch.Skipped)
	assert.Len(t, f.Calls(), 3)
}

func TestLoader_FailedPageIsNotMarkedAndNeedsExplicitRetry(t *testing.T) {
	dec := page(2024, time.December)
	f := &fakeFetcher{fail: map[calendar.Page]error{dec: errors.New("boom")}}
	l := newLoader(f)
	ctx := context.Background()

	batch, err := l.LoadInitial(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, dec, batch.Failed[0].Page)
	assert.Error(t, batch.Err())
	assert.False(t, l.Store.IsPageLoaded(dec))
	assert.Len(t, l.Failed(), 1)

	// the render slot is taken: scrolling on does not refetch December
	_, err = l.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, l.Store.IsPageLoaded(dec))

	delete(f.fail, dec)
	batch, err = l.LoadPage(ctx, dec)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Page{dec}, batch.Loaded)
	assert.True(t, l.Store.IsPageLoaded(dec))
	assert.Empty(t, l.Failed())
}

func TestLoader_TriggerWhileInFlightIsDropped(t *testing.T) {
	nov := page(2024, time.November)
	gate := make(chan struct{})
	f := &fakeFetcher{block: map[calendar.Page]chan struct{}{nov: gate}, started: make(chan calendar.Page, 8)}
	l := newLoader(f)
	ctx := context.Background()

	done := make(chan Batch)
	go func() {
		b, _ := l.LoadInitial(ctx)
		done <- b
	}()
	assert.Equal(t, nov, <-f.started)
	assert.True(t, l.InFlight())

	dropped, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, dropped.Dropped)
	assert.Empty(t, dropped.Requested)

	close(gate)
	batch := <-done
	assert.Len(t, batch.Loaded, 3)
	assert.Len(t, f.Calls(), 3)

	// the dropped trigger did not move the cursor
	next, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Page{page(2025, time.February), page(2025, time.March), page(2025, time.April)}, next.Loaded)
}

func TestLoader_ResyncDiscardsStaleResult(t *testing.T) {
	mar := page(2025, time.March)
	gate := make(chan struct{})
	f := &fakeFetcher{block: map[calendar.Page]chan struct{}{mar: gate}, started: make(chan calendar.Page, 8)}
	l := newLoader(f)
	ctx := context.Background()

	staleDone := make(chan Batch)
	go func() {
		b, _ := l.LoadPage(ctx, mar)
		staleDone <- b
	}()
	assert.Equal(t, mar, <-f.started)

	fresh, err := l.Resync(ctx)
	require.NoError(t, err)
	assert.False(t, fresh.Stale)
	assert.Len(t, fresh.Loaded, 3)
	assert.False(t, l.InFlight())

	close(gate)
	stale := <-staleDone
	assert.True(t, stale.Stale)
	assert.Empty(t, stale.Loaded)
	assert.False(t, l.Store.IsPageLoaded(mar))
	assert.False(t, l.InFlight())
}

func TestLoader_NearEnd(t *testing.T) {
	f := &fakeFetcher{}
	l := newLoader(f)
	ctx := context.Background()
	_, err := l.LoadInitial(ctx)
	require.NoError(t, err)

	_, triggered, err := l.NearEnd(ctx, page(2024, time.November))
	require.NoError(t, err)
	assert.False(t, triggered)

	batch, triggered, err := l.NearEnd(ctx, page(2024, time.December))
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Len(t, batch.Loaded, 3)
}

func TestLoader_RequiresDependencies(t *testing.T) {
	l := &Loader{}
	_, err := l.LoadInitial(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
