package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ownercal/internal/domain/calendar"
)

const (
	DefaultPagesPerBatch     = 3
	DefaultPrefetchThreshold = 1
)

var ErrNotConfigured = errors.New("loader: fetcher or store missing")

// Fetcher retrieves one month of day records for a property.
type Fetcher interface {
	FetchMonth(ctx context.Context, propertyID string, page calendar.Page) ([]calendar.DayRecord, error)
}

type PageError struct {
	Page calendar.Page
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Page, e.Err)
}

func (e PageError) Unwrap() error { return e.Err }

// Batch reports the outcome of one load trigger.
type Batch struct {
	Requested []calendar.Page
	Loaded    []calendar.Page
	Skipped   []calendar.Page
	Failed    []PageError
	// Dropped is set when another load was in flight and the trigger was ignored.
	Dropped bool
	// Stale is set when a resync started while this batch was running; the
	// remaining results were discarded.
	Stale bool
}

func (b Batch) Err() error {
	if len(b.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(b.Failed))
	for _, f := range b.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Loader fills a calendar.Store page by page. At most one batch runs at a time.
type Loader struct {
	PropertyID        string
	Fetcher           Fetcher
	Store             *calendar.Store
	PagesPerBatch     int
	PrefetchThreshold int
	Now               func() time.Time
	Logger            *slog.Logger

	mu         sync.Mutex
	inFlight   bool
	generation uint64
	// cursor is the first page not yet handed out to the renderer.
	cursor calendar.Page
	failed map[calendar.Page]error
}

// LoadInitial loads PagesPerBatch pages starting at the current month.
func (l *Loader) LoadInitial(ctx context.Context) (Batch, error) {
	if err := l.validate(); err != nil {
		return Batch{}, err
	}
	gen, ok := l.begin()
	if !ok {
		return Batch{Dropped: true}, nil
	}
	l.mu.Lock()
	start := calendar.CurrentPage(l.now())
	l.cursor = start.Advance(l.batchSize())
	l.mu.Unlock()
	return l.run(ctx, gen, start.Window(l.batchSize())), nil
}

// LoadMore advances the cursor by one batch and loads the pages it passed.
func (l *Loader) LoadMore(ctx context.Context) (Batch, error) {
	if err := l.validate(); err != nil {
		return Batch{}, err
	}
	gen, ok := l.begin()
	if !ok {
		return Batch{Dropped: true}, nil
	}
	l.mu.Lock()
	if !l.cursor.Valid() {
		l.cursor = calendar.CurrentPage(l.now())
	}
	pages := l.cursor.Window(l.batchSize())
	l.cursor = l.cursor.Advance(l.batchSize())
	l.mu.Unlock()
	return l.run(ctx, gen, pages), nil
}

// NearEnd is the viewport signal: visible is the page currently on screen.
// It triggers LoadMore when visible is within PrefetchThreshold pages of the
// last page handed out.
func (l *Loader) NearEnd(ctx context.Context, visible calendar.Page) (Batch, bool, error) {
	l.mu.Lock()
	cursor := l.cursor
	l.mu.Unlock()
	if cursor.Valid() {
		remaining := visible.Distance(cursor) - 1
		if remaining > l.threshold() {
			return Batch{}, false, nil
		}
	}
	batch, err := l.LoadMore(ctx)
	return batch, true, err
}

// LoadPage fetches a single page unless it is already loaded. It is the only
// way to retry a page whose earlier load failed.
func (l *Loader) LoadPage(ctx context.Context, page calendar.Page) (Batch, error) {
	if err := l.validate(); err != nil {
		return Batch{}, err
	}
	if !page.Valid() {
		return Batch{}, fmt.Errorf("loader: invalid page %s", page)
	}
	if l.Store.IsPageLoaded(page) {
		return Batch{Requested: []calendar.Page{page}, Skipped: []calendar.Page{page}}, nil
	}
	gen, ok := l.begin()
	if !ok {
		return Batch{Dropped: true}, nil
	}
	return l.run(ctx, gen, []calendar.Page{page}), nil
}

// Resync clears the store and reloads the initial window. It does not wait for
// an outstanding batch: that batch's results are discarded when they arrive.
func (l *Loader) Resync(ctx context.Context) (Batch, error) {
	if err := l.validate(); err != nil {
		return Batch{}, err
	}
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.inFlight = true
	l.Store.Invalidate()
	l.failed = nil
	start := calendar.CurrentPage(l.now())
	l.cursor = start.Advance(l.batchSize())
	l.mu.Unlock()
	return l.run(ctx, gen, start.Window(l.batchSize())), nil
}

func (l *Loader) InFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Reserved lists the pages handed out to the renderer so far.
func (l *Loader) Reserved() []calendar.Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.cursor.Valid() {
		return nil
	}
	start := calendar.CurrentPage(l.now())
	n := start.Distance(l.cursor)
	if n <= 0 {
		return nil
	}
	return start.Window(n)
}

// Failed lists pages whose last load failed and that were not retried since.
func (l *Loader) Failed() []PageError {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PageError, 0, len(l.failed))
	for p, err := range l.failed {
		out = append(out, PageError{Page: p, Err: err})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page.Distance(out[j].Page) > 0 })
	return out
}

func (l *Loader) run(ctx context.Context, gen uint64, pages []calendar.Page) Batch {
	defer l.finish(gen)
	batch := Batch{Requested: pages}
	for _, page := range pages {
		if l.Store.IsPageLoaded(page) {
			batch.Skipped = append(batch.Skipped, page)
			continue
		}
		days, err := l.Fetcher.FetchMonth(ctx, l.PropertyID, page)

		l.mu.Lock()
		if gen != l.generation {
			l.mu.Unlock()
			batch.Stale = true
			l.logInfo("discarding stale page load", "page", page.String())
			return batch
		}
		if err != nil {
			if l.failed == nil {
				l.failed = make(map[calendar.Page]error)
			}
			l.failed[page] = err
			l.mu.Unlock()
			batch.Failed = append(batch.Failed, PageError{Page: page, Err: err})
			l.logError("page load failed", page, err)
			continue
		}
		l.Store.Merge(days...)
		l.Store.MarkPageLoaded(page)
		delete(l.failed, page)
		l.mu.Unlock()
		batch.Loaded = append(batch.Loaded, page)
	}
	return batch
}

func (l *Loader) begin() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight {
		return 0, false
	}
	l.inFlight = true
	return l.generation, true
}

func (l *Loader) finish(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.generation {
		l.inFlight = false
	}
}

func (l *Loader) validate() error {
	if l == nil || l.Fetcher == nil || l.Store == nil {
		return ErrNotConfigured
	}
	return nil
}

func (l *Loader) batchSize() int {
	if l.PagesPerBatch <= 0 {
		return DefaultPagesPerBatch
	}
	return l.PagesPerBatch
}

func (l *Loader) threshold() int {
	if l.PrefetchThreshold < 0 {
		return 0
	}
	if l.PrefetchThreshold == 0 {
		return DefaultPrefetchThreshold
	}
	return l.PrefetchThreshold
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Loader) logInfo(msg string, args ...any) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info(msg, append([]any{"property_id", l.PropertyID}, args...)...)
}

func (l *Loader) logError(msg string, page calendar.Page, err error) {
	if l.Logger == nil {
		return
	}
	l.Logger.Error(msg, "property_id", l.PropertyID, "page", page.String(), "error", err)
}
