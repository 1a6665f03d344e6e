package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ownercal/internal/app/dispatch"
	"ownercal/internal/app/host"
	"ownercal/internal/app/loader"
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/selection"
	"ownercal/internal/domain/shared/daterange"
)

var (
	ErrClosed          = errors.New("console: session closed")
	ErrMissingProperty = errors.New("console: property id is required")
	ErrMissingBackend  = errors.New("console: backend is required")
	ErrMissingHost     = errors.New("console: host is required")
)

// Backend is the owner API as seen by one session.
type Backend interface {
	loader.Fetcher
	dispatch.Mutator
}

// View is what a renderer needs to draw the calendar.
type View struct {
	PropertyID string
	Days       []calendar.DayRecord
	Pages      []calendar.Page
	Failed     []loader.PageError
	Selection  selection.Selection
}

type Renderer interface {
	Render(ctx context.Context, v View) error
}

type Options struct {
	PropertyID        string
	Backend           Backend
	Host              host.Host
	Renderer          Renderer
	PagesPerBatch     int
	PrefetchThreshold int
	DefaultPrice      string
	Now               func() time.Time
	Logger            *slog.Logger
}

// ClickResult is the selection outcome of a click plus the action it led to, if any.
type ClickResult struct {
	Outcome selection.Outcome
	Action  *dispatch.Result
}

// Session is the per-property console controller. It owns the day cache, the
// month loader, the selection machine and the action dispatcher; build one
// when the owner opens a property and Close it when they leave.
type Session struct {
	propertyID string
	store      *calendar.Store
	loader     *loader.Loader
	dispatcher *dispatch.Dispatcher
	host       host.Host
	renderer   Renderer
	logger     *slog.Logger

	mu      sync.Mutex
	machine *selection.Machine
	closed  bool
}

func New(opts Options) (*Session, error) {
	if opts.PropertyID == "" {
		return nil, ErrMissingProperty
	}
	if opts.Backend == nil {
		return nil, ErrMissingBackend
	}
	if opts.Host == nil {
		return nil, ErrMissingHost
	}
	store := calendar.NewStore()
	s := &Session{
		propertyID: opts.PropertyID,
		store:      store,
		host:       opts.Host,
		renderer:   opts.Renderer,
		logger:     opts.Logger,
		machine:    selection.NewMachine(),
	}
	s.loader = &loader.Loader{
		PropertyID:        opts.PropertyID,
		Fetcher:           opts.Backend,
		Store:             store,
		PagesPerBatch:     opts.PagesPerBatch,
		PrefetchThreshold: opts.PrefetchThreshold,
		Now:               opts.Now,
		Logger:            opts.Logger,
	}
	s.dispatcher = &dispatch.Dispatcher{
		PropertyID:   opts.PropertyID,
		Mutator:      opts.Backend,
		Host:         opts.Host,
		Selection:    s,
		Resyncer:     s,
		DefaultPrice: opts.DefaultPrice,
		Logger:       opts.Logger,
	}
	return s, nil
}

// Start expands the host viewport and loads the initial window.
func (s *Session) Start(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.host.Expand(ctx); err != nil {
		s.logWarn("viewport expansion failed", err)
	}
	batch, err := s.loader.LoadInitial(ctx)
	if err != nil {
		return err
	}
	s.report(ctx, batch)
	return s.render(ctx)
}

// Click feeds one date click into the selection machine. A confirmed range
// opens the action menu and, when an action is picked, dispatches it. A
// dismissed menu leaves the range confirmed for Act.
func (s *Session) Click(ctx context.Context, d daterange.Date) (ClickResult, error) {
	if err := s.checkOpen(); err != nil {
		return ClickResult{}, err
	}
	s.mu.Lock()
	out := s.machine.Click(d, s.store)
	s.mu.Unlock()
	res := ClickResult{Outcome: out}

	if out.Effect == selection.EffectRejected {
		s.notify(ctx, host.Notice{
			Level:   host.LevelError,
			Title:   "Range unavailable",
			Message: fmt.Sprintf("The range includes %s, which is %s.", out.Conflict.Date, out.Conflict.Status),
		})
	}
	if err := s.render(ctx); err != nil {
		return res, err
	}
	confirmed, ok := out.Selection.(selection.RangeConfirmed)
	if out.Effect != selection.EffectConfirmed || !ok {
		return res, nil
	}

	kind, chosen, err := s.chooseAction(ctx, confirmed.Range)
	if err != nil {
		s.ResetSelection()
		if rerr := s.render(ctx); rerr != nil && s.logger != nil {
			s.logger.Warn("render after menu failure", "property_id", s.propertyID, "error", rerr)
		}
		return res, err
	}
	if !chosen {
		// The range stays confirmed; Act or another click decides what happens to it.
		return res, nil
	}
	result, err := s.dispatch(ctx, dispatch.Request{Kind: kind, Range: confirmed.Range})
	res.Action = &result
	return res, err
}

// Act applies kind to the currently confirmed range without going through the menu.
func (s *Session) Act(ctx context.Context, kind dispatch.Kind) (dispatch.Result, error) {
	if err := s.checkOpen(); err != nil {
		return dispatch.Result{}, err
	}
	s.mu.Lock()
	confirmed, ok := s.machine.State().(selection.RangeConfirmed)
	s.mu.Unlock()
	if !ok {
		return dispatch.Result{}, dispatch.ErrNothingSelected
	}
	return s.dispatch(ctx, dispatch.Request{Kind: kind, Range: confirmed.Range})
}

// Scroll reports the month currently in view; near the end of the loaded
// window it triggers the next batch.
func (s *Session) Scroll(ctx context.Context, visible calendar.Page) (loader.Batch, error) {
	if err := s.checkOpen(); err != nil {
		return loader.Batch{}, err
	}
	batch, triggered, err := s.loader.NearEnd(ctx, visible)
	if err != nil || !triggered {
		return batch, err
	}
	s.report(ctx, batch)
	return batch, s.render(ctx)
}

// Retry reloads a single page, typically one whose load failed.
func (s *Session) Retry(ctx context.Context, page calendar.Page) (loader.Batch, error) {
	if err := s.checkOpen(); err != nil {
		return loader.Batch{}, err
	}
	batch, err := s.loader.LoadPage(ctx, page)
	if err != nil {
		return batch, err
	}
	s.report(ctx, batch)
	return batch, s.render(ctx)
}

// Resync drops the cached days and the selection, then reloads the initial
// window. No highlight survives onto reloaded data.
func (s *Session) Resync(ctx context.Context) (loader.Batch, error) {
	if err := s.checkOpen(); err != nil {
		return loader.Batch{}, err
	}
	s.ResetSelection()
	batch, err := s.loader.Resync(ctx)
	if err != nil {
		return batch, err
	}
	s.report(ctx, batch)
	return batch, s.render(ctx)
}

func (s *Session) ResetSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Reset()
}

func (s *Session) Selection() selection.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

func (s *Session) PropertyID() string { return s.propertyID }

func (s *Session) Day(d daterange.Date) (calendar.DayRecord, bool) {
	return s.store.Get(d)
}

func (s *Session) View() View {
	return View{
		PropertyID: s.propertyID,
		Days:       s.store.Snapshot(),
		Pages:      s.loader.Reserved(),
		Failed:     s.loader.Failed(),
		Selection:  s.Selection(),
	}
}

// Close ends the session; later calls fail with ErrClosed. Loads already in
// flight still complete but nothing renders afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.machine.Reset()
}

func (s *Session) dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	result, err := s.dispatcher.Dispatch(ctx, req)
	if rerr := s.render(ctx); err == nil {
		err = rerr
	}
	return result, err
}

func (s *Session) chooseAction(ctx context.Context, r daterange.DateRange) (dispatch.Kind, bool, error) {
	answer, err := s.host.Ask(ctx, s.actionMenu(r))
	if err != nil || !answer.Confirmed {
		return "", false, err
	}
	kind, err := dispatch.ParseKind(answer.Value)
	if err != nil {
		s.notify(ctx, host.Notice{Level: host.LevelError, Title: "Unknown action", Message: err.Error()})
		return "", false, nil
	}
	return kind, true, nil
}

// actionMenu offers a single toggle for one day (block or unblock depending on
// its current state) and every action for a longer range.
func (s *Session) actionMenu(r daterange.DateRange) host.Prompt {
	priceOpt := host.Option{ID: string(dispatch.KindSetPrice), Label: "Set price"}
	if !r.Single() {
		return host.Prompt{
			Title:   "Range actions",
			Message: fmt.Sprintf("Selected %s - %s (%d days).", r.Start, r.End, r.Len()),
			Options: []host.Option{
				{ID: string(dispatch.KindBlock), Label: "Block"},
				{ID: string(dispatch.KindUnblock), Label: "Unblock"},
				priceOpt,
			},
		}
	}
	msg := fmt.Sprintf("Selected %s.", r.Start)
	toggle := host.Option{ID: string(dispatch.KindBlock), Label: "Block " + r.Start.String()}
	if rec, ok := s.store.Get(r.Start); ok && rec.Status == calendar.StatusManualBlock {
		toggle = host.Option{ID: string(dispatch.KindUnblock), Label: "Unblock " + r.Start.String()}
		comment := rec.BlockComment()
		if comment == "" {
			comment = "none"
		}
		msg = fmt.Sprintf("Selected %s (comment: %s).", r.Start, comment)
	}
	return host.Prompt{Title: "Date actions", Message: msg, Options: []host.Option{toggle, priceOpt}}
}

func (s *Session) report(ctx context.Context, batch loader.Batch) {
	if err := batch.Err(); err != nil {
		s.notify(ctx, host.Notice{
			Level:   host.LevelError,
			Title:   "Calendar",
			Message: fmt.Sprintf("Failed to load calendar data: %v", err),
		})
	}
}

func (s *Session) render(ctx context.Context) error {
	if s.renderer == nil {
		return nil
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	return s.renderer.Render(ctx, s.View())
}

func (s *Session) notify(ctx context.Context, n host.Notice) {
	if err := s.host.Notify(ctx, n); err != nil {
		s.logWarn("host notice failed", err)
	}
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Session) logWarn(msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, "property_id", s.propertyID, "error", err)
}

var (
	_ dispatch.SelectionResetter = (*Session)(nil)
	_ dispatch.Resyncer          = (*Session)(nil)
)
