package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ownercal/internal/app/console"
	"ownercal/internal/app/dispatch"
	"ownercal/internal/app/host"
	"ownercal/internal/app/loader"
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/selection"
	"ownercal/internal/domain/shared/daterange"
)

var (
	ErrInvalidPage     = errors.New("terminal: month must look like 2024-12")
	ErrDateUnavailable = errors.New("terminal: date is past or booked, nothing selected")
)

// Controller is the part of a console session the REPL drives.
type Controller interface {
	Click(ctx context.Context, d daterange.Date) (console.ClickResult, error)
	Act(ctx context.Context, kind dispatch.Kind) (dispatch.Result, error)
	Scroll(ctx context.Context, visible calendar.Page) (loader.Batch, error)
	Retry(ctx context.Context, page calendar.Page) (loader.Batch, error)
	Resync(ctx context.Context) (loader.Batch, error)
	ResetSelection()
	View() console.View
}

const helpText = `commands:
  click|c DATE          select a date; the second click confirms a range
  select START END      click both ends of a range
  scroll|goto MONTH     report MONTH (e.g. 2025-03) as visible
  next                  scroll to the last loaded month
  retry [MONTH]         reload one month, or every failed month
  block|unblock|price   act on the range left confirmed by a closed menu
  clear                 reset the selection
  refresh               reload the calendar from the server
  show                  redraw the calendar
  help                  show this text
  quit|exit             leave`

// Run reads commands until quit, end of input or ctx cancellation.
func (t *Terminal) Run(ctx context.Context, c Controller) error {
	for {
		line, err := t.ReadLine(ctx, "ownercal> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		quit, err := t.exec(ctx, c, strings.ToLower(fields[0]), fields[1:])
		if quit {
			return nil
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, console.ErrClosed) {
			return err
		}
		_ = t.Notify(ctx, host.Notice{Level: host.LevelError, Message: err.Error()})
	}
}

func (t *Terminal) exec(ctx context.Context, c Controller, cmd string, args []string) (bool, error) {
	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		t.Println(helpText)
	case "show":
		return false, t.Render(ctx, c.View())
	case "click", "c":
		if len(args) != 1 {
			return false, errors.New("usage: click DATE")
		}
		d, err := daterange.Parse(args[0])
		if err != nil {
			return false, err
		}
		res, err := c.Click(ctx, d)
		if err == nil && res.Outcome.Effect == selection.EffectIgnored {
			return false, fmt.Errorf("%w: %s", ErrDateUnavailable, d)
		}
		t.reportAction(ctx, res.Action)
		return false, err
	case "select":
		if len(args) != 2 {
			return false, errors.New("usage: select START END")
		}
		start, err := daterange.Parse(args[0])
		if err != nil {
			return false, err
		}
		end, err := daterange.Parse(args[1])
		if err != nil {
			return false, err
		}
		c.ResetSelection()
		first, err := c.Click(ctx, start)
		if err != nil {
			return false, err
		}
		if first.Outcome.Effect == selection.EffectIgnored {
			return false, fmt.Errorf("%w: %s", ErrDateUnavailable, start)
		}
		res, err := c.Click(ctx, end)
		t.reportAction(ctx, res.Action)
		return false, err
	case "scroll", "goto":
		if len(args) != 1 {
			return false, errors.New("usage: scroll MONTH")
		}
		page, err := ParsePage(args[0])
		if err != nil {
			return false, err
		}
		return false, t.scroll(ctx, c, page)
	case "next":
		pages := c.View().Pages
		if len(pages) == 0 {
			return false, errors.New("nothing loaded yet")
		}
		return false, t.scroll(ctx, c, lastPage(pages))
	case "retry":
		return false, t.retry(ctx, c, args)
	case "block", "unblock", "price", "set_price":
		kind, err := dispatch.ParseKind(cmd)
		if err != nil {
			return false, err
		}
		res, err := c.Act(ctx, kind)
		if errors.Is(err, dispatch.ErrNothingSelected) {
			return false, errors.New("select a range first")
		}
		t.reportAction(ctx, &res)
		return false, err
	case "clear":
		c.ResetSelection()
		return false, t.Render(ctx, c.View())
	case "refresh":
		_, err := c.Resync(ctx)
		return false, err
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func (t *Terminal) scroll(ctx context.Context, c Controller, page calendar.Page) error {
	batch, err := c.Scroll(ctx, page)
	if err != nil {
		return err
	}
	if batch.Dropped {
		t.Println(t.styles.hint.Render("a load is already running"))
	}
	return nil
}

func (t *Terminal) retry(ctx context.Context, c Controller, args []string) error {
	var pages []calendar.Page
	if len(args) > 0 {
		for _, raw := range args {
			page, err := ParsePage(raw)
			if err != nil {
				return err
			}
			pages = append(pages, page)
		}
	} else {
		for _, f := range c.View().Failed {
			pages = append(pages, f.Page)
		}
	}
	if len(pages) == 0 {
		t.Println(t.styles.hint.Render("nothing to retry"))
		return nil
	}
	for _, page := range pages {
		if _, err := c.Retry(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// reportAction surfaces a resync failure; the dispatcher already notified
// the mutation outcome.
func (t *Terminal) reportAction(ctx context.Context, res *dispatch.Result) {
	if res == nil || res.ResyncErr == nil {
		return
	}
	_ = t.Notify(ctx, host.Notice{Level: host.LevelError, Title: "Calendar", Message: res.ResyncErr.Error()})
}

// ParsePage reads a month written as YYYY-MM.
func ParsePage(raw string) (calendar.Page, error) {
	ts, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return calendar.Page{}, fmt.Errorf("%w: %q", ErrInvalidPage, raw)
	}
	return calendar.Page{Year: ts.Year(), Month: ts.Month()}, nil
}

func lastPage(pages []calendar.Page) calendar.Page {
	last := pages[0]
	for _, p := range pages[1:] {
		if last.Distance(p) > 0 {
			last = p
		}
	}
	return last
}
