package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"ownercal/internal/app/host"
	"ownercal/internal/app/loader"
	"ownercal/internal/domain/shared/daterange"
)

type Kind string

const (
	KindBlock    Kind = "block"
	KindUnblock  Kind = "unblock"
	KindSetPrice Kind = "set_price"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindBlock, KindUnblock, KindSetPrice:
		return k, nil
	case "price":
		return KindSetPrice, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
}

var (
	ErrUnknownAction   = errors.New("dispatch: unknown action")
	ErrInvalidPrice    = errors.New("dispatch: price must be a positive integer")
	ErrNotConfigured   = errors.New("dispatch: dispatcher missing dependencies")
	ErrNothingSelected = errors.New("dispatch: no confirmed range")
)

// AvailabilityChange opens (Available) or blocks every listed date.
type AvailabilityChange struct {
	PropertyID string
	Dates      []daterange.Date
	Available  bool
	Comment    *string
}

type PriceRule struct {
	PropertyID string
	Range      daterange.DateRange
	Price      int
}

// Mutator issues the owner mutations against the backend.
type Mutator interface {
	SetAvailability(ctx context.Context, change AvailabilityChange) error
	AddPriceRule(ctx context.Context, rule PriceRule) error
}

type SelectionResetter interface {
	ResetSelection()
}

type Resyncer interface {
	Resync(ctx context.Context) (loader.Batch, error)
}

type Request struct {
	Kind  Kind
	Range daterange.DateRange
}

type Result struct {
	Request   Request
	Cancelled bool
	// Err is the mutation failure, if any; the resync still ran.
	Err       error
	Resync    loader.Batch
	ResyncErr error
}

// Dispatcher applies one action to a confirmed range, then always resets the
// selection and resyncs the calendar, whatever the backend answered.
type Dispatcher struct {
	PropertyID   string
	Mutator      Mutator
	Host         host.Host
	Selection    SelectionResetter
	Resyncer     Resyncer
	DefaultPrice string
	Logger       *slog.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil || d.Mutator == nil || d.Host == nil || d.Selection == nil || d.Resyncer == nil {
		return Result{}, ErrNotConfigured
	}
	res := Result{Request: req}
	if err := req.Range.Validate(); err != nil {
		return res, fmt.Errorf("%w: %v", ErrNothingSelected, err)
	}

	var mutate func(context.Context) error
	var success string
	switch req.Kind {
	case KindBlock, KindUnblock:
		change := AvailabilityChange{
			PropertyID: d.PropertyID,
			Dates:      req.Range.Days(),
			Available:  req.Kind == KindUnblock,
		}
		if req.Kind == KindBlock {
			comment, err := d.askComment(ctx, req.Range)
			if err != nil {
				d.Selection.ResetSelection()
				return res, err
			}
			change.Comment = comment
			success = fmt.Sprintf("%s blocked.", describe(req.Range))
		} else {
			success = fmt.Sprintf("%s unblocked.", describe(req.Range))
		}
		mutate = func(ctx context.Context) error { return d.Mutator.SetAvailability(ctx, change) }
	case KindSetPrice:
		price, ok, err := d.askPrice(ctx, req.Range)
		if err != nil || !ok {
			d.Selection.ResetSelection()
			res.Cancelled = err == nil
			return res, err
		}
		rule := PriceRule{PropertyID: d.PropertyID, Range: req.Range, Price: price}
		success = fmt.Sprintf("Price %d set for %s.", price, describe(req.Range))
		mutate = func(ctx context.Context) error { return d.Mutator.AddPriceRule(ctx, rule) }
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, req.Kind)
	}

	res.Err = mutate(ctx)
	if res.Err != nil {
		d.logError("owner mutation failed", req, res.Err)
		d.notify(ctx, host.Notice{Level: host.LevelError, Title: "Error", Message: res.Err.Error()})
	} else {
		d.logInfo("owner mutation applied", req)
		d.notify(ctx, host.Notice{Level: host.LevelSuccess, Title: "Done", Message: success})
	}

	d.Selection.ResetSelection()
	res.Resync, res.ResyncErr = d.Resyncer.Resync(ctx)
	return res, nil
}

// askComment returns nil when the owner leaves the reason empty or closes the
// prompt; the block goes ahead either way.
func (d *Dispatcher) askComment(ctx context.Context, r daterange.DateRange) (*string, error) {
	answer, err := d.Host.Ask(ctx, host.Prompt{
		Title:   "Block dates",
		Message: fmt.Sprintf("Reason for blocking %s (optional):", describe(r)),
	})
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(answer.Value)
	if !answer.Confirmed || comment == "" {
		return nil, nil
	}
	return &comment, nil
}

// askPrice re-prompts until a valid price is entered or the prompt is dismissed.
func (d *Dispatcher) askPrice(ctx context.Context, r daterange.DateRange) (int, bool, error) {
	prompt := host.Prompt{
		Title:   "Set price",
		Message: fmt.Sprintf("New nightly price for %s:", describe(r)),
		Default: d.DefaultPrice,
	}
	for {
		answer, err := d.Host.Ask(ctx, prompt)
		if err != nil || !answer.Confirmed {
			return 0, false, err
		}
		price, err := ParsePrice(answer.Value)
		if err == nil {
			return price, true, nil
		}
		d.notify(ctx, host.Notice{Level: host.LevelError, Title: "Invalid price", Message: "Please enter a whole number greater than zero."})
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
	}
}

// ParsePrice accepts a positive base-10 integer, surrounding blanks allowed.
func ParsePrice(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return v, nil
}

func describe(r daterange.DateRange) string {
	if r.Single() {
		return r.Start.String()
	}
	return r.Start.String() + " - " + r.End.String()
}

func (d *Dispatcher) notify(ctx context.Context, n host.Notice) {
	if err := d.Host.Notify(ctx, n); err != nil && d.Logger != nil {
		d.Logger.Warn("host notice failed", "error", err)
	}
}

func (d *Dispatcher) logInfo(msg string, req Request) {
	if d.Logger == nil {
		return
	}
	d.Logger.Info(msg, "property_id", d.PropertyID, "action", req.Kind, "range", req.Range.String())
}

func (d *Dispatcher) logError(msg string, req Request, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.Error(msg, "property_id", d.PropertyID, "action", req.Kind, "range", req.Range.String(), "error", err)
}
