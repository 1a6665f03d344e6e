package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ownercal/internal/app/commands"
	"ownercal/internal/app/dto"
	"ownercal/internal/app/outbox"
	"ownercal/internal/app/queries"
	domain "ownercal/internal/domain/availability"
	"ownercal/internal/domain/shared/daterange"
)

const maxSaveAttempts = 3

var ErrRepositoryMissing = errors.New("availability: repository not configured")

type GetMonthHandler struct {
	Repo domain.Repository
	Now  func() time.Time
}

func (h *GetMonthHandler) Handle(ctx context.Context, q GetMonthQuery) ([]dto.Day, error) {
	if h.Repo == nil {
		return nil, ErrRepositoryMissing
	}
	cal, err := h.Repo.Calendar(ctx, domain.PropertyID(q.PropertyID))
	if err != nil {
		return nil, err
	}
	today := daterange.Of(clock(h.Now)())
	return dto.MapDays(cal.Month(q.Page(), today)), nil
}

type SetAvailabilityHandler struct {
	Repo    domain.Repository
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *SetAvailabilityHandler) Handle(ctx context.Context, cmd SetAvailabilityCommand) (Status, error) {
	err := mutate(ctx, h.Repo, h.Outbox, h.Encoder, cmd.PropertyID, func(cal *domain.PropertyCalendar) error {
		return cal.SetAvailability(cmd.Dates, cmd.Available, cmd.Comment, clock(h.Now)())
	})
	if err != nil {
		return Status{}, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "availability updated",
			"property_id", cmd.PropertyID, "dates", len(cmd.Dates), "available", cmd.Available)
	}
	return Status{Status: "ok"}, nil
}

type AddPriceRuleHandler struct {
	Repo    domain.Repository
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *AddPriceRuleHandler) Handle(ctx context.Context, cmd AddPriceRuleCommand) (Status, error) {
	err := mutate(ctx, h.Repo, h.Outbox, h.Encoder, cmd.PropertyID, func(cal *domain.PropertyCalendar) error {
		return cal.AddPriceRule(cmd.Range, cmd.Price, clock(h.Now)())
	})
	if err != nil {
		return Status{}, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "price rule added",
			"property_id", cmd.PropertyID, "range", cmd.Range.String(), "price", cmd.Price)
	}
	return Status{Status: "ok"}, nil
}

// mutate loads the calendar, applies fn and saves it, retrying when another
// writer got there first. Events are recorded only after a successful save.
func mutate(ctx context.Context, repo domain.Repository, box outbox.Outbox, enc outbox.EventEncoder, id string, fn func(*domain.PropertyCalendar) error) error {
	if repo == nil {
		return ErrRepositoryMissing
	}
	var err error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		var cal *domain.PropertyCalendar
		cal, err = repo.Calendar(ctx, domain.PropertyID(id))
		if err != nil {
			return err
		}
		if err = fn(cal); err != nil {
			return err
		}
		pending := cal.Drain()
		if len(pending) == 0 {
			return nil
		}
		err = repo.Save(ctx, cal)
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return err
		}
		return outbox.RecordCalendarEvents(ctx, box, enc, pending)
	}
	return err
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

type Deps struct {
	Repo    domain.Repository
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

// Register wires the calendar handlers onto the in-memory buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, deps Deps) {
	queries.RegisterHandler[GetMonthQuery, []dto.Day](queryBus, getMonthKey, &GetMonthHandler{Repo: deps.Repo, Now: deps.Now})
	commands.RegisterHandler[SetAvailabilityCommand, Status](cmdBus, setAvailabilityKey, &SetAvailabilityHandler{
		Repo: deps.Repo, Outbox: deps.Outbox, Encoder: deps.Encoder, Now: deps.Now, Logger: deps.Logger,
	})
	commands.RegisterHandler[AddPriceRuleCommand, Status](cmdBus, addPriceRuleKey, &AddPriceRuleHandler{
		Repo: deps.Repo, Outbox: deps.Outbox, Encoder: deps.Encoder, Now: deps.Now, Logger: deps.Logger,
	})
}

var (
	_ queries.Handler[GetMonthQuery, []dto.Day]        = (*GetMonthHandler)(nil)
	_ commands.Handler[SetAvailabilityCommand, Status] = (*SetAvailabilityHandler)(nil)
	_ commands.Handler[AddPriceRuleCommand, Status]    = (*AddPriceRuleHandler)(nil)
)
