package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ownercal/internal/domain/availability"
	"ownercal/internal/domain/shared/daterange"
)

type propertyFixture struct {
	PropertyID string           `json:"property_id"`
	BasePrice  int              `json:"base_price"`
	Bookings   []bookingFixture `json:"bookings"`
	Blocks     []blockFixture   `json:"blocks"`
	PriceRules []ruleFixture    `json:"price_rules"`
}

type bookingFixture struct {
	Reference string         `json:"reference"`
	CheckIn   daterange.Date `json:"check_in"`
	CheckOut  daterange.Date `json:"check_out"`
}

type blockFixture struct {
	Date    daterange.Date `json:"date"`
	Comment *string        `json:"comment"`
}

type ruleFixture struct {
	StartDate daterange.Date `json:"start_date"`
	EndDate   daterange.Date `json:"end_date"`
	Price     int            `json:"price"`
}

// loadFixtures reads property calendars from a JSON file. A missing file is
// not an error.
func loadFixtures(path string, now time.Time) ([]*availability.PropertyCalendar, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeFixtures(data, now)
}

func decodeFixtures(data []byte, now time.Time) ([]*availability.PropertyCalendar, error) {
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	out := make([]*availability.PropertyCalendar, 0, len(fixtures))
	for _, fx := range fixtures {
		cal, err := fx.calendar(now)
		if err != nil {
			return nil, fmt.Errorf("fixture %q: %w", fx.PropertyID, err)
		}
		out = append(out, cal)
	}
	return out, nil
}

func (fx propertyFixture) calendar(now time.Time) (*availability.PropertyCalendar, error) {
	if fx.PropertyID == "" {
		return nil, errors.New("property_id is required")
	}
	if fx.BasePrice <= 0 {
		return nil, availability.ErrInvalidPrice
	}
	cal := availability.NewCalendar(availability.PropertyID(fx.PropertyID), fx.BasePrice)
	for _, b := range fx.Bookings {
		if err := cal.AddBooking(availability.Booking{Reference: b.Reference, CheckIn: b.CheckIn, CheckOut: b.CheckOut}); err != nil {
			return nil, err
		}
	}
	for _, b := range fx.Blocks {
		if err := cal.SetAvailability([]daterange.Date{b.Date}, false, b.Comment, now); err != nil {
			return nil, err
		}
	}
	for _, r := range fx.PriceRules {
		if err := cal.AddPriceRule(daterange.DateRange{Start: r.StartDate, End: r.EndDate}, r.Price, now); err != nil {
			return nil, err
		}
	}
	cal.ClearEvents()
	return cal, nil
}

// seedCalendars stores the calendars the repository does not know yet and
// returns how many were added.
func seedCalendars(ctx context.Context, repo availability.Repository, cals []*availability.PropertyCalendar, logger *slog.Logger) (int, error) {
	added := 0
	for _, cal := range cals {
		_, err := repo.Calendar(ctx, cal.PropertyID)
		if err == nil {
			logger.Debug("property already stored, fixture skipped", "property_id", cal.PropertyID)
			continue
		}
		if !errors.Is(err, availability.ErrPropertyNotFound) {
			return added, err
		}
		if err := repo.Save(ctx, cal); err != nil {
			return added, fmt.Errorf("save %s: %w", cal.PropertyID, err)
		}
		added++
	}
	return added, nil
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "properties.json"),
		filepath.Join("..", "data", "properties.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
