package dto

import (
	"fmt"

	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/shared/daterange"
)

// Day is one element of the calendar_data response.
type Day struct {
	Date    string  `json:"date"`
	Status  string  `json:"status"`
	Price   *int    `json:"price"`
	Comment *string `json:"comment"`
}

type SetAvailabilityRequest struct {
	PropertyID  string   `json:"property_id" binding:"required"`
	Dates       []string `json:"dates" binding:"required,min=1"`
	IsAvailable bool     `json:"is_available"`
	Comment     *string  `json:"comment"`
}

type PriceRuleRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	Price      int    `json:"price" binding:"required"`
}

type StatusResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

func MapDay(rec calendar.DayRecord) Day {
	return Day{
		Date:    rec.Date.String(),
		Status:  string(rec.Status),
		Price:   rec.Price,
		Comment: rec.Comment,
	}
}

func MapDays(records []calendar.DayRecord) []Day {
	out := make([]Day, 0, len(records))
	for _, rec := range records {
		out = append(out, MapDay(rec))
	}
	return out
}

// ToRecord validates a wire day and converts it to the domain record.
func (d Day) ToRecord() (calendar.DayRecord, error) {
	date, err := daterange.Parse(d.Date)
	if err != nil {
		return calendar.DayRecord{}, err
	}
	status, err := calendar.ParseStatus(d.Status)
	if err != nil {
		return calendar.DayRecord{}, fmt.Errorf("%s: %w", d.Date, err)
	}
	rec := calendar.DayRecord{Date: date, Status: status, Price: d.Price}
	if status == calendar.StatusManualBlock {
		rec.Comment = d.Comment
	}
	return rec, nil
}

func ParseDates(raw []string) ([]daterange.Date, error) {
	out := make([]daterange.Date, 0, len(raw))
	for _, r := range raw {
		d, err := daterange.Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func FormatDates(dates []daterange.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}
