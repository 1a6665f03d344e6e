package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"ownercal/internal/app/commands"
	"ownercal/internal/app/dto"
	calendarapp "ownercal/internal/app/handlers/availability"
	"ownercal/internal/app/queries"
	domain "ownercal/internal/domain/availability"
	"ownercal/internal/domain/shared/daterange"
)

type CalendarHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Now      func() time.Time
	Logger   *slog.Logger
}

// Month serves GET /api/calendar_data/:property_id?year=&month=. Missing
// year or month default to the current one.
func (h CalendarHandler) Month(c *gin.Context) {
	now := h.now()
	year, err := intQuery(c, "year", now.Year())
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	month, err := intQuery(c, "month", int(now.Month()))
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	query := calendarapp.GetMonthQuery{PropertyID: c.Param("property_id"), Year: year, Month: month}
	days, err := queries.Ask[calendarapp.GetMonthQuery, []dto.Day](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h CalendarHandler) SetAvailability(c *gin.Context) {
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	dates, err := dto.ParseDates(req.Dates)
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := calendarapp.SetAvailabilityCommand{
		PropertyID: req.PropertyID,
		Dates:      dates,
		Available:  req.IsAvailable,
		Comment:    normalizeComment(req.Comment),
	}
	result, err := commands.Dispatch[calendarapp.SetAvailabilityCommand, calendarapp.Status](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) AddPriceRule(c *gin.Context) {
	var req dto.PriceRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	start, err := daterange.Parse(req.StartDate)
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	end, err := daterange.Parse(req.EndDate)
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := calendarapp.AddPriceRuleCommand{
		PropertyID: req.PropertyID,
		Range:      daterange.DateRange{Start: start, End: end},
		Price:      req.Price,
	}
	result, err := commands.Dispatch[calendarapp.AddPriceRuleCommand, calendarapp.Status](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) handleError(c *gin.Context, err error) {
	var validation calendarapp.ValidationError
	switch {
	case errors.Is(err, domain.ErrPropertyNotFound):
		h.respondWithError(c, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrDateBooked),
		errors.Is(err, domain.ErrConcurrentUpdate):
		h.respondWithError(c, http.StatusConflict, err)
	case errors.As(err, &validation),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrNoDates),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrInvalidDate):
		h.respondWithError(c, http.StatusBadRequest, err)
	case errors.Is(err, commands.ErrNilBus), errors.Is(err, queries.ErrNilBus):
		h.respondWithError(c, http.StatusServiceUnavailable, err)
	default:
		h.respondWithError(c, http.StatusInternalServerError, err)
	}
}

func (h CalendarHandler) respondWithError(c *gin.Context, status int, err error) {
	if h.Logger != nil {
		fields := []any{"status", status, "error", err, "path", c.FullPath(), "request_id", c.GetString("request_id")}
		if status >= http.StatusInternalServerError {
			h.Logger.Error("calendar request failed", fields...)
		} else {
			h.Logger.Warn("calendar request rejected", fields...)
		}
	}
	c.JSON(status, dto.StatusResponse{Error: err.Error()})
}

func (h CalendarHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, calendarapp.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return v, nil
}

// normalizeComment treats a blank comment as no comment.
func normalizeComment(comment *string) *string {
	if comment == nil || strings.TrimSpace(*comment) == "" {
		return nil
	}
	v := strings.TrimSpace(*comment)
	return &v
}

var _ CalendarHTTP = CalendarHandler{}
