package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ownercal/internal/app/dispatch"
	"ownercal/internal/app/dto"
	"ownercal/internal/domain/calendar"
)

var (
	ErrNotConfigured = errors.New("api: base url or http client not configured")
	ErrUnavailable   = errors.New("api: backend unavailable")
)

// StatusError is returned when the backend answers with a 4xx/5xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: %s %s returned %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("api: %s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the owner calendar backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// FetchMonth loads GET /api/calendar_data/{id}?year=Y&month=M.
func (c *Client) FetchMonth(ctx context.Context, propertyID string, page calendar.Page) ([]calendar.DayRecord, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(page.Year))
	q.Set("month", strconv.Itoa(int(page.Month)))
	path := "/api/calendar_data/" + url.PathEscape(propertyID) + "?" + q.Encode()

	var days []dto.Day
	if err := c.do(ctx, http.MethodGet, path, nil, &days); err != nil {
		return nil, err
	}
	out := make([]calendar.DayRecord, 0, len(days))
	for _, day := range days {
		rec, err := day.ToRecord()
		if err != nil {
			c.logError("calendar day decode failed", path, err)
			return nil, fmt.Errorf("api: decode %s: %w", page, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) SetAvailability(ctx context.Context, change dispatch.AvailabilityChange) error {
	body := dto.SetAvailabilityRequest{
		PropertyID:  change.PropertyID,
		Dates:       dto.FormatDates(change.Dates),
		IsAvailable: change.Available,
		Comment:     change.Comment,
	}
	return c.do(ctx, http.MethodPost, "/api/owner/set_availability", body, nil)
}

func (c *Client) AddPriceRule(ctx context.Context, rule dispatch.PriceRule) error {
	body := dto.PriceRuleRequest{
		PropertyID: rule.PropertyID,
		StartDate:  rule.Range.Start.String(),
		EndDate:    rule.Range.End.String(),
		Price:      rule.Price,
	}
	return c.do(ctx, http.MethodPost, "/api/owner/price_rule", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c == nil || c.HTTP == nil || c.BaseURL == "" {
		return ErrNotConfigured
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			err = fmt.Errorf("%w: timeout on %s %s", ErrUnavailable, method, path)
		} else if ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.logError("backend request failed", path, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: errorMessage(snippet)}
		c.logError("backend returned error", path, statusErr)
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logError("backend response decode failed", path, err)
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage prefers the {"error": "..."} field of a JSON error body.
func errorMessage(body []byte) string {
	var payload dto.StatusResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) logError(msg, path string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error(msg, "path", path, "error", err)
}

var _ dispatch.Mutator = (*Client)(nil)
