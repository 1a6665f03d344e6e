package terminal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ownercal/internal/app/console"
	"ownercal/internal/domain/calendar"
	"ownercal/internal/domain/selection"
	"ownercal/internal/domain/shared/daterange"
)

const monthsPerRow = 3

var weekdays = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Render draws every reserved month as a grid, followed by the failed pages,
// the current selection and a legend.
func (t *Terminal) Render(_ context.Context, v console.View) error {
	days := make(map[daterange.Date]calendar.DayRecord, len(v.Days))
	for _, rec := range v.Days {
		days[rec.Date] = rec
	}
	pages := append([]calendar.Page(nil), v.Pages...)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Distance(pages[j]) > 0 })

	var b strings.Builder
	b.WriteString(t.styles.title.Render("Property " + v.PropertyID))
	b.WriteString("\n")
	for start := 0; start < len(pages); start += monthsPerRow {
		end := min(start+monthsPerRow, len(pages))
		blocks := make([]string, 0, end-start)
		for _, p := range pages[start:end] {
			blocks = append(blocks, t.styles.month.Render(t.monthGrid(p, days, v.Selection)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
		b.WriteString("\n")
	}
	for _, f := range v.Failed {
		b.WriteString(t.styles.errorText.Render(fmt.Sprintf("%s failed to load: %v", monthTitle(f.Page), f.Err)))
		b.WriteString(t.styles.hint.Render(fmt.Sprintf("  (retry %s)", f.Page)))
		b.WriteString("\n")
	}
	b.WriteString(describeSelection(v.Selection))
	b.WriteString("\n")
	b.WriteString(t.legend())
	b.WriteString("\n")
	t.write(b.String())
	return nil
}

func (t *Terminal) monthGrid(p calendar.Page, days map[daterange.Date]calendar.DayRecord, sel selection.Selection) string {
	var b strings.Builder
	b.WriteString(t.styles.title.Render(monthTitle(p)))
	b.WriteString("\n")
	for i, w := range weekdays {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t.styles.weekday.Render(w))
	}
	b.WriteString("\n")

	first := p.First()
	offset := (int(first.Time().Weekday()) + 6) % 7
	b.WriteString(strings.Repeat("   ", offset))
	col := offset
	var prices []int
	for _, d := range p.Range().Days() {
		rec, ok := days[d]
		if ok && rec.Price != nil {
			prices = append(prices, *rec.Price)
		}
		b.WriteString(t.cell(d, rec, ok, selection.Contains(sel, d)))
		col++
		if col == 7 {
			b.WriteString("\n")
			col = 0
		} else {
			b.WriteString(" ")
		}
	}
	if col != 0 {
		b.WriteString("\n")
	}
	b.WriteString(t.styles.hint.Render(priceSummary(prices)))
	return b.String()
}

func (t *Terminal) cell(d daterange.Date, rec calendar.DayRecord, loaded, selected bool) string {
	label := fmt.Sprintf("%2d", d.Day)
	if selected {
		return t.styles.selected.Render(label)
	}
	if !loaded {
		return t.styles.unknown.Render(label)
	}
	return t.statusStyle(rec.Status).Render(label)
}

func (t *Terminal) statusStyle(s calendar.Status) lipgloss.Style {
	switch s {
	case calendar.StatusBooked:
		return t.styles.booked
	case calendar.StatusManualBlock:
		return t.styles.blocked
	case calendar.StatusPast:
		return t.styles.past
	default:
		return t.styles.available
	}
}

func (t *Terminal) legend() string {
	items := []string{
		t.styles.available.Render("available"),
		t.styles.booked.Render("booked"),
		t.styles.blocked.Render("blocked"),
		t.styles.past.Render("past"),
		t.styles.selected.Render("selected"),
		t.styles.unknown.Render("not loaded"),
	}
	return strings.Join(items, "  ")
}

func describeSelection(sel selection.Selection) string {
	switch s := sel.(type) {
	case selection.AnchorSet:
		return fmt.Sprintf("Selection: %s, click an end date", s.Anchor)
	case selection.RangeConfirmed:
		return fmt.Sprintf("Selection: %s - %s (%d days)", s.Range.Start, s.Range.End, s.Range.Len())
	default:
		return "Selection: none"
	}
}

func priceSummary(prices []int) string {
	if len(prices) == 0 {
		return "no open nights"
	}
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if lo == hi {
		return fmt.Sprintf("%d per night", lo)
	}
	return fmt.Sprintf("%d-%d per night", lo, hi)
}

func monthTitle(p calendar.Page) string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

var _ console.Renderer = (*Terminal)(nil)
