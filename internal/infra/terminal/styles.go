package terminal

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	prompt    lipgloss.Style
	key       lipgloss.Style
	hint      lipgloss.Style
	info      lipgloss.Style
	success   lipgloss.Style
	errorText lipgloss.Style

	month     lipgloss.Style
	weekday   lipgloss.Style
	available lipgloss.Style
	booked    lipgloss.Style
	blocked   lipgloss.Style
	past      lipgloss.Style
	unknown   lipgloss.Style
	selected  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:     r.NewStyle().Bold(true),
		prompt:    r.NewStyle().Foreground(lipgloss.Color("63")),
		key:       r.NewStyle().Foreground(lipgloss.Color("218")).Bold(true),
		hint:      r.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		info:      r.NewStyle().Foreground(lipgloss.Color("39")),
		success:   r.NewStyle().Foreground(lipgloss.Color("42")),
		errorText: r.NewStyle().Foreground(lipgloss.Color("196")),

		month:     r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		weekday:   r.NewStyle().Foreground(lipgloss.Color("241")).Bold(true),
		available: r.NewStyle().Foreground(lipgloss.Color("42")),
		booked:    r.NewStyle().Foreground(lipgloss.Color("196")),
		blocked:   r.NewStyle().Foreground(lipgloss.Color("214")).Strikethrough(true),
		past:      r.NewStyle().Foreground(lipgloss.Color("244")).Faint(true),
		unknown:   r.NewStyle().Foreground(lipgloss.Color("238")),
		selected:  r.NewStyle().Background(lipgloss.Color("63")).Foreground(lipgloss.Color("0")),
	}
}
