// Package host describes the capabilities the embedding mini-app runtime
// offers to the console: modal prompts, alerts and viewport expansion.
package host

import "context"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Option is one button of a choice prompt.
type Option struct {
	ID    string
	Label string
}

// Prompt asks the user either to pick one of Options or, when Options is
// empty, to type a value (Default is pre-filled).
type Prompt struct {
	Title   string
	Message string
	Options []Option
	Default string
}

// Answer is the awaited result of a Prompt. Value is the chosen option ID or
// the entered text; Confirmed is false when the user dismissed the modal.
type Answer struct {
	Confirmed bool
	Value     string
}

type Host interface {
	Ask(ctx context.Context, p Prompt) (Answer, error)
	Notify(ctx context.Context, n Notice) error
	Expand(ctx context.Context) error
}
