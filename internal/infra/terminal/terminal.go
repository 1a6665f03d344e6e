// Package terminal hosts the owner console in a plain terminal: prompts and
// notices are line based and the calendar is drawn with lipgloss.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ownercal/internal/app/host"
)

const cancelInput = ":q"

type lineResult struct {
	line string
	err  error
}

// Terminal implements host.Host and console.Renderer over a reader/writer
// pair. Input is read by a single goroutine so a blocked read never outlives
// a cancelled context from the caller's point of view.
type Terminal struct {
	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	styles styles

	readOnce sync.Once
	lines    chan lineResult
}

func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:     in,
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// ReadLine prints prompt and waits for the next input line. It returns
// io.EOF once the input is exhausted.
func (t *Terminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	t.readOnce.Do(t.startReader)
	if prompt != "" {
		t.write(t.styles.prompt.Render(prompt))
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (t *Terminal) startReader() {
	t.lines = make(chan lineResult)
	go func() {
		defer close(t.lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			t.lines <- lineResult{line: strings.TrimRight(scanner.Text(), "\r")}
		}
		if err := scanner.Err(); err != nil {
			t.lines <- lineResult{err: err}
		}
	}()
}

// Ask shows p and waits for a choice or a typed value. An empty choice, ":q"
// or the end of input dismisses the prompt.
func (t *Terminal) Ask(ctx context.Context, p host.Prompt) (host.Answer, error) {
	var b strings.Builder
	b.WriteString(t.styles.title.Render(p.Title))
	b.WriteString("\n")
	if p.Message != "" {
		b.WriteString(p.Message + "\n")
	}
	if len(p.Options) > 0 {
		for i, opt := range p.Options {
			fmt.Fprintf(&b, "  %s %s\n", t.styles.key.Render(fmt.Sprintf("[%d]", i+1)), opt.Label)
		}
		b.WriteString(t.styles.hint.Render("  enter a number, or nothing to cancel") + "\n")
		t.write(b.String())
		return t.choose(ctx, p.Options)
	}
	hint := "enter to accept, " + cancelInput + " to cancel"
	if p.Default != "" {
		hint = fmt.Sprintf("default %s; %s", p.Default, hint)
	}
	b.WriteString(t.styles.hint.Render("  "+hint) + "\n")
	t.write(b.String())

	line, err := t.ReadLine(ctx, "> ")
	if err == io.EOF {
		return host.Answer{}, nil
	}
	if err != nil {
		return host.Answer{}, err
	}
	line = strings.TrimSpace(line)
	switch line {
	case cancelInput:
		return host.Answer{}, nil
	case "":
		return host.Answer{Confirmed: true, Value: p.Default}, nil
	default:
		return host.Answer{Confirmed: true, Value: line}, nil
	}
}

func (t *Terminal) choose(ctx context.Context, opts []host.Option) (host.Answer, error) {
	for {
		line, err := t.ReadLine(ctx, "> ")
		if err == io.EOF {
			return host.Answer{}, nil
		}
		if err != nil {
			return host.Answer{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" || line == cancelInput {
			return host.Answer{}, nil
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(opts) {
			return host.Answer{Confirmed: true, Value: opts[n-1].ID}, nil
		}
		for _, opt := range opts {
			if strings.EqualFold(line, opt.ID) {
				return host.Answer{Confirmed: true, Value: opt.ID}, nil
			}
		}
		t.write(t.styles.errorText.Render(fmt.Sprintf("choose 1-%d", len(opts))) + "\n")
	}
}

func (t *Terminal) Notify(ctx context.Context, n host.Notice) error {
	style := t.styles.info
	switch n.Level {
	case host.LevelSuccess:
		style = t.styles.success
	case host.LevelError:
		style = t.styles.errorText
	}
	line := n.Message
	if n.Title != "" {
		line = n.Title + ": " + n.Message
	}
	t.write(style.Render(line) + "\n")
	return nil
}

// Expand is a no-op: a terminal already uses the whole window.
func (t *Terminal) Expand(context.Context) error {
	return nil
}

func (t *Terminal) Println(msg string) {
	t.write(msg + "\n")
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, s)
}

var _ host.Host = (*Terminal)(nil)
