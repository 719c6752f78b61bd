package render

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/glamour"
)

// TerminalRenderer renders markdown with ANSI styling for the terminal
type TerminalRenderer struct {
	mu    sync.Mutex
	r     *glamour.TermRenderer
	style string
	width int
}

// NewTerminalRenderer creates a renderer using a glamour standard style
// ("dark", "light", "notty", ...) wrapped at width columns
func NewTerminalRenderer(style string, width int) (*TerminalRenderer, error) {
	t := &TerminalRenderer{width: width}
	if err := t.SetStyle(style); err != nil {
		return nil, err
	}
	return t, nil
}

// SetStyle switches the glamour style
func (t *TerminalRenderer) SetStyle(style string) error {
	t.mu.Lock()
	width := t.width
	t.mu.Unlock()

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("failed to create terminal renderer: %w", err)
	}

	t.mu.Lock()
	t.r = r
	t.style = style
	t.mu.Unlock()
	return nil
}

// SetWidth changes the wrap width, keeping the current style
func (t *TerminalRenderer) SetWidth(width int) error {
	t.mu.Lock()
	if width == t.width {
		t.mu.Unlock()
		return nil
	}
	t.width = width
	style := t.style
	t.mu.Unlock()
	return t.SetStyle(style)
}

// Style returns the active style name
func (t *TerminalRenderer) Style() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.style
}

// Render converts markdown to styled terminal text
func (t *TerminalRenderer) Render(markdown string) (string, error) {
	t.mu.Lock()
	r := t.r
	t.mu.Unlock()

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
