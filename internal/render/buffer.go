package render

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"Shurahub/internal/telemetry"
)

// Target receives rendered role content
type Target interface {
	RenderRole(role, sender, markdown, html string)
}

// StreamBuffer accumulates streamed fragments per role and writes them to a
// Target in debounced flushes. The first fragment after a flush arms a
// single timer; everything arriving before it fires is coalesced into one
// render per role.
type StreamBuffer struct {
	renderer Renderer
	target   Target
	window   time.Duration
	logger   *slog.Logger
	flushes  metric.Int64Counter

	mu        sync.Mutex
	buffers   map[string]*strings.Builder
	senders   map[string]string
	order     []string
	dirty     map[string]bool
	scheduled bool
	gen       uint64
	timer     *time.Timer
}

// NewStreamBuffer creates a buffer flushing to target at most once per window
func NewStreamBuffer(renderer Renderer, target Target, window time.Duration, logger *slog.Logger, meter metric.Meter) *StreamBuffer {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &StreamBuffer{
		renderer: renderer,
		target:   target,
		window:   window,
		logger:   logger,
		flushes:  telemetry.Counter(meter, "shurahub.render.flushes", "Debounced render flushes", logger),
		buffers:  make(map[string]*strings.Builder),
		senders:  make(map[string]string),
		dirty:    make(map[string]bool),
	}
}

// Append adds a fragment to the role's buffer and schedules a flush
func (b *StreamBuffer) Append(role, sender, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[role]
	if !ok {
		buf = &strings.Builder{}
		b.buffers[role] = buf
		b.order = append(b.order, role)
	}
	buf.WriteString(text)
	if sender != "" {
		b.senders[role] = sender
	}
	b.dirty[role] = true

	if !b.scheduled {
		b.scheduled = true
		gen := b.gen
		b.timer = time.AfterFunc(b.window, func() { b.flushScheduled(gen) })
	}
}

// Replace sets the role's full text (a complete, non-streamed message) and
// renders it immediately
func (b *StreamBuffer) Replace(role, sender, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[role]
	if !ok {
		buf = &strings.Builder{}
		b.buffers[role] = buf
		b.order = append(b.order, role)
	}
	buf.Reset()
	buf.WriteString(text)
	if sender != "" {
		b.senders[role] = sender
	}
	b.renderLocked(role)
	delete(b.dirty, role)
}

// Text returns the accumulated text for role
func (b *StreamBuffer) Text(role string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.buffers[role]; ok {
		return buf.String()
	}
	return ""
}

// Sender returns the last sender seen for role
func (b *StreamBuffer) Sender(role string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.senders[role]
}

// Pending reports whether a flush is scheduled
func (b *StreamBuffer) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scheduled
}

// Flush renders all dirty roles now
func (b *StreamBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Snapshot holds the buffered text of one role at Finish time
type Snapshot struct {
	Role   string
	Sender string
	Text   string
}

// Finish flushes pending renders, clears all buffers and returns what they
// held in arrival order
func (b *StreamBuffer) Finish() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flushLocked()
	out := make([]Snapshot, 0, len(b.order))
	for _, role := range b.order {
		out = append(out, Snapshot{Role: role, Sender: b.senders[role], Text: b.buffers[role].String()})
	}
	b.resetLocked()
	return out
}

// Reset drops all buffered text without rendering
func (b *StreamBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *StreamBuffer) resetLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.scheduled = false
	b.buffers = make(map[string]*strings.Builder)
	b.senders = make(map[string]string)
	b.dirty = make(map[string]bool)
	b.order = nil
}

func (b *StreamBuffer) flushScheduled(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return
	}
	b.flushLocked()
}

func (b *StreamBuffer) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.scheduled = false

	if len(b.dirty) == 0 {
		return
	}
	for _, role := range b.order {
		if b.dirty[role] {
			b.renderLocked(role)
		}
	}
	b.dirty = make(map[string]bool)
	b.flushes.Add(context.Background(), 1)
}

func (b *StreamBuffer) renderLocked(role string) {
	text := b.buffers[role].String()
	b.target.RenderRole(role, b.senders[role], text, MustRender(b.renderer, text, b.logger))
}
