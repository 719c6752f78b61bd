package chatview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"Shurahub/internal/backend"
	"Shurahub/internal/connection"
	"Shurahub/internal/debate"
	"Shurahub/internal/protocol"
	"Shurahub/internal/render"
	"Shurahub/internal/session"
	"Shurahub/internal/storage"
	"Shurahub/internal/view"
)

// Status banner texts
const (
	StatusConnected     = "Connected. Start a new debate."
	StatusReconnecting  = "Reconnecting to the council..."
	StatusHiccup        = "Connection hiccup. Retrying..."
	StatusConnecting    = "Connecting to the council..."
	StatusDrafting      = "Council drafting your verdict..."
	StatusWarmingUp     = "Council warming up..."
	StatusGuestWarming  = "Guest session: warming up the council..."
	StatusSnag          = "We hit a snag. Please try again."
	StatusReady         = "Ready for the next decision."
	StatusNewDebate     = "Ready for a new debate."
	StatusFeedbackSent  = "Thanks for the signal."
	StatusFeedbackError = "Unable to send feedback right now."
	StatusFeedbackNudge = "How did the council do? Your feedback shapes the next verdict."
	StatusInvalidEmail  = "Please enter a valid email address."
	StatusLeadSent      = "Thank you! We will be in touch shortly with your free debate."
	StatusLeadError     = "An error occurred. Please try again."
)

// FeedbackCategory tags feedback about a council response
const FeedbackCategory = "council_response"

// Analytics events
const (
	EventGoldenAnswerView = "golden_answer_view"
	EventInitialAnalysis  = "initial_analysis_gen"
)

const (
	// DefaultTypingTimeout is how long a typing indicator stays without
	// another event
	DefaultTypingTimeout = 5 * time.Second

	// DefaultFeedbackReminder is the delay between a verdict and the
	// feedback reminder
	DefaultFeedbackReminder = 30 * time.Second
)

var (
	ErrBusy       = errors.New("the council is still deliberating")
	ErrNoDebate   = errors.New("no debate loaded")
	ErrNoRating   = errors.New("select a rating first")
	ErrNoBackend  = errors.New("backend unavailable")
	ErrEmptyEmail = errors.New("empty email address")
)

// Sender is the outbound half of the connection
type Sender interface {
	Send(text string)
	Connected() bool
}

// API is the REST surface the controller talks to
type API interface {
	SubmitFeedback(ctx context.Context, req backend.FeedbackRequest) error
	SubmitRating(ctx context.Context, req backend.RatingRequest) error
	SubmitLead(ctx context.Context, email string) error
	TrackEvent(ctx context.Context, name string, metadata map[string]any) error
}

// Archive stores finalized turns locally
type Archive interface {
	SaveTurn(t storage.Turn) (int64, error)
}

// Options carries the optional collaborators of a Controller
type Options struct {
	FlushWindow   time.Duration
	TypingTimeout time.Duration
	// FeedbackReminder is the delay before the reminder status after a
	// verdict. Negative disables the reminder.
	FeedbackReminder time.Duration
	API         API
	Prefs       storage.Preferences
	Archive     Archive
	Meter       metric.Meter
	VisitorID   string
	Guest       bool
}

// Controller turns server events and user actions into surface updates
type Controller struct {
	sender   Sender
	surface  view.Surface
	renderer render.Renderer
	buffer   *render.StreamBuffer
	api      API
	prefs    storage.Preferences
	archive  Archive
	logger   *slog.Logger

	typingTimeout time.Duration
	reminderDelay time.Duration

	mu            sync.Mutex
	session       *session.Session
	hasDebate     bool
	turnOpen      bool // a live turn began and has not been archived
	turnGen       uint64
	feedbackShown bool
	feedbackSent  bool
	lastVerdict   string
	models        map[string]string
	typingTimer   *time.Timer
	typingGen     uint64
	reminderTimer *time.Timer
	closed        bool

	wg sync.WaitGroup
}

// New creates a controller drawing on surface and sending through sender
func New(sender Sender, surface view.Surface, renderer render.Renderer, opts Options, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if sender == nil || surface == nil || renderer == nil {
		return nil, fmt.Errorf("sender, surface and renderer are required")
	}
	window := opts.FlushWindow
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	typing := opts.TypingTimeout
	if typing <= 0 {
		typing = DefaultTypingTimeout
	}
	reminder := opts.FeedbackReminder
	if reminder == 0 {
		reminder = DefaultFeedbackReminder
	}

	c := &Controller{
		sender:   sender,
		surface:  surface,
		renderer: renderer,
		api:      opts.API,
		prefs:    opts.Prefs,
		archive:  opts.Archive,
		logger:   logger,
		session:  session.New(opts.VisitorID, opts.Guest),
		models:   make(map[string]string),

		typingTimeout: typing,
		reminderDelay: reminder,
	}
	c.buffer = render.NewStreamBuffer(renderer, surface, window, logger, opts.Meter)
	return c, nil
}

// Session returns a copy of the current session state
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.session
}

// Buffer exposes the streaming buffer, mainly for inspection
func (c *Controller) Buffer() *render.StreamBuffer {
	return c.buffer
}

// Wait blocks until background requests started by the controller finish
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops pending timers and waits for background requests. Events
// handled after Close no longer start requests.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.stopReminderLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

// OnConnStatus maps connection state onto the status banner
func (c *Controller) OnConnStatus(status connection.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch status {
	case connection.StatusConnected:
		c.session.Conn = session.ConnOpen
		c.surface.SetStatus(StatusConnected, false)
	case connection.StatusReconnecting:
		c.session.Conn = session.ConnReconnecting
		c.setWorkingLocked(false)
		c.surface.SetStatus(StatusReconnecting, true)
	case connection.StatusError:
		c.session.Conn = session.ConnReconnecting
		c.surface.SetStatus(StatusHiccup, true)
	}
}

// Submit sends a prompt. It reports whether the prompt went out.
func (c *Controller) Submit(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Awaiting {
		c.logger.Debug("prompt ignored while awaiting a response")
		return false
	}
	if !c.sender.Connected() {
		c.surface.SetStatus(StatusConnecting, true)
		return false
	}

	c.sender.Send(text)
	c.session.LastPrompt = text
	c.buffer.Reset()
	c.surface.AppendUserMessage(text)
	c.setWorkingLocked(true)
	c.surface.SetStatus(StatusDrafting, true)
	c.logger.Info("prompt submitted", "length", len(text))
	return true
}

// HandleMessage applies one server event
func (c *Controller) HandleMessage(msg protocol.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Kind() {
	case protocol.TypeTyping:
		c.showTypingLocked(msg.Sender)
		return
	case protocol.TypeStream:
		c.clearTypingLocked()
		c.handleStreamLocked(msg)
		return
	}

	c.clearTypingLocked()

	if msg.IsInitiating() {
		c.beginTurnLocked(msg.Mode)
		return
	}

	if msg.Sender == protocol.SystemSender && strings.Contains(strings.ToLower(msg.Text), "error") {
		c.logger.Warn("server reported an error", "text", msg.Text)
		c.setWorkingLocked(false)
		c.session.State = session.StateIdle
		c.surface.SetStatus(StatusSnag, false)
	}

	if !c.hasDebate {
		return
	}

	if msg.Role == protocol.RoleOpener || msg.Role == protocol.RoleCritiquer {
		c.buffer.Replace(msg.Role, msg.Sender, msg.Text)
		c.surface.SetArgument(msg.Role, msg.Sender, debate.ParseArgument(msg.Text))
		c.rememberModelLocked(msg.Role, msg.Sender)
	}

	if msg.IsVerdict() {
		c.finalizeLocked(msg)
	}
}

func (c *Controller) handleStreamLocked(msg protocol.ServerMessage) {
	if !c.hasDebate {
		return
	}
	role := msg.StreamRole()
	c.buffer.Append(role, msg.Sender, msg.Text)
	c.rememberModelLocked(role, msg.Sender)
	c.session.State = session.StateStreaming
}

func (c *Controller) beginTurnLocked(mode string) {
	c.surface.BeginDebate(c.session.LastPrompt)
	c.hasDebate = true
	c.buffer.Reset()
	c.models = make(map[string]string)
	c.feedbackShown = false
	c.feedbackSent = false
	c.lastVerdict = ""
	c.startTurnLocked()
	c.turnOpen = true
	c.session.CurrentDebateID = ""
	c.session.Guest = mode == protocol.ModeGuest
	c.session.State = session.StateWarmingUp

	c.setWorkingLocked(true)
	c.surface.SetStreaming(true)
	if c.session.Guest {
		c.surface.SetStatus(StatusGuestWarming, true)
	} else {
		c.surface.SetStatus(StatusWarmingUp, true)
	}
}

func (c *Controller) finalizeLocked(msg protocol.ServerMessage) {
	snapshots := c.buffer.Finish()

	html := render.MustRender(c.renderer, msg.Text, c.logger)
	c.surface.SetSynthesis(msg.Sender, msg.Text, html, debate.ParseSynthesis(msg.Text))
	c.rememberModelLocked(protocol.RoleSynthesizer, msg.Sender)
	c.lastVerdict = msg.Text

	if !c.feedbackShown {
		c.feedbackShown = true
		c.surface.ShowFeedback()
		c.scheduleReminderLocked()
	}

	c.setWorkingLocked(false)
	c.surface.SetStatus(StatusReady, false)
	c.surface.SetStreaming(false)

	if c.turnOpen {
		c.turnOpen = false
		c.session.Turns++
		c.archiveLocked(snapshots, msg)
	}
	c.session.State = session.StateFinalized

	prompt := c.session.LastPrompt
	c.track(EventGoldenAnswerView, map[string]any{"event_category": "engagement", "prompt_title": prompt})
	if c.prefs != nil {
		if _, done := c.prefs.Get(storage.KeyFirstAnalysisGenerated); !done {
			c.prefs.Set(storage.KeyFirstAnalysisGenerated, "true")
			c.track(EventInitialAnalysis, map[string]any{"event_category": "onboarding"})
		}
	}
	c.logger.Info("debate finalized", "turns", c.session.Turns)
}

func (c *Controller) archiveLocked(snapshots []render.Snapshot, verdict protocol.ServerMessage) {
	if c.archive == nil {
		return
	}
	turn := storage.Turn{
		Prompt:              c.session.LastPrompt,
		SynthesizerModel:    verdict.Sender,
		SynthesizerResponse: verdict.Text,
		FinishedAt:          time.Now(),
	}
	for _, s := range snapshots {
		switch s.Role {
		case protocol.RoleOpener:
			turn.OpenerModel, turn.OpenerResponse = c.models[s.Role], s.Text
		case protocol.RoleCritiquer:
			turn.CritiquerModel, turn.CritiquerResponse = c.models[s.Role], s.Text
		}
	}
	if _, err := c.archive.SaveTurn(turn); err != nil {
		c.logger.Error("failed to archive turn", "error", err)
	}
}

func (c *Controller) rememberModelLocked(role, sender string) {
	if sender != "" {
		c.models[role] = sender
	}
}

// startTurnLocked invalidates timers tied to the previous turn
func (c *Controller) startTurnLocked() {
	c.turnGen++
	c.turnOpen = false
	c.stopReminderLocked()
}

func (c *Controller) scheduleReminderLocked() {
	c.stopReminderLocked()
	if c.reminderDelay < 0 || c.closed {
		return
	}
	gen := c.turnGen
	c.reminderTimer = time.AfterFunc(c.reminderDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.turnGen || c.feedbackSent || c.session.Awaiting {
			return
		}
		c.surface.SetStatus(StatusFeedbackNudge, false)
	})
}

func (c *Controller) stopReminderLocked() {
	if c.reminderTimer != nil {
		c.reminderTimer.Stop()
		c.reminderTimer = nil
	}
}

// track sends an analytics event without waiting for it. The caller holds
// c.mu, which orders wg.Add before the wait in Close.
func (c *Controller) track(name string, metadata map[string]any) {
	if c.api == nil || c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.api.TrackEvent(ctx, name, metadata); err != nil {
			c.logger.Warn("failed to send analytics event", "event", name, "error", err)
		}
	}()
}

func (c *Controller) setWorkingLocked(working bool) {
	c.session.Awaiting = working
	c.surface.SetInputEnabled(!working)
}

func (c *Controller) showTypingLocked(sender string) {
	c.surface.ShowTyping(sender)
	c.surface.SetStatus(fmt.Sprintf("%s is drafting...", sender), true)

	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingGen++
	gen := c.typingGen
	c.typingTimer = time.AfterFunc(c.typingTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen == c.typingGen {
			c.clearTypingLocked()
		}
	})
}

func (c *Controller) clearTypingLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typingGen++
	c.surface.ClearTyping()
}
