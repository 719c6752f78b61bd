package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"Shurahub/internal/backend"
	"Shurahub/internal/cache"
	"Shurahub/internal/chatview"
	"Shurahub/internal/config"
	"Shurahub/internal/connection"
	"Shurahub/internal/history"
	"Shurahub/internal/protocol"
	"Shurahub/internal/render"
	"Shurahub/internal/storage"
	"Shurahub/internal/telemetry"
	"Shurahub/internal/view"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const version = "0.1.0"

// ChatBot wires the debate client together and runs the line-mode front end
type ChatBot struct {
	config  config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	closers []func()

	store    *storage.Store
	visitor  storage.Visitor
	client   *backend.Client
	conn     *connection.Manager
	doc      *view.Document
	ctrl     *chatview.Controller
	history  *history.History
	terminal *render.TerminalRenderer

	in    io.Reader
	out   io.Writer
	outMu sync.Mutex

	mu    sync.Mutex
	theme string
}

// NewChatBot creates a new ChatBot instance reading from stdin and writing
// to stdout
func NewChatBot(cfg config.Config) (*ChatBot, error) {
	logger, logCloser, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir, version)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	cb, err := NewWithIO(cfg, logger, tracer, meter, os.Stdin, os.Stdout)
	if err != nil {
		shutdown()
		logCloser.Close()
		return nil, err
	}
	cb.closers = append(cb.closers, shutdown, func() { logCloser.Close() })
	return cb, nil
}

// NewWithIO builds a ChatBot around an existing logger and telemetry,
// reading commands from in and writing to out
func NewWithIO(cfg config.Config, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, in io.Reader, out io.Writer) (*ChatBot, error) {
	store, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cb := &ChatBot{
		config: cfg,
		logger: logger,
		tracer: tracer,
		meter:  meter,
		store:  store,
		in:     in,
		out:    out,
		doc:    view.NewDocument(),
	}
	cb.closers = append(cb.closers, func() { store.Close() })

	cb.theme = render.LoadTheme(store, cfg.Theme)
	cb.terminal, err = render.NewTerminalRenderer(cb.glamourStyle(cb.theme), 100)
	if err != nil {
		store.Close()
		return nil, err
	}

	cb.client, err = backend.NewClient(cfg.BaseURL, cfg.SessionCookie, logger, tracer)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	var created bool
	cb.visitor, created = storage.LoadVisitor(store)
	if !cfg.LoggedIn() {
		cb.client.SetVisitorID(cb.visitor.ID)
	}
	if created {
		logger.Info("generated guest identity", "visitor_id", cb.visitor.ID)
		go cb.registerVisitor()
	}

	// The handler closures run only after Start, when ctrl is set
	cb.conn, err = connection.NewManager(cb.client.WebSocketURL(), connection.Options{
		Header:         cb.client.Header(),
		ReconnectDelay: cfg.ReconnectDelay,
		Meter:          meter,
	}, func(msg protocol.ServerMessage) {
		cb.ctrl.HandleMessage(msg)
	}, func(status connection.Status) {
		cb.ctrl.OnConnStatus(status)
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	html, err := render.NewHTMLRenderer(cache.NewRenderCache(0), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	cb.ctrl, err = chatview.New(cb.conn, cb.doc, html, chatview.Options{
		FlushWindow: cfg.FlushWindow,
		API:         cb.client,
		Prefs:       store,
		Archive:     store,
		Meter:       meter,
		VisitorID:   cb.visitor.ID,
		Guest:       !cfg.LoggedIn(),
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create chat controller: %w", err)
	}

	cb.history, err = history.New(cb.client, store, cfg.LoggedIn(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return cb, nil
}

func (cb *ChatBot) glamourStyle(theme string) string {
	if cb.config.NoColor {
		return "notty"
	}
	return render.GlamourStyle(theme)
}

func (cb *ChatBot) registerVisitor() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cb.client.RegisterVisitor(ctx, backend.VisitorRequest{
		VisitorID: cb.visitor.ID,
		CreatedAt: cb.visitor.CreatedAt,
	})
	if err != nil {
		cb.logger.Warn("failed to register visitor", "error", err)
	}
}

// Controller returns the chat view controller
func (cb *ChatBot) Controller() *chatview.Controller { return cb.ctrl }

// Document returns the render surface the controller draws on
func (cb *ChatBot) Document() *view.Document { return cb.doc }

// History returns the debate history
func (cb *ChatBot) History() *history.History { return cb.history }

// Connection returns the websocket connection manager
func (cb *ChatBot) Connection() *connection.Manager { return cb.conn }

// Terminal returns the markdown renderer for terminal output
func (cb *ChatBot) Terminal() *render.TerminalRenderer { return cb.terminal }

// Config returns the configuration the bot was built with
func (cb *ChatBot) Config() config.Config { return cb.config }

// SetOutput redirects command output, e.g. into a TUI pane
func (cb *ChatBot) SetOutput(w io.Writer) {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	cb.out = w
}

// Exec runs one slash command and reports whether the user asked to quit
func (cb *ChatBot) Exec(ctx context.Context, cmd string) (bool, error) {
	return cb.handleCommand(ctx, cmd)
}

// Start connects to the council in the background
func (cb *ChatBot) Start(ctx context.Context) {
	cb.doc.SetStatus(chatview.StatusConnecting, true)
	cb.conn.Start(ctx)
}

// Close stops the connection and releases everything NewChatBot opened
func (cb *ChatBot) Close() error {
	err := cb.conn.Close()
	cb.ctrl.Close()
	for i := len(cb.closers) - 1; i >= 0; i-- {
		cb.closers[i]()
	}
	cb.closers = nil
	return err
}

func (cb *ChatBot) printf(format string, args ...any) {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	fmt.Fprintf(cb.out, format, args...)
}

func (cb *ChatBot) println(args ...any) {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	fmt.Fprintln(cb.out, args...)
}

// markdown renders md for the terminal, falling back to the raw text
func (cb *ChatBot) markdown(md string) string {
	out, err := cb.terminal.Render(md)
	if err != nil {
		cb.logger.Warn("terminal render failed", "error", err)
		return md + "\n"
	}
	return out
}

// onChange prints document changes as they happen. Streamed text is shown
// once the verdict arrives; until then only progress lines are printed.
func (cb *ChatBot) onChange(c view.Change) {
	switch c.Kind {
	case view.ChangeDebate:
		cb.printf("\n=== %s ===\n", c.Text)
	case view.ChangeTyping:
		if c.Active {
			cb.printf("  %s is typing...\n", c.Sender)
		}
	case view.ChangeStatus:
		cb.printf("  [%s]\n", c.Text)
		if c.Text == chatview.StatusFeedbackNudge {
			cb.println("  /feedback <up|down> [note]")
		}
	case view.ChangeSynthesis:
		cb.printDebate(cb.doc.Current())
	case view.ChangeFeedback:
		cb.println("  Rate this verdict: /feedback <up|down> [note]")
	case view.ChangeCleared:
		cb.println("  (chat cleared)")
	}
}

func (cb *ChatBot) printDebate(block *view.DebateBlock) {
	if block == nil {
		return
	}
	var sb strings.Builder
	for _, node := range block.Roles {
		if node.Role == protocol.RoleSynthesizer {
			continue
		}
		fmt.Fprintf(&sb, "\n--- %s (%s) ---\n", node.Label, node.Sender)
		if node.Argument != nil {
			fmt.Fprintf(&sb, "Claim: %s\nStance: %s\n", node.Argument.Claim, node.Argument.Stance)
		}
		sb.WriteString(cb.markdown(node.Markdown))
	}
	fmt.Fprintf(&sb, "\n--- %s (%s) ---\n", protocol.RoleLabel(protocol.RoleSynthesizer), block.VerdictSender)
	sb.WriteString(cb.markdown(block.VerdictMarkdown))
	if block.Synthesis != nil {
		for _, c := range block.Synthesis.Citations {
			fmt.Fprintf(&sb, "  [%s] %s: %q\n", c.Marker, c.Source, c.Quote)
		}
	}
	cb.printf("%s\n", sb.String())
}

// handleCommand handles slash commands. It reports whether the bot should quit.
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/clear", "/new":
		return false, cb.ctrl.ClearChat()

	case "/history":
		return false, cb.refreshHistory(ctx, true)

	case "/load":
		d, err := cb.debateAt(parts)
		if err != nil {
			return false, err
		}
		return false, cb.ctrl.LoadDebate(d)

	case "/delete":
		d, err := cb.debateAt(parts)
		if err != nil {
			return false, err
		}
		if err := cb.history.Delete(ctx, d.DebateID); err != nil {
			cb.doc.SetStatus("Failed to delete debate", false)
			return false, fmt.Errorf("failed to delete debate: %w", err)
		}
		cb.ctrl.DebateDeleted(d.DebateID)
		cb.printf("Deleted %q\n", d.UserPrompt)
		return false, nil

	case "/share":
		d, err := cb.debateAt(parts)
		if err != nil {
			return false, err
		}
		text, link := cb.client.ShareLink(d)
		cb.printf("%s\n%s\n", text, link)
		return false, nil

	case "/search":
		_, sortBy := cb.history.SavedQuery()
		return false, cb.search(strings.Join(parts[1:], " "), sortBy)

	case "/sort":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /sort <newest|oldest|rating>")
		}
		term, _ := cb.history.SavedQuery()
		return false, cb.search(term, parts[1])

	case "/feedback":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /feedback <rating> [note]")
		}
		status, err := cb.ctrl.SubmitFeedback(ctx, parts[1], strings.Join(parts[2:], " "))
		if status != "" {
			cb.println(status)
		}
		return false, err

	case "/rate":
		if len(parts) < 3 {
			return false, fmt.Errorf("usage: /rate <opener|final> <1-5>")
		}
		rating, err := strconv.Atoi(parts[2])
		if err != nil {
			return false, fmt.Errorf("rating must be a number: %w", err)
		}
		if err := cb.ctrl.Rate(ctx, parts[1], rating); err != nil {
			return false, err
		}
		cb.printf("Rated %s %d/5\n", parts[1], rating)
		return false, nil

	case "/lead":
		status, err := cb.ctrl.SubmitLead(ctx, strings.Join(parts[1:], " "))
		cb.println(status)
		if err != nil {
			cb.logger.Warn("lead not submitted", "error", err)
		}
		return false, nil

	case "/theme":
		cb.mu.Lock()
		cb.theme = render.ToggleTheme(cb.store, cb.theme)
		theme := cb.theme
		cb.mu.Unlock()
		if err := cb.terminal.SetStyle(cb.glamourStyle(theme)); err != nil {
			return false, err
		}
		cb.printf("Theme set to %s\n", theme)
		return false, nil

	case "/archive":
		turns, err := cb.store.RecentTurns(10)
		if err != nil {
			return false, fmt.Errorf("failed to read archive: %w", err)
		}
		if len(turns) == 0 {
			cb.println("No archived debates on this device.")
			return false, nil
		}
		cb.println("\nArchived debates:")
		for i, t := range turns {
			cb.printf("%d. %s (%s)\n", i+1, t.Prompt, history.TimeAgo(t.FinishedAt, time.Now()))
		}
		cb.println()
		return false, nil

	case "/status":
		s := cb.ctrl.Session()
		cb.printf("Session: %s\n", s.ID)
		cb.printf("Visitor: %s\n", s.VisitorID)
		cb.printf("Connection: %s (attempts: %d)\n", s.Conn, cb.conn.Attempts())
		cb.printf("Turn: %s, finished this run: %d\n", s.State, s.Turns)
		if s.CurrentDebateID != "" {
			cb.printf("Loaded debate: %s\n", s.CurrentDebateID)
		}
		return false, nil

	case "/help":
		cb.println("Available commands:")
		cb.println("  /quit, /exit                 - Exit")
		cb.println("  /clear                       - Clear the chat")
		cb.println("  /history                     - List your recent debates")
		cb.println("  /load <n>                    - Show debate n from the list")
		cb.println("  /delete <n>                  - Delete debate n")
		cb.println("  /share <n>                   - Print a share link for debate n")
		cb.println("  /search <term>               - Search all debates")
		cb.println("  /sort <newest|oldest|rating> - Change the search order")
		cb.println("  /feedback <rating> [note]    - Send feedback on the last verdict")
		cb.println("  /rate <opener|final> <1-5>   - Rate the loaded debate")
		cb.println("  /lead <email>                - Request early access")
		cb.println("  /theme                       - Toggle dark/light rendering")
		cb.println("  /archive                     - Debates finished on this device")
		cb.println("  /status                      - Show connection and turn state")
		cb.println("  /help                        - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

func (cb *ChatBot) debateAt(parts []string) (backend.DebateRecord, error) {
	if len(parts) < 2 {
		return backend.DebateRecord{}, fmt.Errorf("usage: %s <n>", parts[0])
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return backend.DebateRecord{}, fmt.Errorf("invalid debate number %q", parts[1])
	}
	d, ok := cb.history.At(n)
	if !ok {
		return backend.DebateRecord{}, fmt.Errorf("no debate %d, run /history first", n)
	}
	return d, nil
}

// refreshHistory fetches and prints the debate list. With autoLoad, the most
// recent debate is shown when nothing else is on screen.
func (cb *ChatBot) refreshHistory(ctx context.Context, autoLoad bool) error {
	status, err := cb.history.Refresh(ctx)
	if status != "" {
		cb.println(status)
		return err
	}

	now := time.Now()
	cb.println("\nYour debates:")
	for i, d := range cb.history.List() {
		cb.printf("%d. %s (%s)\n", i+1, d.UserPrompt, history.TimeAgo(d.Timestamp, now))
	}
	cb.println()

	s := cb.ctrl.Session()
	if autoLoad && s.CurrentDebateID == "" && !s.Awaiting && s.LastPrompt == "" {
		if d, ok := cb.history.At(1); ok {
			if err := cb.ctrl.LoadDebate(d); err != nil {
				cb.logger.Debug("skipped auto-load", "error", err)
			}
		}
	}
	return nil
}

func (cb *ChatBot) search(term, sortBy string) error {
	if !cb.history.Loaded() {
		if status, err := cb.history.Refresh(context.Background()); err != nil || status == history.StatusLoggedOut {
			cb.println(status)
			return err
		}
	}
	results, err := cb.history.Search(term, sortBy)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		cb.println(history.StatusNoMatch)
		return nil
	}
	cb.printf("\n%d debate(s), sorted by %s:\n", len(results), sortBy)
	for _, d := range results {
		cb.printf("- %s [%s] rating %d, %s\n", d.UserPrompt, d.DebateID, d.Rating(), history.TimeAgo(d.Timestamp, time.Now()))
	}
	cb.println()
	return nil
}

// Run starts the line-mode chat loop
func (cb *ChatBot) Run(ctx context.Context) error {
	defer cb.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cb.doc.Subscribe(cb.onChange)

	cb.println("=== Shurahub ===")
	cb.printf("Council: %s\n", cb.client.BaseURL())
	if cb.config.LoggedIn() {
		cb.println("Signed in")
	} else {
		cb.printf("Guest session: %s\n", cb.visitor.ID)
	}
	cb.println("Type a question to start a debate, /help for commands, /quit to exit")
	cb.println()

	cb.Start(ctx)
	if cb.config.LoggedIn() {
		if err := cb.refreshHistory(ctx, true); err != nil {
			cb.logger.Warn("initial history load failed", "error", err)
		}
	}

	scanner := bufio.NewScanner(cb.in)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.printf("Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if !cb.ctrl.Submit(input) && cb.ctrl.Session().Awaiting {
			cb.println("  (the council is still deliberating)")
		}
	}
	if err := scanner.Err(); err != nil {
		cb.logger.Error("failed to read input", "error", err)
		return err
	}

	cb.println("Goodbye!")
	return nil
}
