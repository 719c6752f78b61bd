package chatview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shurahub/internal/backend"
	"Shurahub/internal/cache"
	"Shurahub/internal/connection"
	"Shurahub/internal/protocol"
	"Shurahub/internal/render"
	"Shurahub/internal/session"
	"Shurahub/internal/storage"
	"Shurahub/internal/telemetry"
	"Shurahub/internal/view"
)

type fakeSender struct {
	mu        sync.Mutex
	connected bool
	sent      []string
}

func (f *fakeSender) Send(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
}

func (f *fakeSender) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeAPI struct {
	mu        sync.Mutex
	events    []string
	feedback  []backend.FeedbackRequest
	ratings   []backend.RatingRequest
	leads     []string
	failWrite bool
}

func (f *fakeAPI) SubmitFeedback(_ context.Context, req backend.FeedbackRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("HTTP error 503")
	}
	f.feedback = append(f.feedback, req)
	return nil
}

func (f *fakeAPI) SubmitRating(_ context.Context, req backend.RatingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings = append(f.ratings, req)
	return nil
}

func (f *fakeAPI) SubmitLead(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, email)
	return nil
}

func (f *fakeAPI) TrackEvent(_ context.Context, name string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
	return nil
}

func (f *fakeAPI) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type memPrefs struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memPrefs) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memPrefs) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

type fakeArchive struct {
	turns []storage.Turn
}

func (f *fakeArchive) SaveTurn(t storage.Turn) (int64, error) {
	f.turns = append(f.turns, t)
	return int64(len(f.turns)), nil
}

type fixture struct {
	ctrl    *Controller
	doc     *view.Document
	sender  *fakeSender
	api     *fakeAPI
	prefs   *memPrefs
	archive *fakeArchive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, configure func(*Options)) *fixture {
	t.Helper()
	renderer, err := render.NewHTMLRenderer(cache.NewRenderCache(32), telemetry.NopLogger())
	require.NoError(t, err)

	f := &fixture{
		doc:     view.NewDocument(),
		sender:  &fakeSender{connected: true},
		api:     &fakeAPI{},
		prefs:   &memPrefs{values: map[string]string{}},
		archive: &fakeArchive{},
	}
	opts := Options{
		FlushWindow: time.Hour,
		API:         f.api,
		Prefs:       f.prefs,
		Archive:     f.archive,
		VisitorID:   "v1",
	}
	if configure != nil {
		configure(&opts)
	}
	f.ctrl, err = New(f.sender, f.doc, renderer, opts, telemetry.NopLogger())
	require.NoError(t, err)
	t.Cleanup(f.ctrl.Close)
	return f
}

func initiating(mode string) protocol.ServerMessage {
	return protocol.ServerMessage{Sender: protocol.SystemSender, Text: protocol.InitiatingText, Mode: mode}
}

func stream(role, sender, text string) protocol.ServerMessage {
	return protocol.ServerMessage{Type: protocol.TypeStream, Role: role, Sender: sender, Text: text}
}

func TestNewValidates(t *testing.T) {
	_, err := New(&fakeSender{}, view.NewDocument(), nil, Options{}, telemetry.NopLogger())
	require.Error(t, err)
	_, err = New(&fakeSender{}, view.NewDocument(), nil, Options{}, nil)
	require.Error(t, err)
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.ctrl.Submit(""))
	assert.False(t, f.ctrl.Submit("  \n\t "))
	assert.Empty(t, f.sender.messages())
	assert.Empty(t, f.doc.Snapshot().Entries)
}

func TestSubmitWhileDisconnected(t *testing.T) {
	f := newFixture(t)
	f.sender.connected = false

	assert.False(t, f.ctrl.Submit("Astro or Next?"))
	assert.Empty(t, f.sender.messages())
	st := f.doc.Snapshot()
	assert.Equal(t, StatusConnecting, st.Status)
	assert.True(t, st.StatusActive)
	assert.Empty(t, st.Entries)
}

func TestSubmitLocksInputAndIgnoresSecondPrompt(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.ctrl.Submit("  Astro or Next?  "))
	assert.Equal(t, []string{"Astro or Next?"}, f.sender.messages())

	st := f.doc.Snapshot()
	require.Len(t, st.Entries, 1)
	assert.Equal(t, view.EntryUser, st.Entries[0].Kind)
	assert.Equal(t, "Astro or Next?", st.Entries[0].Text)
	assert.False(t, st.InputEnabled)
	assert.Equal(t, StatusDrafting, st.Status)

	assert.False(t, f.ctrl.Submit("another"))
	assert.Len(t, f.sender.messages(), 1)
	assert.Equal(t, "Astro or Next?", f.ctrl.Session().LastPrompt)
}

func TestFullDebateTurn(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("Postgres or Mongo?"))

	f.ctrl.HandleMessage(protocol.ServerMessage{Type: protocol.TypeTyping, Sender: "llama"})
	assert.Equal(t, "llama", f.doc.Snapshot().Typing)
	assert.Equal(t, "llama is drafting...", f.doc.Snapshot().Status)

	f.ctrl.HandleMessage(initiating(protocol.ModeAuthenticated))
	assert.Empty(t, f.doc.Snapshot().Typing)
	assert.Equal(t, StatusWarmingUp, f.doc.Snapshot().Status)
	assert.Equal(t, session.StateWarmingUp, f.ctrl.Session().State)
	cur := f.doc.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "Postgres or Mongo?", cur.Title)

	for _, frag := range []string{"Claim: Post", "gres\nStance: Pro"} {
		f.ctrl.HandleMessage(stream(protocol.RoleOpener, "llama", frag))
	}
	f.ctrl.HandleMessage(stream("", "mixtral", "Mongo is flexible"))
	assert.Equal(t, session.StateStreaming, f.ctrl.Session().State)
	assert.Equal(t, "Claim: Postgres\nStance: Pro", f.ctrl.Buffer().Text(protocol.RoleOpener))
	assert.Equal(t, "Mongo is flexible", f.ctrl.Buffer().Text("mixtral"))

	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleCritiquer, Sender: "mixtral", Text: "Claim: Mongo scales"})
	cur = f.doc.Current()
	critic := cur.Role(protocol.RoleCritiquer)
	require.NotNil(t, critic)
	require.NotNil(t, critic.Argument)
	assert.Equal(t, "Mongo scales", critic.Argument.Claim)

	verdict := "**Final Verdict:** Consensus: Use Postgres."
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: verdict})

	st := f.doc.Snapshot()
	assert.True(t, st.InputEnabled)
	assert.False(t, st.Streaming)
	assert.Equal(t, StatusReady, st.Status)
	assert.False(t, st.StatusActive)

	cur = f.doc.Current()
	assert.Equal(t, verdict, cur.VerdictMarkdown)
	assert.Contains(t, cur.VerdictHTML, "<strong>Final Verdict:</strong>")
	require.NotNil(t, cur.Synthesis)
	assert.Equal(t, "Use Postgres.", cur.Synthesis.Consensus)
	assert.Equal(t, 1, cur.FeedbackShown)
	opener := cur.Role(protocol.RoleOpener)
	require.NotNil(t, opener)
	assert.Equal(t, "Claim: Postgres\nStance: Pro", opener.Markdown)
	assert.False(t, opener.Streaming)

	s := f.ctrl.Session()
	assert.Equal(t, session.StateFinalized, s.State)
	assert.False(t, s.Awaiting)
	assert.Equal(t, 1, s.Turns)

	v, ok := f.prefs.Get(storage.KeyFirstAnalysisGenerated)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.Len(t, f.archive.turns, 1)
	turn := f.archive.turns[0]
	assert.Equal(t, "Postgres or Mongo?", turn.Prompt)
	assert.Equal(t, "llama", turn.OpenerModel)
	assert.Equal(t, "Claim: Postgres\nStance: Pro", turn.OpenerResponse)
	assert.Equal(t, "mixtral", turn.CritiquerModel)
	assert.Equal(t, "Claim: Mongo scales", turn.CritiquerResponse)
	assert.Equal(t, "gpt", turn.SynthesizerModel)

	f.ctrl.Wait()
	assert.ElementsMatch(t, []string{EventGoldenAnswerView, EventInitialAnalysis}, f.api.eventNames())
}

func TestFeedbackShownOncePerTurn(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: "**Final Verdict:** A"})
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: "more"})

	assert.Equal(t, 1, f.doc.Current().FeedbackShown)
	assert.Len(t, f.archive.turns, 1)
	assert.Equal(t, 1, f.ctrl.Session().Turns)
}

func TestFirstAnalysisEventOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.prefs.Set(storage.KeyFirstAnalysisGenerated, "true")
	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(protocol.ServerMessage{Sender: "gpt", Text: "**Final Verdict:** A"})

	f.ctrl.Wait()
	assert.Equal(t, []string{EventGoldenAnswerView}, f.api.eventNames())
}

func TestGuestWarmUpStatus(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(initiating(protocol.ModeGuest))
	assert.Equal(t, StatusGuestWarming, f.doc.Snapshot().Status)
	assert.True(t, f.ctrl.Session().Guest)
}

func TestServerErrorUnlocksInput(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(protocol.ServerMessage{Sender: protocol.SystemSender, Text: "An ERROR occurred during the debate."})

	st := f.doc.Snapshot()
	assert.True(t, st.InputEnabled)
	assert.Equal(t, StatusSnag, st.Status)
	assert.False(t, f.ctrl.Session().Awaiting)
	assert.True(t, f.ctrl.Submit("retry"))
}

func TestStreamBeforeDebateIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.ctrl.HandleMessage(stream(protocol.RoleOpener, "llama", "orphan"))
	assert.Empty(t, f.ctrl.Buffer().Text(protocol.RoleOpener))
	assert.Equal(t, session.StateIdle, f.ctrl.Session().State)
}

func TestStreamClearsTypingIndicator(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(protocol.ServerMessage{Type: protocol.TypeTyping, Sender: "llama"})
	require.Equal(t, "llama", f.doc.Snapshot().Typing)

	f.ctrl.HandleMessage(stream(protocol.RoleOpener, "llama", "x"))
	assert.Empty(t, f.doc.Snapshot().Typing)
}

func TestNewDebateResetsBuffers(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("q1"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(stream(protocol.RoleOpener, "llama", "stale"))
	f.ctrl.HandleMessage(initiating(""))
	assert.Empty(t, f.ctrl.Buffer().Text(protocol.RoleOpener))

	entries := f.doc.Snapshot().Entries
	assert.Len(t, entries, 3)
}

func TestOnConnStatus(t *testing.T) {
	f := newFixture(t)

	f.ctrl.OnConnStatus(connection.StatusConnected)
	assert.Equal(t, StatusConnected, f.doc.Snapshot().Status)
	assert.Equal(t, session.ConnOpen, f.ctrl.Session().Conn)

	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.OnConnStatus(connection.StatusReconnecting)
	st := f.doc.Snapshot()
	assert.Equal(t, StatusReconnecting, st.Status)
	assert.True(t, st.StatusActive)
	assert.True(t, st.InputEnabled)
	assert.False(t, f.ctrl.Session().Awaiting)

	f.ctrl.OnConnStatus(connection.StatusError)
	assert.Equal(t, StatusHiccup, f.doc.Snapshot().Status)
}

func sampleRecord() backend.DebateRecord {
	return backend.DebateRecord{
		DebateID:            "d1",
		UserPrompt:          "Rent or buy?",
		OpenerModel:         "llama",
		OpenerResponse:      "Claim: Buy\nStance: Pro",
		CritiquerModel:      "mixtral",
		CritiquerResponse:   "Claim: Rent\nStance: Con",
		SynthesizerModel:    "gpt",
		SynthesizerResponse: "**Final Verdict:** Consensus: Rent for now.",
		Timestamp:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoadDebateReplacesView(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("old prompt"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: "**Final Verdict:** old"})

	rec := sampleRecord()
	orig := rec
	require.NoError(t, f.ctrl.LoadDebate(rec))
	require.NoError(t, f.ctrl.LoadDebate(rec))

	assert.Equal(t, orig, rec)
	st := f.doc.Snapshot()
	require.Len(t, st.Entries, 2)
	assert.Equal(t, "Rent or buy?", st.Entries[0].Text)
	block := st.Entries[1].Debate
	require.NotNil(t, block)
	require.Len(t, block.Roles, 3)
	assert.Equal(t, "Buy", block.Role(protocol.RoleOpener).Argument.Claim)
	assert.Equal(t, "Con", block.Role(protocol.RoleCritiquer).Argument.Stance)
	assert.Equal(t, "Judge", block.Role(protocol.RoleSynthesizer).Label)
	assert.Equal(t, "Rent for now.", block.Synthesis.Consensus)
	assert.True(t, block.FeedbackVisible)
	assert.Equal(t, "d1", f.ctrl.CurrentDebateID())
}

func TestLoadDebateSkipsMissingRoles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.LoadDebate(backend.DebateRecord{DebateID: "d2", UserPrompt: "p", OpenerResponse: "just text"}))
	cur := f.doc.Current()
	require.Len(t, cur.Roles, 1)
	assert.Nil(t, cur.Synthesis)
}

func TestDebateDeletedClearsActiveDebate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.LoadDebate(sampleRecord()))

	f.ctrl.DebateDeleted("other")
	assert.Len(t, f.doc.Snapshot().Entries, 2)

	f.ctrl.DebateDeleted("d1")
	st := f.doc.Snapshot()
	assert.Empty(t, st.Entries)
	assert.Equal(t, StatusNewDebate, st.Status)
	assert.Empty(t, f.ctrl.CurrentDebateID())
}

func TestFeedbackMessageFormat(t *testing.T) {
	got := FeedbackMessage("up", "Rent or buy?", "Rent.", "")
	assert.Equal(t, `rating=up; prompt="Rent or buy?"; verdict="Rent."`, got)

	got = FeedbackMessage("down", strings.Repeat("p", 200), strings.Repeat("v", 200), "  too vague ")
	assert.Equal(t, `rating=down; prompt="`+strings.Repeat("p", 140)+`"; verdict="`+strings.Repeat("v", 160)+`"; note=too vague`, got)
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.LoadDebate(sampleRecord()))
	ctx := context.Background()

	_, err := f.ctrl.SubmitFeedback(ctx, "", "note")
	assert.ErrorIs(t, err, ErrNoRating)
	assert.Empty(t, f.api.feedback)

	status, err := f.ctrl.SubmitFeedback(ctx, "up", "")
	require.NoError(t, err)
	assert.Equal(t, StatusFeedbackSent, status)
	require.Len(t, f.api.feedback, 1)
	assert.Equal(t, FeedbackCategory, f.api.feedback[0].Category)
	assert.Nil(t, f.api.feedback[0].Email)
	assert.Contains(t, f.api.feedback[0].Message, `prompt="Rent or buy?"`)

	f.api.failWrite = true
	status, err = f.ctrl.SubmitFeedback(ctx, "up", "")
	assert.Error(t, err)
	assert.Equal(t, StatusFeedbackError, status)
}

func TestRateRequiresLoadedDebate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.ErrorIs(t, f.ctrl.Rate(ctx, backend.RaterFinal, 5), ErrNoDebate)

	require.NoError(t, f.ctrl.LoadDebate(sampleRecord()))
	require.NoError(t, f.ctrl.Rate(ctx, backend.RaterOpener, 4))
	assert.Equal(t, []backend.RatingRequest{{DebateID: "d1", Rater: "opener", Rating: 4}}, f.api.ratings)
}

func TestSubmitLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.ctrl.SubmitLead(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyEmail)
	assert.Equal(t, StatusInvalidEmail, status)

	status, err = f.ctrl.SubmitLead(ctx, " a@b.co ")
	require.NoError(t, err)
	assert.Equal(t, StatusLeadSent, status)
	assert.Equal(t, []string{"a@b.co"}, f.api.leads)
}

func TestLoadAndClearRefusedWhileAwaitingVerdict(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("Kotlin or Swift?"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(stream(protocol.RoleOpener, "llama", "Claim: Kotlin"))

	assert.ErrorIs(t, f.ctrl.LoadDebate(sampleRecord()), ErrBusy)
	assert.ErrorIs(t, f.ctrl.ClearChat(), ErrBusy)
	assert.Empty(t, f.ctrl.CurrentDebateID())

	verdict := "**Final Verdict:** Consensus: Kotlin."
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: verdict})

	cur := f.doc.Current()
	assert.Equal(t, "Kotlin or Swift?", cur.Title)
	assert.Equal(t, verdict, cur.VerdictMarkdown)
	assert.Equal(t, 1, f.ctrl.Session().Turns)
	require.Len(t, f.archive.turns, 1)
	assert.Equal(t, "Kotlin or Swift?", f.archive.turns[0].Prompt)
	assert.Equal(t, "Claim: Kotlin", f.archive.turns[0].OpenerResponse)

	require.NoError(t, f.ctrl.LoadDebate(sampleRecord()))
	assert.Equal(t, "d1", f.ctrl.CurrentDebateID())
}

func TestLiveTurnAfterHistoryLoadIsArchived(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.LoadDebate(sampleRecord()))
	assert.Empty(t, f.archive.turns)

	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: "**Final Verdict:** A"})

	assert.Equal(t, 1, f.ctrl.Session().Turns)
	require.Len(t, f.archive.turns, 1)
	assert.Equal(t, "q", f.archive.turns[0].Prompt)
	assert.Empty(t, f.ctrl.CurrentDebateID())
}

func TestTypingIndicatorTimesOut(t *testing.T) {
	const timeout = 200 * time.Millisecond
	f := newFixtureWith(t, func(o *Options) { o.TypingTimeout = timeout })

	f.ctrl.HandleMessage(protocol.ServerMessage{Type: protocol.TypeTyping, Sender: "llama"})
	time.Sleep(timeout * 3 / 5)
	f.ctrl.HandleMessage(protocol.ServerMessage{Type: protocol.TypeTyping, Sender: "mixtral"})
	time.Sleep(timeout * 3 / 5)
	// the second event restarted the timeout
	assert.Equal(t, "mixtral", f.doc.Snapshot().Typing)

	assert.Eventually(t, func() bool { return f.doc.Snapshot().Typing == "" }, time.Second, 5*time.Millisecond)
}

func TestCloseStopsAnalytics(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.Submit("q"))
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.Close()

	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: "**Final Verdict:** A"})
	f.ctrl.Wait()
	assert.Empty(t, f.api.eventNames())
	assert.Equal(t, StatusReady, f.doc.Snapshot().Status)
}

func finishTurn(f *fixture, prompt string) {
	f.ctrl.Submit(prompt)
	f.ctrl.HandleMessage(initiating(""))
	f.ctrl.HandleMessage(protocol.ServerMessage{Role: protocol.RoleSynthesizer, Sender: "gpt", Text: "**Final Verdict:** A"})
}

func TestFeedbackReminderAfterVerdict(t *testing.T) {
	f := newFixtureWith(t, func(o *Options) { o.FeedbackReminder = 20 * time.Millisecond })
	finishTurn(f, "q")
	assert.Equal(t, StatusReady, f.doc.Snapshot().Status)

	assert.Eventually(t, func() bool {
		return f.doc.Snapshot().Status == StatusFeedbackNudge
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.doc.Current().FeedbackShown)
}

func TestFeedbackReminderCancelled(t *testing.T) {
	const delay = 50 * time.Millisecond

	t.Run("feedback sent", func(t *testing.T) {
		f := newFixtureWith(t, func(o *Options) { o.FeedbackReminder = delay })
		finishTurn(f, "q")
		_, err := f.ctrl.SubmitFeedback(context.Background(), "up", "")
		require.NoError(t, err)
		time.Sleep(4 * delay)
		assert.Equal(t, StatusReady, f.doc.Snapshot().Status)
	})

	t.Run("new prompt", func(t *testing.T) {
		f := newFixtureWith(t, func(o *Options) { o.FeedbackReminder = delay })
		finishTurn(f, "q")
		require.True(t, f.ctrl.Submit("next"))
		time.Sleep(4 * delay)
		assert.Equal(t, StatusDrafting, f.doc.Snapshot().Status)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixtureWith(t, func(o *Options) { o.FeedbackReminder = -1 })
		finishTurn(f, "q")
		time.Sleep(4 * delay)
		assert.Equal(t, StatusReady, f.doc.Snapshot().Status)
	})
}
