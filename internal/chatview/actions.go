package chatview

import (
	"context"
	"fmt"
	"strings"

	"Shurahub/internal/backend"
	"Shurahub/internal/debate"
	"Shurahub/internal/protocol"
	"Shurahub/internal/render"
	"Shurahub/internal/session"
)

// LoadDebate replaces the view with a stored debate. The record is taken by
// value and never modified. While a prompt awaits its verdict the view is
// left alone and ErrBusy is returned.
func (c *Controller) LoadDebate(d backend.DebateRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Awaiting {
		return ErrBusy
	}
	c.startTurnLocked()
	c.clearTypingLocked()
	c.surface.Clear()
	c.buffer.Reset()
	c.models = make(map[string]string)

	c.session.CurrentDebateID = d.DebateID
	c.session.LastPrompt = d.UserPrompt
	c.surface.AppendUserMessage(d.UserPrompt)
	c.surface.BeginDebate(d.UserPrompt)
	c.hasDebate = true

	if d.OpenerResponse != "" {
		c.loadArgumentLocked(protocol.RoleOpener, d.OpenerModel, d.OpenerResponse)
	}
	if d.CritiquerResponse != "" {
		c.loadArgumentLocked(protocol.RoleCritiquer, d.CritiquerModel, d.CritiquerResponse)
	}
	if d.SynthesizerResponse != "" {
		html := render.MustRender(c.renderer, d.SynthesizerResponse, c.logger)
		c.surface.RenderRole(protocol.RoleSynthesizer, d.SynthesizerModel, d.SynthesizerResponse, html)
		c.surface.SetSynthesis(d.SynthesizerModel, d.SynthesizerResponse, html, debate.ParseSynthesis(d.SynthesizerResponse))
		c.rememberModelLocked(protocol.RoleSynthesizer, d.SynthesizerModel)
	}
	c.lastVerdict = d.SynthesizerResponse

	c.surface.SetStreaming(false)
	c.feedbackShown = true
	c.feedbackSent = false
	c.surface.ShowFeedback()
	c.session.State = session.StateFinalized
	c.logger.Info("loaded debate from history", "debate_id", d.DebateID)
	return nil
}

func (c *Controller) loadArgumentLocked(role, model, text string) {
	html := render.MustRender(c.renderer, text, c.logger)
	c.surface.RenderRole(role, model, text, html)
	c.surface.SetArgument(role, model, debate.ParseArgument(text))
	c.rememberModelLocked(role, model)
}

// CurrentDebateID returns the id of the debate loaded from history, if any
func (c *Controller) CurrentDebateID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.CurrentDebateID
}

// ClearChat empties the message list and forgets the active debate. It
// returns ErrBusy while a prompt awaits its verdict.
func (c *Controller) ClearChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Awaiting {
		return ErrBusy
	}
	c.clearLocked()
	return nil
}

func (c *Controller) clearLocked() {
	c.startTurnLocked()
	c.clearTypingLocked()
	c.surface.Clear()
	c.buffer.Reset()
	c.hasDebate = false
	c.lastVerdict = ""
	c.session.CurrentDebateID = ""
	c.session.State = session.StateIdle
	c.surface.SetStatus(StatusNewDebate, false)
}

// DebateDeleted clears the chat when the deleted debate is the one shown
func (c *Controller) DebateDeleted(debateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if debateID != "" && c.session.CurrentDebateID == debateID {
		c.clearLocked()
	}
}

// FeedbackMessage formats the feedback body for a council response
func FeedbackMessage(rating, prompt, verdict, note string) string {
	msg := fmt.Sprintf("rating=%s; prompt=\"%s\"; verdict=\"%s\"", rating, clip(prompt, 140), clip(verdict, 160))
	if note = strings.TrimSpace(note); note != "" {
		msg += "; note=" + note
	}
	return msg
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SubmitFeedback sends a rating and optional note about the shown verdict.
// The returned string is the status to show next to the feedback controls.
func (c *Controller) SubmitFeedback(ctx context.Context, rating, note string) (string, error) {
	rating = strings.TrimSpace(rating)
	if rating == "" {
		return "", ErrNoRating
	}
	if c.api == nil {
		return StatusFeedbackError, ErrNoBackend
	}

	c.mu.Lock()
	prompt, verdict := c.session.LastPrompt, c.lastVerdict
	c.mu.Unlock()

	req := backend.FeedbackRequest{
		Message:  FeedbackMessage(rating, prompt, verdict, note),
		Category: FeedbackCategory,
	}
	if err := c.api.SubmitFeedback(ctx, req); err != nil {
		c.logger.Error("failed to submit feedback", "error", err)
		return StatusFeedbackError, err
	}

	c.mu.Lock()
	c.feedbackSent = true
	c.stopReminderLocked()
	c.mu.Unlock()
	return StatusFeedbackSent, nil
}

// Rate scores the opener or the final verdict of the loaded debate
func (c *Controller) Rate(ctx context.Context, rater string, rating int) error {
	if c.api == nil {
		return ErrNoBackend
	}
	debateID := c.CurrentDebateID()
	if debateID == "" {
		return ErrNoDebate
	}

	err := c.api.SubmitRating(ctx, backend.RatingRequest{DebateID: debateID, Rater: rater, Rating: rating})
	if err != nil {
		c.logger.Error("failed to submit rating", "debate_id", debateID, "rater", rater, "error", err)
		return err
	}
	c.logger.Info("rating submitted", "debate_id", debateID, "rater", rater, "rating", rating)
	return nil
}

// SubmitLead registers an email for early access
func (c *Controller) SubmitLead(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return StatusInvalidEmail, ErrEmptyEmail
	}
	if c.api == nil {
		return StatusLeadError, ErrNoBackend
	}
	if err := c.api.SubmitLead(ctx, email); err != nil {
		c.logger.Error("failed to submit lead", "error", err)
		return StatusLeadError, err
	}
	return StatusLeadSent, nil
}
