package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"Shurahub/internal/telemetry"
)

// SessionCookie is the cookie carrying the authenticated session
const SessionCookie = "user-session"

// ErrUnauthorized is returned when the backend answers 401
var ErrUnauthorized = errors.New("not logged in")

// Client talks to the Shurahub REST endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	cookie     string
	logger     *slog.Logger
	tracer     trace.Tracer

	mu        sync.Mutex
	visitorID string
}

// NewClient creates a REST client for the backend at baseURL
func NewClient(baseURL, sessionCookie string, logger *slog.Logger, tracer trace.Tracer) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cookie:     sessionCookie,
		logger:     logger,
		tracer:     telemetry.Tracer(tracer),
	}, nil
}

// SetVisitorID attaches the guest identity to websocket URLs
func (c *Client) SetVisitorID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visitorID = id
}

// BaseURL returns the backend origin
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Header returns the headers websocket dials need for authentication
func (c *Client) Header() http.Header {
	h := http.Header{}
	if c.cookie != "" {
		h.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: c.cookie}).String())
	}
	return h
}

// WebSocketURL derives the debate websocket endpoint: wss for https
// origins, ws otherwise, with the visitor id as a query parameter
func (c *Client) WebSocketURL() string {
	u, _ := url.Parse(c.baseURL)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	c.mu.Lock()
	visitor := c.visitorID
	c.mu.Unlock()
	if visitor != "" {
		q := u.Query()
		q.Set("visitor_id", visitor)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// FetchDebates returns the debate history of the current user
func (c *Client) FetchDebates(ctx context.Context) ([]DebateRecord, error) {
	var debates []DebateRecord
	if err := c.do(ctx, http.MethodGet, "/api/debates", nil, &debates); err != nil {
		return nil, fmt.Errorf("fetch debates failed: %w", err)
	}
	c.logger.Info("fetched debates", "count", len(debates))
	return debates, nil
}

// DeleteDebate removes a debate from the history
func (c *Client) DeleteDebate(ctx context.Context, debateID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/debates/"+url.PathEscape(debateID), nil, nil); err != nil {
		return fmt.Errorf("delete debate failed: %w", err)
	}
	c.logger.Info("deleted debate", "debate_id", debateID)
	return nil
}

// SubmitFeedback posts free-text feedback
func (c *Client) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, "/engagement/feedback", req, &resp); err != nil {
		return fmt.Errorf("submit feedback failed: %w", err)
	}
	return nil
}

// SubmitRating posts a 1-5 star rating
func (c *Client) SubmitRating(ctx context.Context, req RatingRequest) error {
	if req.Rating < 1 || req.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", req.Rating)
	}
	if req.Rater != RaterOpener && req.Rater != RaterFinal {
		return fmt.Errorf("unknown rater: %s", req.Rater)
	}
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, "/rate", req, &resp); err != nil {
		return fmt.Errorf("submit rating failed: %w", err)
	}
	if resp.Status == "error" {
		return fmt.Errorf("submit rating failed: %s", resp.Message)
	}
	return nil
}

// SubmitLead registers an email for early access
func (c *Client) SubmitLead(ctx context.Context, email string) error {
	if err := c.do(ctx, http.MethodPost, "/api/leads", LeadRequest{Email: email}, nil); err != nil {
		return fmt.Errorf("submit lead failed: %w", err)
	}
	return nil
}

// TrackEvent records an analytics event
func (c *Client) TrackEvent(ctx context.Context, name string, metadata map[string]any) error {
	if err := c.do(ctx, http.MethodPost, "/engagement/analytics", AnalyticsEvent{EventName: name, Metadata: metadata}, nil); err != nil {
		return fmt.Errorf("track event failed: %w", err)
	}
	return nil
}

// RegisterVisitor announces a newly generated guest identity
func (c *Client) RegisterVisitor(ctx context.Context, req VisitorRequest) error {
	if err := c.do(ctx, http.MethodPost, "/api/visitors", req, nil); err != nil {
		return fmt.Errorf("register visitor failed: %w", err)
	}
	return nil
}

// ShareLink returns the share text and URL for a debate
func (c *Client) ShareLink(d DebateRecord) (text, link string) {
	return fmt.Sprintf("Check out this debate: \"%s\"", d.UserPrompt), c.baseURL + "/debate/" + url.PathEscape(d.DebateID)
}

// do sends a JSON request and decodes a JSON response into result
func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := c.tracer.Start(ctx, "backend "+method+" "+path,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		))
	defer span.End()

	start := time.Now()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.cookie != "" {
		httpReq.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.cookie})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
	c.logger.Debug("backend call", "method", method, "path", path,
		"status", httpResp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if httpResp.StatusCode == http.StatusUnauthorized {
		span.SetStatus(codes.Error, "unauthorized")
		return ErrUnauthorized
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		span.SetStatus(codes.Error, httpResp.Status)
		return fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(result); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
