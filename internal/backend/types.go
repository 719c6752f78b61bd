package backend

import (
	"encoding/json"
	"time"
)

// DebateRecord represents a stored debate as returned by GET /api/debates
type DebateRecord struct {
	DebateID            string    `json:"debate_id"`
	UserID              string    `json:"user_id,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	UserPrompt          string    `json:"user_prompt"`
	OpenerModel         string    `json:"opener_model"`
	OpenerResponse      string    `json:"opener_response"`
	CritiquerModel      string    `json:"critiquer_model"`
	CritiquerResponse   string    `json:"critiquer_response"`
	SynthesizerModel    string    `json:"synthesizer_model"`
	SynthesizerResponse string    `json:"synthesizer_response"`
	OpenerRating        int       `json:"opener_rating,omitempty"`
	FinalRating         int       `json:"final_rating,omitempty"`
}

// UnmarshalJSON accepts the backend's naive ISO timestamps (no zone), which
// are UTC
func (d *DebateRecord) UnmarshalJSON(data []byte) error {
	type alias DebateRecord
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Timestamp = parseTimestamp(aux.Timestamp)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Rating sums the opener and final ratings for sorting
func (d DebateRecord) Rating() int {
	return d.OpenerRating + d.FinalRating
}

// FeedbackRequest represents the body of POST /engagement/feedback
type FeedbackRequest struct {
	Email    *string `json:"email"`
	Message  string  `json:"message"`
	Category string  `json:"category,omitempty"`
}

// RatingRequest represents the body of POST /rate
type RatingRequest struct {
	DebateID string `json:"debate_id"`
	Rater    string `json:"rater"` // "opener" or "final"
	Rating   int    `json:"rating"`
}

// Raters accepted by the rating endpoint
const (
	RaterOpener = "opener"
	RaterFinal  = "final"
)

// LeadRequest represents the body of POST /api/leads
type LeadRequest struct {
	Email string `json:"email"`
}

// AnalyticsEvent represents the body of POST /engagement/analytics
type AnalyticsEvent struct {
	EventName string         `json:"event_name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// VisitorRequest represents the body of POST /api/visitors
type VisitorRequest struct {
	VisitorID string    `json:"visitor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusResponse is the generic {"status": ...} acknowledgement
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
