package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"Shurahub/internal/backend"
	"Shurahub/internal/storage"
)

// Status strings shown in the history panel
const (
	StatusLoggedOut = "Log in to see your debates"
	StatusEmpty     = "No debates yet"
	StatusFailed    = "Failed to load debates"
	StatusNoMatch   = "No debates match your search criteria."
)

// Sort orders for the review list
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortRating = "rating"
)

// MaxListed is the number of debates shown in the sidebar list
const MaxListed = 10

// API is the part of the backend client the history needs
type API interface {
	FetchDebates(ctx context.Context) ([]backend.DebateRecord, error)
	DeleteDebate(ctx context.Context, debateID string) error
}

// History keeps the fetched debate list in memory
type History struct {
	api      API
	prefs    storage.Preferences
	logger   *slog.Logger
	loggedIn bool

	mu      sync.Mutex
	debates []backend.DebateRecord
	loaded  bool
}

// New creates a history bound to the backend
func New(api API, prefs storage.Preferences, loggedIn bool, logger *slog.Logger) (*History, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &History{api: api, prefs: prefs, loggedIn: loggedIn, logger: logger}, nil
}

// Refresh fetches the debate list. The returned status is empty when there
// is something to show; otherwise it is the message for the history panel.
func (h *History) Refresh(ctx context.Context) (string, error) {
	if !h.loggedIn {
		return StatusLoggedOut, nil
	}

	debates, err := h.api.FetchDebates(ctx)
	if err != nil {
		h.logger.Error("failed to fetch debates", "error", err)
		if errors.Is(err, backend.ErrUnauthorized) {
			return StatusLoggedOut, err
		}
		return StatusFailed, err
	}

	h.mu.Lock()
	h.debates = debates
	h.loaded = true
	h.mu.Unlock()

	if len(debates) == 0 {
		return StatusEmpty, nil
	}
	return "", nil
}

// Loaded reports whether a fetch has succeeded
func (h *History) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// List returns the debates shown in the sidebar, newest first as delivered
func (h *History) List() []backend.DebateRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.debates)
	if n > MaxListed {
		n = MaxListed
	}
	return append([]backend.DebateRecord(nil), h.debates[:n]...)
}

// Len returns the number of debates held
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.debates)
}

// Find returns a copy of the debate with the given id
func (h *History) Find(debateID string) (backend.DebateRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range h.debates {
		if d.DebateID == debateID {
			return d, true
		}
	}
	return backend.DebateRecord{}, false
}

// At returns the debate at a 1-based position of List
func (h *History) At(position int) (backend.DebateRecord, bool) {
	list := h.List()
	if position < 1 || position > len(list) {
		return backend.DebateRecord{}, false
	}
	return list[position-1], true
}

// Delete removes a debate on the backend and then from memory
func (h *History) Delete(ctx context.Context, debateID string) error {
	if err := h.api.DeleteDebate(ctx, debateID); err != nil {
		h.logger.Error("failed to delete debate", "debate_id", debateID, "error", err)
		return err
	}

	h.mu.Lock()
	kept := h.debates[:0:0]
	for _, d := range h.debates {
		if d.DebateID != debateID {
			kept = append(kept, d)
		}
	}
	h.debates = kept
	h.mu.Unlock()
	return nil
}

// SavedQuery returns the persisted search term and sort order
func (h *History) SavedQuery() (term, sortBy string) {
	term, _ = h.prefs.Get(storage.KeySearchTerm)
	sortBy, ok := h.prefs.Get(storage.KeySortBy)
	if !ok || !validSort(sortBy) {
		sortBy = SortNewest
	}
	return term, sortBy
}

func validSort(s string) bool {
	return s == SortNewest || s == SortOldest || s == SortRating
}

// Search filters and sorts all debates, persisting the query
func (h *History) Search(term, sortBy string) ([]backend.DebateRecord, error) {
	if sortBy == "" {
		sortBy = SortNewest
	}
	if !validSort(sortBy) {
		return nil, fmt.Errorf("unknown sort order: %s", sortBy)
	}
	h.prefs.Set(storage.KeySearchTerm, term)
	h.prefs.Set(storage.KeySortBy, sortBy)

	h.mu.Lock()
	all := append([]backend.DebateRecord(nil), h.debates...)
	h.mu.Unlock()

	return Filter(all, term, sortBy), nil
}

// Filter keeps debates whose prompt or responses contain term
// (case-insensitive) and orders them by sortBy. The input is not modified.
func Filter(debates []backend.DebateRecord, term, sortBy string) []backend.DebateRecord {
	needle := strings.ToLower(term)
	out := make([]backend.DebateRecord, 0, len(debates))
	for _, d := range debates {
		if needle == "" || matches(d, needle) {
			out = append(out, d)
		}
	}

	switch sortBy {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating() > out[j].Rating() })
	}
	return out
}

func matches(d backend.DebateRecord, needle string) bool {
	for _, field := range []string{d.UserPrompt, d.OpenerResponse, d.CritiquerResponse, d.SynthesizerResponse} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

var agoUnits = []struct {
	name    string
	seconds int64
}{
	{"year", 31536000},
	{"month", 2592000},
	{"week", 604800},
	{"day", 86400},
	{"hour", 3600},
	{"minute", 60},
}

// TimeAgo formats t relative to now, e.g. "3 hours ago" or "Just now"
func TimeAgo(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	for _, u := range agoUnits {
		if n := seconds / u.seconds; n >= 1 {
			if n == 1 {
				return fmt.Sprintf("1 %s ago", u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "Just now"
}
