package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Visitor is the guest identity remembered across runs
type Visitor struct {
	ID        string    `json:"visitor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LoadVisitor returns the stored guest identity, generating and persisting a
// new one when none exists or the stored JSON cannot be used. created reports
// whether a new identity was generated.
func LoadVisitor(prefs Preferences) (visitor Visitor, created bool) {
	if raw, ok := prefs.Get(KeyVisitor); ok {
		if err := json.Unmarshal([]byte(raw), &visitor); err == nil && visitor.ID != "" {
			return visitor, false
		}
	}

	visitor = Visitor{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	// Marshalling a struct of strings and times cannot fail
	raw, _ := json.Marshal(visitor)
	prefs.Set(KeyVisitor, string(raw))
	return visitor, true
}
