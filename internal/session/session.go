package session

import (
	"fmt"
	"time"
)

// TurnState is the lifecycle of one debate turn
type TurnState int

const (
	StateIdle TurnState = iota
	StateWarmingUp
	StateStreaming
	StateFinalized
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarmingUp:
		return "warming_up"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("TurnState(%d)", int(s))
	}
}

// ConnStatus mirrors the websocket state shown in the status banner
type ConnStatus int

const (
	ConnConnecting ConnStatus = iota
	ConnOpen
	ConnReconnecting
)

func (s ConnStatus) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("ConnStatus(%d)", int(s))
	}
}

// Session represents the state of one client run
type Session struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	VisitorID       string    `json:"visitor_id"`
	Conn            ConnStatus
	State           TurnState
	LastPrompt      string
	Awaiting        bool   // a prompt was sent and the verdict has not arrived
	CurrentDebateID string // debate loaded from history, if any
	Guest           bool
	Turns           int // finalized turns this run
}

// New creates a session for the given visitor
func New(visitorID string, guest bool) *Session {
	return &Session{
		ID:        fmt.Sprintf("session_%d", time.Now().Unix()),
		StartTime: time.Now(),
		VisitorID: visitorID,
		Guest:     guest,
	}
}
