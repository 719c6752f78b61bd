package protocol

import "strings"

// Wire types for the debate WebSocket

// Message types carried in the "type" discriminator. Complete messages
// (opener/critiquer bodies, the verdict and Shurahub notices) arrive without
// a type; they are treated as TypeFinal.
const (
	TypeTyping = "typing"
	TypeStream = "stream"
	TypeFinal  = "final"
)

// Debate roles assigned by the backend
const (
	RoleOpener      = "opener"
	RoleCritiquer   = "critiquer"
	RoleSynthesizer = "synthesizer"
)

const (
	// SystemSender is the sender name used for orchestration notices
	SystemSender = "Shurahub"

	// InitiatingText opens every debate turn
	InitiatingText = "Initiating collaborative debate..."

	// VerdictPrefix marks the synthesizer's final text
	VerdictPrefix = "**Final Verdict:**"

	ModeGuest         = "guest"
	ModeAuthenticated = "authenticated"
)

// ServerMessage represents an inbound frame from the debate server
type ServerMessage struct {
	Type   string `json:"type,omitempty"`
	Sender string `json:"sender"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text"`
	Mode   string `json:"mode,omitempty"` // Only set on the initiating notice
}

// ClientMessage represents an outbound prompt
type ClientMessage struct {
	Text string `json:"text"`
}

// Kind returns the normalized message type
func (m ServerMessage) Kind() string {
	switch m.Type {
	case TypeTyping, TypeStream:
		return m.Type
	default:
		return TypeFinal
	}
}

// StreamRole returns the role a stream fragment belongs to, falling back to
// the sender and then to a generic bucket
func (m ServerMessage) StreamRole() string {
	if m.Role != "" {
		return m.Role
	}
	if m.Sender != "" {
		return m.Sender
	}
	return "stream"
}

// IsInitiating reports whether the message starts a new debate turn
func (m ServerMessage) IsInitiating() bool {
	return m.Sender == SystemSender && m.Text == InitiatingText
}

// IsVerdict reports whether the message finalizes a debate turn
func (m ServerMessage) IsVerdict() bool {
	if strings.HasPrefix(m.Text, VerdictPrefix) {
		return true
	}
	return m.Role == RoleSynthesizer && m.Text != ""
}

// RoleLabel returns the display label for a role
func RoleLabel(role string) string {
	switch role {
	case RoleOpener:
		return "Opener"
	case RoleCritiquer:
		return "Critiquer"
	case RoleSynthesizer:
		return "Judge"
	default:
		return role
	}
}
