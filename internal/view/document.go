package view

import (
	"sync"

	"Shurahub/internal/debate"
	"Shurahub/internal/protocol"
)

// Surface is everything the chat controller draws on
type Surface interface {
	Clear()
	AppendUserMessage(text string)
	BeginDebate(title string)
	RenderRole(role, sender, markdown, html string)
	SetArgument(role, sender string, arg debate.Argument)
	SetSynthesis(sender, markdown, html string, syn debate.Synthesis)
	ShowTyping(sender string)
	ClearTyping()
	SetStatus(message string, active bool)
	SetInputEnabled(enabled bool)
	SetStreaming(streaming bool)
	ShowFeedback()
}

// EntryKind tags entries of the message list
type EntryKind int

const (
	EntryUser EntryKind = iota
	EntryDebate
)

// RoleNode is one speaker's panel inside a debate block
type RoleNode struct {
	Role      string
	Label     string
	Sender    string
	Markdown  string
	HTML      string
	Streaming bool
	Argument  *debate.Argument
}

// DebateBlock holds one debate turn
type DebateBlock struct {
	Title           string
	Roles           []*RoleNode
	Synthesis       *debate.Synthesis
	VerdictMarkdown string
	VerdictHTML     string
	VerdictSender   string
	FeedbackVisible bool
	FeedbackShown   int // times the feedback controls were revealed
}

// Role returns the node for role, or nil
func (b *DebateBlock) Role(role string) *RoleNode {
	for _, n := range b.Roles {
		if n.Role == role {
			return n
		}
	}
	return nil
}

// Entry is one item in the message list
type Entry struct {
	Kind   EntryKind
	Text   string       // EntryUser
	Debate *DebateBlock // EntryDebate
}

// ChangeKind tells listeners what part of the document changed
type ChangeKind int

const (
	ChangeCleared ChangeKind = iota
	ChangeUser
	ChangeDebate
	ChangeRole
	ChangeArgument
	ChangeSynthesis
	ChangeTyping
	ChangeStatus
	ChangeInput
	ChangeStreaming
	ChangeFeedback
)

// Change describes a single document mutation
type Change struct {
	Kind   ChangeKind
	Role   string
	Sender string
	Text   string
	Active bool
}

// Document is an in-memory render surface: a scrollable message list plus
// the status banner, typing indicator and input state around it
type Document struct {
	mu           sync.Mutex
	entries      []Entry
	current      *DebateBlock
	typing       string
	status       string
	statusActive bool
	inputEnabled bool
	streaming    bool
	listeners    []func(Change)
}

// NewDocument creates an empty document with input enabled
func NewDocument() *Document {
	return &Document{inputEnabled: true}
}

// Subscribe registers fn to be called after every change. Listeners run on
// the goroutine that made the change, outside the document lock, and must
// not block.
func (d *Document) Subscribe(fn func(Change)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Document) emit(c Change) {
	d.mu.Lock()
	listeners := append(([]func(Change))(nil), d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}

// Clear empties the message list
func (d *Document) Clear() {
	d.mu.Lock()
	d.entries = nil
	d.current = nil
	d.typing = ""
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeCleared})
}

// AppendUserMessage adds the user's prompt as plain text
func (d *Document) AppendUserMessage(text string) {
	d.mu.Lock()
	d.entries = append(d.entries, Entry{Kind: EntryUser, Text: text})
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeUser, Text: text})
}

// BeginDebate starts a new debate block; role renders go to it from now on
func (d *Document) BeginDebate(title string) {
	d.mu.Lock()
	block := &DebateBlock{Title: title}
	d.entries = append(d.entries, Entry{Kind: EntryDebate, Debate: block})
	d.current = block
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeDebate, Text: title})
}

func (d *Document) nodeLocked(role, sender string) *RoleNode {
	if d.current == nil {
		return nil
	}
	node := d.current.Role(role)
	if node == nil {
		node = &RoleNode{Role: role, Label: protocol.RoleLabel(role)}
		d.current.Roles = append(d.current.Roles, node)
	}
	if sender != "" {
		node.Sender = sender
	}
	return node
}

// RenderRole writes rendered content into the role's node. Without an
// active debate block the call is ignored.
func (d *Document) RenderRole(role, sender, markdown, html string) {
	d.mu.Lock()
	node := d.nodeLocked(role, sender)
	if node == nil {
		d.mu.Unlock()
		return
	}
	node.Markdown = markdown
	node.HTML = html
	node.Streaming = d.streaming
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeRole, Role: role, Sender: sender, Text: markdown})
}

// SetArgument attaches the parsed argument card to the role's node
func (d *Document) SetArgument(role, sender string, arg debate.Argument) {
	d.mu.Lock()
	node := d.nodeLocked(role, sender)
	if node == nil {
		d.mu.Unlock()
		return
	}
	a := arg
	node.Argument = &a
	if node.Markdown == "" {
		node.Markdown = arg.RawText
	}
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeArgument, Role: role, Sender: sender, Text: arg.RawText})
}

// SetSynthesis renders the verdict into the debate block
func (d *Document) SetSynthesis(sender, markdown, html string, syn debate.Synthesis) {
	d.mu.Lock()
	if d.current == nil {
		d.mu.Unlock()
		return
	}
	s := syn
	d.current.Synthesis = &s
	d.current.VerdictMarkdown = markdown
	d.current.VerdictHTML = html
	d.current.VerdictSender = sender
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeSynthesis, Role: protocol.RoleSynthesizer, Sender: sender, Text: markdown})
}

// ShowTyping shows a typing indicator for sender, replacing any other
func (d *Document) ShowTyping(sender string) {
	d.mu.Lock()
	d.typing = sender
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeTyping, Sender: sender, Active: true})
}

// ClearTyping removes the typing indicator
func (d *Document) ClearTyping() {
	d.mu.Lock()
	if d.typing == "" {
		d.mu.Unlock()
		return
	}
	sender := d.typing
	d.typing = ""
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeTyping, Sender: sender, Active: false})
}

// SetStatus updates the status banner
func (d *Document) SetStatus(message string, active bool) {
	d.mu.Lock()
	d.status = message
	d.statusActive = active
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeStatus, Text: message, Active: active})
}

// SetInputEnabled locks or unlocks the prompt input
func (d *Document) SetInputEnabled(enabled bool) {
	d.mu.Lock()
	d.inputEnabled = enabled
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeInput, Active: enabled})
}

// SetStreaming toggles streaming indicators. Turning streaming off clears
// the indicator on every role node of the current block.
func (d *Document) SetStreaming(streaming bool) {
	d.mu.Lock()
	d.streaming = streaming
	if !streaming && d.current != nil {
		for _, n := range d.current.Roles {
			n.Streaming = false
		}
	}
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeStreaming, Active: streaming})
}

// ShowFeedback reveals the rating/feedback controls of the current block
func (d *Document) ShowFeedback() {
	d.mu.Lock()
	if d.current == nil {
		d.mu.Unlock()
		return
	}
	d.current.FeedbackVisible = true
	d.current.FeedbackShown++
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeFeedback, Active: true})
}
