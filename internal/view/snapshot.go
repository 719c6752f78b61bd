package view

import "Shurahub/internal/debate"

// State is a deep copy of the document for rendering outside its lock
type State struct {
	Entries      []Entry
	Typing       string
	Status       string
	StatusActive bool
	InputEnabled bool
	Streaming    bool
}

// Snapshot returns a copy of the document state
func (d *Document) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := State{
		Entries:      make([]Entry, len(d.entries)),
		Typing:       d.typing,
		Status:       d.status,
		StatusActive: d.statusActive,
		InputEnabled: d.inputEnabled,
		Streaming:    d.streaming,
	}
	for i, e := range d.entries {
		st.Entries[i] = Entry{Kind: e.Kind, Text: e.Text}
		if e.Debate != nil {
			st.Entries[i].Debate = copyBlock(e.Debate)
		}
	}
	return st
}

// Current returns a copy of the active debate block, or nil
func (d *Document) Current() *DebateBlock {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	return copyBlock(d.current)
}

func copyBlock(b *DebateBlock) *DebateBlock {
	out := *b
	out.Roles = make([]*RoleNode, len(b.Roles))
	for i, n := range b.Roles {
		node := *n
		if n.Argument != nil {
			a := *n.Argument
			node.Argument = &a
		}
		out.Roles[i] = &node
	}
	if b.Synthesis != nil {
		s := *b.Synthesis
		s.Summary = append([]string(nil), b.Synthesis.Summary...)
		s.Citations = append([]debate.Citation(nil), b.Synthesis.Citations...)
		out.Synthesis = &s
	}
	return &out
}
