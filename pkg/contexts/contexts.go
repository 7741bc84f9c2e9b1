// Package contexts implements the named conversation contexts a playbook
// session accumulates: ordered role-tagged message lists with exactly one
// list selected at a time.
package contexts

import "sync"

// Message roles. "agent" marks narrative content injected from the
// document itself rather than a user prompt or model reply.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAgent     = "agent"
)

// Message is one entry in a conversation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultName is the context selected before any context skill runs.
const DefaultName = "default"

// Store holds the named contexts for one session. Exactly one context is
// selected at any time; selecting a new name reuses an existing list or
// creates an empty one (last-writer-wins, no merging). Only the executor
// mutates message lists — skills return messages, they never write here.
type Store struct {
	mu       sync.Mutex
	contexts map[string][]Message
	selected string
}

// NewStore creates a store with an empty default context selected.
func NewStore() *Store {
	return &Store{
		contexts: map[string][]Message{DefaultName: {}},
		selected: DefaultName,
	}
}

// Select makes name the current context, creating it empty if needed.
func (s *Store) Select(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[name]; !ok {
		s.contexts[name] = []Message{}
	}
	s.selected = name
}

// SelectedName returns the name of the current context.
func (s *Store) SelectedName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Append adds messages to the end of the selected context, in order.
func (s *Store) Append(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[s.selected] = append(s.contexts[s.selected], msgs...)
}

// Messages returns a copy of the selected context's message list.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.contexts[s.selected]))
	copy(out, s.contexts[s.selected])
	return out
}

// MessagesIn returns a copy of the named context's messages, and whether
// the context exists.
func (s *Store) MessagesIn(name string) ([]Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.contexts[name]
	if !ok {
		return nil, false
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, true
}

// Names returns all context names. Order is not significant.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.contexts))
	for name := range s.contexts {
		names = append(names, name)
	}
	return names
}

// Len returns the number of messages in the selected context.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts[s.selected])
}
