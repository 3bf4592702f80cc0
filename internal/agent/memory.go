package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/chuanqi87/agent/internal/gateway"
)

// DefaultMemoryWindow is how many exchange pairs a session keeps.
const DefaultMemoryWindow = 10

// DefaultSession is the history key used when a request carries no
// user identifier.
const DefaultSession = "default"

// Memory is a bounded, append-only conversation history keyed by
// session. Nothing survives a process restart.
type Memory struct {
	mu       sync.Mutex
	window   int
	sessions map[string][]gateway.Message
}

// MemoryStats is the snapshot served by the admin surface.
type MemoryStats struct {
	Sessions        int `json:"sessions"`
	Messages        int `json:"messages"`
	Window          int `json:"window"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// NewMemory builds a memory keeping the last window exchange pairs per
// session; zero selects the default.
func NewMemory(window int) *Memory {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &Memory{
		window:   window,
		sessions: make(map[string][]gateway.Message),
	}
}

// History returns a copy of a session's remembered turns, oldest
// first.
func (m *Memory) History(session string) []gateway.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.sessions[normalizeSession(session)]
	out := make([]gateway.Message, len(history))
	copy(out, history)
	return out
}

// AppendTurn records one user/assistant exchange, evicting the oldest
// pair once the window is full.
func (m *Memory) AppendTurn(session, userText, assistantText string) {
	key := normalizeSession(session)

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[key],
		gateway.TextMessage(gateway.RoleUser, userText),
		gateway.TextMessage(gateway.RoleAssistant, assistantText),
	)

	if max := m.window * 2; len(history) > max {
		history = history[len(history)-max:]
	}
	m.sessions[key] = history
}

// Clear forgets one session's history.
func (m *Memory) Clear(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, normalizeSession(session))
}

// ClearAll forgets every session.
func (m *Memory) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string][]gateway.Message)
}

// Stats reports session and message counts plus a cl100k token count
// of everything remembered.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := MemoryStats{
		Sessions: len(m.sessions),
		Window:   m.window,
	}

	var texts []string
	for _, history := range m.sessions {
		stats.Messages += len(history)
		for _, msg := range history {
			texts = append(texts, msg.Text())
		}
	}

	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		for _, text := range texts {
			stats.EstimatedTokens += len(enc.Encode(text, nil, nil))
		}
	}

	return stats
}

func normalizeSession(session string) string {
	if session == "" {
		return DefaultSession
	}
	return session
}
