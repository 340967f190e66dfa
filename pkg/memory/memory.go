// Package memory keeps the conversation history replayed into prompts.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/docsetai/askdocs/internal/models"
)

// Log is an append-only record of conversation turns. Turns are never
// mutated or reordered; Reset is the only way to drop them. A MaxTurns
// cap bounds replay length without changing the interface: when set,
// the oldest turns fall off first.
type Log struct {
	mu       sync.Mutex
	maxTurns int
	turns    []models.ConversationTurn
}

func NewLog() *Log {
	return &Log{}
}

// NewLogWithLimit keeps only the most recent n turns. n <= 0 means
// unbounded.
func NewLogWithLimit(n int) *Log {
	return &Log{maxTurns: n}
}

// Append records one turn. It never fails.
func (l *Log) Append(turn models.ConversationTurn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = append(l.turns, turn)
	if l.maxTurns > 0 && len(l.turns) > l.maxTurns {
		l.turns = l.turns[len(l.turns)-l.maxTurns:]
	}
}

// Turns returns a copy of the history in insertion order.
func (l *Log) Turns() []models.ConversationTurn {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.ConversationTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Render formats the history for prompt assembly, oldest first.
func (l *Log) Render() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.turns) == 0 {
		return ""
	}

	var b strings.Builder
	for _, turn := range l.turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.Question, turn.Answer)
	}
	return b.String()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Reset clears the history.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = nil
}
