package eventlog

import (
	"sync"

	"leadflow/internal/models"
)

const DefaultBufferSize = 1000

// Buffer is a bounded, newest-first list of events. When full, the oldest
// entry is overwritten.
type Buffer struct {
	mu     sync.RWMutex
	events []models.EventLog
	head   int // index of the newest entry
	size   int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{events: make([]models.EventLog, capacity)}
}

func (b *Buffer) Cap() int {
	return len(b.events)
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Push adds e as the newest entry.
func (b *Buffer) Push(e models.EventLog) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = (b.head - 1 + len(b.events)) % len(b.events)
	b.events[b.head] = e.Clone()
	if b.size < len(b.events) {
		b.size++
	}
}

// Replace swaps the entry with e's id in place. It reports whether the id
// was still buffered.
func (b *Buffer) Replace(e models.EventLog) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < b.size; i++ {
		idx := (b.head + i) % len(b.events)
		if b.events[idx].ID == e.ID {
			b.events[idx] = e.Clone()
			return true
		}
	}
	return false
}

// Snapshot returns up to limit entries, newest first, optionally for one
// team. limit <= 0 means all.
func (b *Buffer) Snapshot(limit int, teamID string) []models.EventLog {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > b.size {
		limit = b.size
	}
	out := make([]models.EventLog, 0, limit)
	for i := 0; i < b.size && len(out) < limit; i++ {
		e := b.events[(b.head+i)%len(b.events)]
		if teamID != "" && e.TeamID != teamID {
			continue
		}
		out = append(out, e.Clone())
	}
	return out
}
