package audit

import (
	"strings"
	"sync"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// MemoryLog is an in-memory implementation of the AuditLog interface.
// This implementation is safe for concurrent use.
type MemoryLog struct {
	clock   medzk.Clock
	entries []*model.AuditEntry
	byActor map[string][]int
	mu      sync.RWMutex
}

// NewMemoryLog creates a new in-memory audit log.
func NewMemoryLog(clock medzk.Clock) *MemoryLog {
	return &MemoryLog{
		clock:   clock,
		byActor: make(map[string][]int),
	}
}

// Append records an event and returns its entry id. Ids start at 1.
func (l *MemoryLog) Append(kind model.EventKind, actor string, ref model.Ref) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &model.AuditEntry{
		ID:       int64(len(l.entries)) + 1,
		Kind:     kind,
		Actor:    actor,
		Ref:      ref,
		LoggedAt: l.clock.Now(),
	}
	l.entries = append(l.entries, entry)
	key := strings.ToLower(actor)
	l.byActor[key] = append(l.byActor[key], len(l.entries)-1)
	return entry.ID, nil
}

// ByActor returns all entries for an actor in append order.
func (l *MemoryLog) ByActor(actor string) ([]*model.AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	indexes := l.byActor[strings.ToLower(actor)]
	entries := make([]*model.AuditEntry, 0, len(indexes))
	for _, i := range indexes {
		e := *l.entries[i]
		entries = append(entries, &e)
	}
	return entries, nil
}

// Total returns the number of entries appended so far.
func (l *MemoryLog) Total() (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return int64(len(l.entries)), nil
}

// Compile-time check that MemoryLog implements the AuditLog interface
var _ medzk.AuditLog = (*MemoryLog)(nil)
