package store

import (
	"sort"
	"sync"
	"time"
)

// DefaultRawRetention bounds the raw-event side table when no limit is
// configured.
const DefaultRawRetention = 4096

// Entry pairs a message with the raw transport event it was parsed from.
type Entry struct {
	Msg *Message
	Raw *RawMessage
}

// Log is the process-lifetime message log: newest-first, identifier-unique,
// with a bounded side table of raw transport events keyed by message id.
type Log struct {
	mu       sync.RWMutex
	msgs     []*Message
	seen     map[string]struct{}
	raw      map[string]*RawMessage
	rawOrder []string
	rawCap   int
}

// NewLog creates an empty log. rawCap bounds the raw side table; zero or
// negative means DefaultRawRetention.
func NewLog(rawCap int) *Log {
	if rawCap <= 0 {
		rawCap = DefaultRawRetention
	}
	return &Log{
		seen:   make(map[string]struct{}),
		raw:    make(map[string]*RawMessage),
		rawCap: rawCap,
	}
}

// Append inserts a single live message. Duplicated identifiers are silently
// skipped. Live messages are always the newest, so they are prepended
// without a re-sort. Returns whether the message was inserted.
func (l *Log) Append(msg *Message, raw *RawMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[msg.ID]; dup {
		return false
	}
	l.seen[msg.ID] = struct{}{}
	l.msgs = append([]*Message{msg}, l.msgs...)
	l.retainLocked(msg.ID, raw)
	return true
}

// AppendBatch inserts a history batch and re-sorts the log newest-first.
// Returns the number of messages actually inserted.
func (l *Log) AppendBatch(entries []Entry) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	inserted := 0
	for _, e := range entries {
		if _, dup := l.seen[e.Msg.ID]; dup {
			continue
		}
		l.seen[e.Msg.ID] = struct{}{}
		l.msgs = append(l.msgs, e.Msg)
		l.retainLocked(e.Msg.ID, e.Raw)
		inserted++
	}
	if inserted > 0 {
		l.sortLocked()
	}
	return inserted
}

// Import inserts externally supplied records, applying the same dedup rule,
// and re-sorts. No raw events are retained for imported messages.
func (l *Log) Import(msgs []*Message) (imported, skipped int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range msgs {
		if _, dup := l.seen[m.ID]; dup {
			skipped++
			continue
		}
		l.seen[m.ID] = struct{}{}
		l.msgs = append(l.msgs, m)
		imported++
	}
	if imported > 0 {
		l.sortLocked()
	}
	return imported, skipped
}

// List returns up to limit entries of the newest-first log.
func (l *Log) List(limit int) []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.msgs) {
		limit = len(l.msgs)
	}
	out := make([]*Message, limit)
	copy(out, l.msgs[:limit])
	return out
}

// RecentSince returns all entries whose timestamp falls within the window
// ending now.
func (l *Log) RecentSince(window time.Duration) []*Message {
	cutoff := time.Now().Add(-window)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Message
	for _, m := range l.msgs {
		if m.Time().After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Raw looks up the retained raw event for a message id. Absence only means
// media can no longer be resolved; the message itself may still be listed.
func (l *Log) Raw(id string) (*RawMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.raw[id]
	return r, ok
}

func (l *Log) retainLocked(id string, raw *RawMessage) {
	if raw == nil {
		return
	}
	if _, exists := l.raw[id]; exists {
		return
	}
	l.raw[id] = raw
	l.rawOrder = append(l.rawOrder, id)
	for len(l.rawOrder) > l.rawCap {
		oldest := l.rawOrder[0]
		l.rawOrder = l.rawOrder[1:]
		delete(l.raw, oldest)
	}
}

func (l *Log) sortLocked() {
	sort.SliceStable(l.msgs, func(i, j int) bool {
		return l.msgs[i].Time().After(l.msgs[j].Time())
	})
}
