package store

import (
	"fmt"
	"testing"
	"time"
)

func msg(id string, ts time.Time) *Message {
	return &Message{
		ID:        id,
		ChatJID:   "5511999999999@s.whatsapp.net",
		Sender:    "Alice",
		Content:   "hello",
		Type:      "text",
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

func TestAppendDeduplicates(t *testing.T) {
	l := NewLog(0)
	now := time.Now()

	if !l.Append(msg("m1", now), nil) {
		t.Fatal("first append rejected")
	}
	if l.Append(msg("m1", now.Add(time.Minute)), nil) {
		t.Error("duplicate id accepted")
	}
	if l.Len() != 1 {
		t.Errorf("log has %d entries, want 1", l.Len())
	}
}

func TestAppendPrepends(t *testing.T) {
	l := NewLog(0)
	base := time.Now()

	l.Append(msg("m1", base), nil)
	l.Append(msg("m2", base.Add(time.Second)), nil)

	got := l.List(0)
	if len(got) != 2 || got[0].ID != "m2" || got[1].ID != "m1" {
		t.Errorf("unexpected order: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestAppendBatchSortsNewestFirst(t *testing.T) {
	l := NewLog(0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Live message first, then an older history batch delivered out of order.
	l.Append(msg("live", base.Add(time.Hour)), nil)
	inserted := l.AppendBatch([]Entry{
		{Msg: msg("h2", base.Add(30 * time.Minute))},
		{Msg: msg("h1", base)},
		{Msg: msg("h3", base.Add(45 * time.Minute))},
		{Msg: msg("live", base)}, // dup, skipped
	})
	if inserted != 3 {
		t.Errorf("inserted = %d, want 3", inserted)
	}

	got := l.List(0)
	want := []string{"live", "h3", "h2", "h1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestImportRoundTrip(t *testing.T) {
	l := NewLog(0)
	base := time.Now()

	var export []*Message
	for i := 0; i < 5; i++ {
		export = append(export, msg(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	imported, skipped := l.Import(export)
	if imported != 5 || skipped != 0 {
		t.Errorf("first import = (%d, %d), want (5, 0)", imported, skipped)
	}

	imported, skipped = l.Import(export)
	if imported != 0 || skipped != 5 {
		t.Errorf("re-import = (%d, %d), want (0, 5)", imported, skipped)
	}
	if l.Len() != 5 {
		t.Errorf("log has %d entries, want 5", l.Len())
	}
}

func TestListLimit(t *testing.T) {
	l := NewLog(0)
	base := time.Now()
	for i := 0; i < 10; i++ {
		l.Append(msg(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)), nil)
	}

	if got := l.List(3); len(got) != 3 {
		t.Errorf("List(3) returned %d entries", len(got))
	}
	if got := l.List(100); len(got) != 10 {
		t.Errorf("List(100) returned %d entries", len(got))
	}
}

func TestRecentSince(t *testing.T) {
	l := NewLog(0)
	now := time.Now()

	l.Append(msg("old", now.Add(-2*time.Hour)), nil)
	l.Append(msg("new", now.Add(-5*time.Minute)), nil)

	got := l.RecentSince(time.Hour)
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("RecentSince returned %d entries", len(got))
	}
}

func TestRawRetentionBounded(t *testing.T) {
	l := NewLog(2)
	base := time.Now()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("m%d", i)
		l.Append(msg(id, base.Add(time.Duration(i)*time.Second)), &RawMessage{ID: id})
	}

	if _, ok := l.Raw("m0"); ok {
		t.Error("oldest raw entry not evicted")
	}
	if _, ok := l.Raw("m2"); !ok {
		t.Error("newest raw entry missing")
	}
	// The message itself survives eviction.
	if l.Len() != 3 {
		t.Errorf("log has %d entries, want 3", l.Len())
	}
}
