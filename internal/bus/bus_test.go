package bus

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmitSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 10)
	defer unsub()

	b.Emit("wa.message", "payload")

	select {
	case evt := <-ch:
		if evt.Name != "wa.message" {
			t.Errorf("got name %q, want wa.message", evt.Name)
		}
		if evt.At.IsZero() {
			t.Error("Emit did not stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("pairing-", 10)
	defer unsub()

	b.Emit("status", nil)
	b.Emit("pairing-code", "1234-5678")

	select {
	case evt := <-ch:
		if evt.Name != "pairing-code" {
			t.Errorf("got name %q, want pairing-code", evt.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyPrefixMatchesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Emit("new-message", nil)

	select {
	case evt := <-ch:
		if evt.Name != "new-message" {
			t.Errorf("got name %q", evt.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 10)
	unsub()

	b.Emit("wa.message", nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 1)
	defer unsub()

	b.Emit("wa.one", nil)
	b.Emit("wa.two", nil) // dropped, subscriber full

	evt := <-ch
	if evt.Name != "wa.one" {
		t.Errorf("got %q, want wa.one", evt.Name)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected second event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBufferIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewWithLogger(zap.New(core))
	_, unsub := b.Subscribe("wa.", 1)
	defer unsub()

	b.Emit("wa.one", nil)
	b.Emit("wa.two", nil) // dropped, subscriber full

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1 drop warning", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event"] != "wa.two" || fields["prefix"] != "wa." {
		t.Errorf("drop log fields = %v", fields)
	}
}
