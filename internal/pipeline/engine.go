// Package pipeline normalizes raw transport events into canonical message
// records and maintains the message log and directory from the inbound
// event stream.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/bus"
	"github.com/wagate/wagate/internal/directory"
	"github.com/wagate/wagate/internal/store"
)

// Engine subscribes to "wa." bus events and processes them in arrival
// order on a single goroutine, so updates are never reordered across event
// types within one handle generation.
type Engine struct {
	log    *store.Log
	dir    *directory.Directory
	parser *Parser
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates the ingestion engine.
func NewEngine(log *store.Log, dir *directory.Directory, parser *Parser, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{log: log, dir: dir, parser: parser, bus: b, logger: logger}
}

// Start subscribes to inbound transport events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Name {
	case "wa.message":
		raw, ok := evt.Payload.(*store.RawMessage)
		if !ok {
			return
		}
		e.IngestLive(ctx, raw)
	case "wa.history":
		raws, ok := evt.Payload.([]*store.RawMessage)
		if !ok {
			return
		}
		e.IngestHistory(ctx, raws)
	case "wa.contact":
		c, ok := evt.Payload.(*store.Contact)
		if !ok {
			return
		}
		e.dir.MergeContact(*c)
		e.bus.Emit("contacts-updated", e.dir.ListContacts())
	case "wa.contacts":
		batch, ok := evt.Payload.([]store.Contact)
		if !ok {
			return
		}
		e.dir.MergeContacts(batch)
		e.bus.Emit("contacts-updated", e.dir.ListContacts())
	case "wa.groups":
		groups, ok := evt.Payload.([]store.Group)
		if !ok {
			return
		}
		e.dir.ReplaceAllGroups(groups)
		e.logger.Info("groups loaded", zap.Int("count", len(groups)))
		e.bus.Emit("groups-loaded", e.dir.Groups())
	}
}

// IngestLive normalizes and appends one live message, emitting new-message
// when it was not a duplicate. Messages sent by this account are observed
// but not logged.
func (e *Engine) IngestLive(ctx context.Context, raw *store.RawMessage) {
	if raw.FromMe {
		return
	}
	msg := e.parser.Parse(ctx, raw)
	if !e.log.Append(msg, raw) {
		return
	}
	e.logger.Info("message ingested",
		zap.String("msg_id", msg.ID), zap.String("sender", msg.Sender))
	e.bus.Emit("new-message", msg)
}

// IngestHistory normalizes and appends a history batch, then reports how
// many entries the sync added.
func (e *Engine) IngestHistory(ctx context.Context, raws []*store.RawMessage) {
	entries := make([]store.Entry, 0, len(raws))
	for _, raw := range raws {
		entries = append(entries, store.Entry{
			Msg: e.parser.Parse(ctx, raw),
			Raw: raw,
		})
	}
	inserted := e.log.AppendBatch(entries)
	e.logger.Info("history batch ingested",
		zap.Int("received", len(raws)), zap.Int("inserted", inserted))
	e.bus.Emit("messages-synced", map[string]int{"count": inserted})
}
