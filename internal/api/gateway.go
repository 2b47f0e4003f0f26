// Package api is the gateway's operation surface: every action an embedding
// program or control plane can take goes through Gateway.
package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/bus"
	"github.com/wagate/wagate/internal/directory"
	"github.com/wagate/wagate/internal/dispatch"
	"github.com/wagate/wagate/internal/media"
	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/internal/store"
)

// ImportSummary reports the outcome of a message import.
type ImportSummary struct {
	Imported int `json:"importedCount"`
	Skipped  int `json:"skippedCount"`
	Total    int `json:"totalMessages"`
}

// Gateway bundles the session, directory, log, dispatcher and media cache
// behind one façade.
type Gateway struct {
	machine    *session.Machine
	dir        *directory.Directory
	log        *store.Log
	dispatcher *dispatch.Service
	cache      *media.Cache
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewGateway wires the façade.
func NewGateway(m *session.Machine, dir *directory.Directory, log *store.Log,
	d *dispatch.Service, c *media.Cache, b *bus.Bus, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		machine: m, dir: dir, log: log,
		dispatcher: d, cache: c, bus: b, logger: logger,
	}
}

// Status returns the current session snapshot.
func (g *Gateway) Status() session.Status { return g.machine.Status() }

// Contacts lists the known contacts, group records excluded.
func (g *Gateway) Contacts() []store.ContactSummary { return g.dir.ListContacts() }

// Groups lists the known groups.
func (g *Gateway) Groups() []store.Group { return g.dir.Groups() }

// GroupInfo fetches fresh metadata for one group over the live session.
func (g *Gateway) GroupInfo(ctx context.Context, groupJID string) (*store.Group, error) {
	grp, err := g.machine.FetchGroupMetadata(ctx, groupJID)
	if err != nil {
		return nil, err
	}
	g.dir.MergeGroup(*grp)
	return grp, nil
}

// Messages returns up to limit messages, newest first. A non-positive limit
// returns everything.
func (g *Gateway) Messages(limit int) []*store.Message { return g.log.List(limit) }

// SendText sends a text message to a user.
func (g *Gateway) SendText(ctx context.Context, to, body string) (*dispatch.Receipt, error) {
	return g.dispatcher.SendText(ctx, to, body)
}

// SendGroup sends a text message to a group.
func (g *Gateway) SendGroup(ctx context.Context, groupID, body string) (*dispatch.Receipt, error) {
	return g.dispatcher.SendGroup(ctx, groupID, body)
}

// SendMedia sends a media message.
func (g *Gateway) SendMedia(ctx context.Context, req dispatch.MediaRequest) (*dispatch.Receipt, error) {
	return g.dispatcher.SendMedia(ctx, req)
}

// SendBulk sends the same text to many recipients sequentially. delay
// paces the job; non-positive uses the configured default.
func (g *Gateway) SendBulk(ctx context.Context, recipients []string, body string, delay time.Duration) (*dispatch.BulkReport, error) {
	return g.dispatcher.SendBulk(ctx, recipients, body, delay)
}

// DownloadMedia resolves and caches the attachment of a retained message.
func (g *Gateway) DownloadMedia(ctx context.Context, messageID string) (*media.File, error) {
	return g.cache.Resolve(ctx, messageID)
}

// ExportMessages returns the messages received within the trailing window.
func (g *Gateway) ExportMessages(window time.Duration) []*store.Message {
	return g.log.RecentSince(window)
}

// ImportMessages merges externally supplied records into the log, skipping
// ids already present, and broadcasts the resulting counts.
func (g *Gateway) ImportMessages(msgs []*store.Message) ImportSummary {
	imported, skipped := g.log.Import(msgs)
	summary := ImportSummary{Imported: imported, Skipped: skipped, Total: g.log.Len()}
	g.logger.Info("messages imported",
		zap.Int("imported", imported), zap.Int("skipped", skipped))
	g.bus.Emit("messages-imported", map[string]int{
		"importedCount": summary.Imported,
		"skippedCount":  summary.Skipped,
		"totalMessages": summary.Total,
	})
	return summary
}

// StartPairing wipes the stored credentials and re-enters pairing. A phone
// number selects the pairing-code flow; empty selects QR.
func (g *Gateway) StartPairing(phone string) error {
	return g.machine.RequestPairing(phone)
}

// Logout invalidates the session on the network side.
func (g *Gateway) Logout(ctx context.Context) error { return g.machine.Logout(ctx) }

// Events exposes the broadcast bus for embedders that want to observe
// gateway events directly.
func (g *Gateway) Events() *bus.Bus { return g.bus }
