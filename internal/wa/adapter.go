// Package wa adapts the whatsmeow client to the transport boundary. Each
// Dial produces one handle whose event channel stays ordered and closes
// exactly once, on teardown.
package wa

import (
	"context"
	"fmt"
	"sync"

	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/transport"

	_ "github.com/mattn/go-sqlite3"
)

// Dialer opens whatsmeow-backed handles.
type Dialer struct {
	logger *zap.Logger
}

// NewDialer creates the dialer and sets the device name shown on the
// phone's linked-devices list.
func NewDialer(logger *zap.Logger) *Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	wastore.SetOSInfo("WaGate", [3]uint32{0, 1, 0})
	return &Dialer{logger: logger}
}

// Dial opens the credential container, builds a client and connects. When
// no device is registered yet the pairing challenge pump is started before
// the connect, as the provider requires.
func (d *Dialer) Dial(ctx context.Context, cfg transport.DialConfig) (transport.Handle, error) {
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", cfg.CredentialsPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("open credential container: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(device, nil)
	// Reconnects belong to the session machine, not the provider.
	client.EnableAutoReconnect = false

	h := &handle{
		client: client,
		out:    make(chan transport.Event, 256),
		logger: d.logger,
	}
	client.AddEventHandler(h.handleEvent)

	if client.Store.ID == nil {
		// GetQRChannel must be called before Connect.
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return nil, fmt.Errorf("get pairing channel: %w", err)
		}
		go h.pumpChallenges(qrChan)
	}

	if err := client.Connect(); err != nil {
		h.teardown()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return h, nil
}

// handle is one live connection. All provider callbacks funnel into the
// buffered out channel; emit and teardown synchronize on mu so no send can
// race the close.
type handle struct {
	client *whatsmeow.Client
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	out    chan transport.Event
}

func (h *handle) Events() <-chan transport.Event { return h.out }

// emit queues an event without blocking the provider's callback goroutine.
// A full buffer drops the event; the session-critical open/close events fit
// well within the buffer in practice.
func (h *handle) emit(evt transport.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.out <- evt:
	default:
		h.logger.Warn("transport event buffer full, dropping event",
			zap.Int("kind", int(evt.Kind)))
	}
}

// teardown closes the event stream. Idempotent.
func (h *handle) teardown() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.out)
		h.mu.Unlock()
	})
}

// pumpChallenges forwards pairing challenges until the flow resolves. A
// timeout or pump error ends the handle generation.
func (h *handle) pumpChallenges(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			h.emit(transport.Event{Kind: transport.KindPairingChallenge, Challenge: item.Code})
		case "success":
			// The connected event follows on the main handler.
			return
		case "timeout":
			h.logger.Warn("pairing challenge timed out")
			h.emit(transport.Event{Kind: transport.KindConnectionClosed, Reason: transport.CloseTransient})
			h.teardown()
			return
		default:
			if item.Error != nil {
				h.logger.Warn("pairing flow failed", zap.Error(item.Error))
				h.emit(transport.Event{Kind: transport.KindConnectionClosed, Reason: transport.CloseTransient})
				h.teardown()
				return
			}
		}
	}
}

// RequestPairingCode asks the provider for a numeric pairing code.
func (h *handle) RequestPairingCode(ctx context.Context, phoneDigits string) (string, error) {
	code, err := h.client.PairPhone(ctx, phoneDigits, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fmt.Errorf("request pairing code: %w", err)
	}
	return code, nil
}

// Logout invalidates the registration on the provider side and ends the
// handle.
func (h *handle) Logout(ctx context.Context) error {
	err := h.client.Logout(ctx)
	h.teardown()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Disconnect tears the connection down without touching the registration.
func (h *handle) Disconnect() {
	h.client.Disconnect()
	h.teardown()
}
