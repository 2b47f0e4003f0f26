// Package session owns the single logical connection to the chat network:
// pairing, disconnect classification, reconnect scheduling, and the handle
// every other component sends through.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/bus"
	"github.com/wagate/wagate/internal/creds"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/transport"
)

// ErrNotConnected is returned by operations that need a live, connected
// session.
var ErrNotConnected = errors.New("not connected to the chat network")

// GroupLookupError wraps a failed group metadata fetch.
type GroupLookupError struct {
	JID string
	Err error
}

func (e *GroupLookupError) Error() string {
	return fmt.Sprintf("group lookup failed for %s: %v", e.JID, e.Err)
}

func (e *GroupLookupError) Unwrap() error { return e.Err }

// Delays configures the two retry intervals: the short backoff after a
// transient close and the longer wait after a forced logout wiped the
// credentials.
type Delays struct {
	Reconnect time.Duration
	LoggedOut time.Duration
}

// Machine is the session state machine. At most one transport handle is
// live at a time; the dialing and reconnect-pending flags guard the "open a
// new handle" critical section.
type Machine struct {
	dialer transport.Dialer
	creds  *creds.Store
	bus    *bus.Bus
	logger *zap.Logger
	delays Delays

	// timer schedules delayed retries; replaced in tests.
	timer func(d time.Duration, fn func())

	mu     sync.Mutex
	state  State
	handle transport.Handle
	gen    int

	phoneNumber   string
	usePairCode   bool
	codeRequested bool
	qrDataURL     string
	pairingCode   string

	dialing          bool
	reconnectPending bool
}

// NewMachine creates a machine in the idle state.
func NewMachine(dialer transport.Dialer, cs *creds.Store, b *bus.Bus, logger *zap.Logger, delays Delays) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		dialer: dialer,
		creds:  cs,
		bus:    b,
		logger: logger,
		delays: delays,
		timer:  func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		state:  StateIdle,
	}
}

// Start opens the session. A non-empty phone number selects the
// pairing-code flow; empty selects QR. No-ops while a reconnect is pending
// or a handle is already open.
func (m *Machine) Start(phone string) error {
	m.mu.Lock()
	if m.reconnectPending || m.handle != nil || m.dialing {
		m.mu.Unlock()
		return nil
	}
	m.usePairCode = phone != ""
	m.phoneNumber = phone
	m.mu.Unlock()
	return m.dial()
}

// RequestPairing wipes the stored credentials and re-enters pairing with
// the given phone number (empty for QR). Any open handle is torn down
// first; a second handle is never created.
func (m *Machine) RequestPairing(phone string) error {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.gen++ // stale-generation barrier for the old event loop
	m.usePairCode = phone != ""
	m.phoneNumber = phone
	m.mu.Unlock()

	if h != nil {
		h.Disconnect()
	}
	if err := m.creds.Wipe(); err != nil {
		return err
	}
	return m.dial()
}

// Logout invalidates the session on the transport side and marks the
// machine disconnected. Fails with ErrNotConnected when no handle exists.
func (m *Machine) Logout(ctx context.Context) error {
	m.mu.Lock()
	h := m.handle
	m.mu.Unlock()
	if h == nil {
		return ErrNotConnected
	}

	err := h.Logout(ctx)

	m.mu.Lock()
	if m.handle == h {
		m.handle = nil
		m.gen++
		m.qrDataURL = ""
		m.pairingCode = ""
		m.setStateLocked(StateDisconnected)
	}
	m.mu.Unlock()

	return err
}

// Connected reports whether the session is in the connected state.
func (m *Machine) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// Status returns a snapshot of the session.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:       m.state,
		Connected:   m.state == StateConnected,
		QRDataURL:   m.qrDataURL,
		PairingCode: m.pairingCode,
		PhoneNumber: m.phoneNumber,
	}
}

// ConnectedHandle returns the live handle, or ErrNotConnected. Callers hold
// the handle only for the duration of one transport call; a close that
// races the call surfaces as that call's error.
func (m *Machine) ConnectedHandle() (transport.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.handle == nil {
		return nil, ErrNotConnected
	}
	return m.handle, nil
}

// FetchGroupMetadata resolves group metadata over the live handle.
func (m *Machine) FetchGroupMetadata(ctx context.Context, jid string) (*store.Group, error) {
	h, err := m.ConnectedHandle()
	if err != nil {
		return nil, err
	}
	g, err := h.FetchGroupMetadata(ctx, jid)
	if err != nil {
		return nil, &GroupLookupError{JID: jid, Err: err}
	}
	return g, nil
}

// Close tears down any open handle without logging out. Used at daemon
// shutdown.
func (m *Machine) Close() {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.gen++
	m.mu.Unlock()
	if h != nil {
		h.Disconnect()
	}
}

// dial opens a new transport handle. It is the single critical section for
// handle creation: concurrent calls collapse into one attempt. Dial errors
// are never fatal; they schedule a delayed retry.
func (m *Machine) dial() error {
	m.mu.Lock()
	if m.handle != nil || m.dialing {
		m.mu.Unlock()
		return nil
	}
	m.dialing = true
	m.codeRequested = false
	m.qrDataURL = ""
	m.pairingCode = ""
	m.setStateLocked(StatePairing)
	prefer := m.usePairCode
	m.mu.Unlock()

	clearDialing := func() {
		m.mu.Lock()
		m.dialing = false
		m.mu.Unlock()
	}

	if err := m.creds.Ensure(); err != nil {
		clearDialing()
		return err
	}

	h, err := m.dialer.Dial(context.Background(), transport.DialConfig{
		CredentialsPath:   m.creds.ContainerPath(),
		PreferPairingCode: prefer,
	})
	if err != nil {
		m.logger.Warn("transport connect failed, retrying", zap.Error(err))
		clearDialing()
		m.scheduleRetry(m.delays.Reconnect)
		return nil
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.handle = h
	m.dialing = false
	m.mu.Unlock()

	go m.eventLoop(gen, h)
	return nil
}

// eventLoop consumes one handle generation's event stream. It ends when
// the transport closes the channel; handlers for a stale generation are
// no-ops.
func (m *Machine) eventLoop(gen int, h transport.Handle) {
	for evt := range h.Events() {
		switch evt.Kind {
		case transport.KindPairingChallenge:
			m.handleChallenge(gen, h, evt.Challenge)
		case transport.KindConnectionOpen:
			m.handleOpen(gen, h)
		case transport.KindConnectionClosed:
			m.handleClosed(gen, evt.Reason)
		case transport.KindMessage:
			m.bus.Emit("wa.message", evt.Raw)
		case transport.KindHistoryBatch:
			m.bus.Emit("wa.history", evt.History)
		case transport.KindContactUpdate:
			m.bus.Emit("wa.contact", evt.Contact)
		case transport.KindContactBatch:
			m.bus.Emit("wa.contacts", evt.Contacts)
		case transport.KindGroupBatch:
			m.bus.Emit("wa.groups", evt.Groups)
		}
	}
}

func (m *Machine) handleChallenge(gen int, h transport.Handle, challenge string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	usePair := m.usePairCode
	phone := m.phoneNumber
	alreadyRequested := m.codeRequested
	m.mu.Unlock()

	if !usePair {
		dataURL, err := renderQR(challenge)
		if err != nil {
			m.logger.Error("failed to render pairing challenge", zap.Error(err))
			return
		}
		m.mu.Lock()
		m.qrDataURL = dataURL
		m.pairingCode = ""
		m.mu.Unlock()
		m.bus.Emit("qr", dataURL)
		return
	}

	// The latch arms only once a code has been issued, so a failed request
	// can retry on the next challenge. Challenges arrive sequentially on the
	// event loop, so at most one request is in flight.
	if alreadyRequested {
		return
	}
	code, err := h.RequestPairingCode(context.Background(), sanitizePhone(phone))
	if err != nil {
		m.logger.Warn("pairing code request failed", zap.Error(err))
		m.bus.Emit("pairing-error", err.Error())
		return
	}
	m.mu.Lock()
	m.codeRequested = true
	m.pairingCode = code
	m.qrDataURL = ""
	m.mu.Unlock()
	m.logger.Info("pairing code issued")
	m.bus.Emit("pairing-code", code)
}

func (m *Machine) handleOpen(gen int, h transport.Handle) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.qrDataURL = ""
	m.pairingCode = ""
	m.codeRequested = false
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.logger.Info("connected to the chat network")
	go m.refreshDirectory(h)
}

func (m *Machine) handleClosed(gen int, reason transport.CloseReason) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.handle = nil
	m.qrDataURL = ""
	m.pairingCode = ""
	loggedOut := reason == transport.CloseLoggedOut
	if loggedOut {
		m.usePairCode = false
		m.phoneNumber = ""
	}
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if loggedOut {
		m.logger.Warn("logged out by the network, wiping credentials")
		if err := m.creds.Wipe(); err != nil {
			m.logger.Error("credential wipe failed", zap.Error(err))
		}
		m.scheduleRetry(m.delays.LoggedOut)
		return
	}
	m.logger.Warn("connection closed, scheduling reconnect")
	m.scheduleRetry(m.delays.Reconnect)
}

// scheduleRetry arms a single delayed redial. The pending flag is cleared
// immediately before the retry runs so the retry itself can dial.
func (m *Machine) scheduleRetry(d time.Duration) {
	m.mu.Lock()
	if m.reconnectPending {
		m.mu.Unlock()
		return
	}
	m.reconnectPending = true
	m.mu.Unlock()

	m.timer(d, func() {
		m.mu.Lock()
		m.reconnectPending = false
		m.mu.Unlock()
		if err := m.dial(); err != nil {
			m.logger.Error("scheduled reconnect failed", zap.Error(err))
		}
	})
}

// refreshDirectory pulls the bulk contact and group state after a
// connection opens and publishes it for the pipeline.
func (m *Machine) refreshDirectory(h transport.Handle) {
	ctx := context.Background()

	if contacts := h.Contacts(ctx); len(contacts) > 0 {
		m.bus.Emit("wa.contacts", contacts)
	}

	groups, err := h.FetchAllGroups(ctx)
	if err != nil {
		m.logger.Warn("group refresh failed", zap.Error(err))
		return
	}
	m.bus.Emit("wa.groups", groups)
}

// setStateLocked transitions the machine and broadcasts the connectivity
// flag. Caller holds the mutex.
func (m *Machine) setStateLocked(to State) {
	if m.state == to && to != StatePairing {
		return
	}
	if !transitionAllowed(m.state, to) {
		m.logger.Warn("invalid state transition",
			zap.String("from", string(m.state)), zap.String("to", string(to)))
		return
	}
	m.state = to
	m.bus.Emit("status", map[string]bool{"connected": to == StateConnected})
}

// renderQR encodes a pairing challenge as a PNG data URL observers can
// display directly.
func renderQR(challenge string) (string, error) {
	png, err := qrcode.Encode(challenge, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// sanitizePhone strips separators ("+", spaces, dashes and anything else
// non-numeric) before a pairing code request.
func sanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
