// Package transport defines the capability boundary to the chat-network
// library. The session machine owns the only live Handle; everything else
// reaches the network through it.
package transport

import (
	"context"

	"github.com/wagate/wagate/internal/store"
)

// CloseReason classifies why a connection closed.
type CloseReason int

const (
	// CloseTransient covers every close cause that should be retried with
	// the existing credentials.
	CloseTransient CloseReason = iota
	// CloseLoggedOut means the session was invalidated by the user or the
	// server; credentials must be wiped before the next attempt.
	CloseLoggedOut
)

// EventKind enumerates the kinds delivered on a handle's event stream.
type EventKind int

const (
	KindPairingChallenge EventKind = iota
	KindConnectionOpen
	KindConnectionClosed
	KindMessage
	KindHistoryBatch
	KindContactUpdate
	KindContactBatch
	KindGroupBatch
)

// Event is a single item on a handle's ordered event stream. Only the
// fields relevant to the Kind are set.
type Event struct {
	Kind      EventKind
	Challenge string
	Reason    CloseReason
	Raw       *store.RawMessage
	History   []*store.RawMessage
	Contact   *store.Contact
	Contacts  []store.Contact
	Groups    []store.Group
}

// MediaKind enumerates uploadable media types.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// MediaUpload describes an outbound media payload.
type MediaUpload struct {
	Kind      MediaKind
	Data      []byte
	Mimetype  string
	Caption   string
	FileName  string
	VoiceNote bool
}

// DialConfig carries what a dialer needs to open a handle.
type DialConfig struct {
	// CredentialsPath is the sqlite credential container path inside the
	// credential directory.
	CredentialsPath string
	// PreferPairingCode suppresses QR rendering on the provider side when
	// the numeric pairing flow was chosen.
	PreferPairingCode bool
}

// Dialer opens transport handles. Exactly one handle may be live at a time;
// enforcing that is the session machine's job, not the dialer's.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Handle, error)
}

// Handle is one live connection to the chat network. Events are delivered
// on a single ordered stream; the channel is closed when the connection is
// torn down, ending that handle generation.
type Handle interface {
	Events() <-chan Event

	// RequestPairingCode asks the provider for a numeric pairing code for
	// the given digits-only phone number.
	RequestPairingCode(ctx context.Context, phoneDigits string) (string, error)

	SendText(ctx context.Context, jid, body string) (string, error)
	SendMedia(ctx context.Context, jid string, m MediaUpload) (string, error)

	FetchAllGroups(ctx context.Context) ([]store.Group, error)
	FetchGroupMetadata(ctx context.Context, jid string) (*store.Group, error)
	Contacts(ctx context.Context) []store.Contact

	// ResolveMedia downloads the media bytes referenced by a retained raw
	// message; the provider re-requests expired media itself.
	ResolveMedia(ctx context.Context, raw *store.RawMessage) ([]byte, error)

	Logout(ctx context.Context) error
	Disconnect()
}
