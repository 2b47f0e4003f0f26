package pipeline

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/directory"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/transport"
)

// GroupNameFallback is used when group metadata cannot be resolved.
const GroupNameFallback = "Group"

// GroupFetcher resolves group metadata over the active transport handle.
type GroupFetcher interface {
	FetchGroupMetadata(ctx context.Context, jid string) (*store.Group, error)
}

// Parser normalizes raw transport events into canonical message records.
type Parser struct {
	dir    *directory.Directory
	groups GroupFetcher
	logger *zap.Logger
}

// NewParser creates a parser backed by the directory and a group fetcher.
func NewParser(dir *directory.Directory, groups GroupFetcher, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{dir: dir, groups: groups, logger: logger}
}

// Parse builds a Message from a raw event. It never fails: lookups that
// error degrade to fallback values.
func (p *Parser) Parse(ctx context.Context, raw *store.RawMessage) *store.Message {
	isGroup := transport.IsGroupJID(raw.ChatJID)

	// In groups the true sender is the participant, not the conversation.
	senderJID := raw.ChatJID
	if isGroup {
		senderJID = raw.SenderJID
	}
	senderNumber := transport.BareNumber(senderJID)

	msg := &store.Message{
		ID:           raw.ID,
		ChatJID:      raw.ChatJID,
		IsGroup:      isGroup,
		Sender:       p.resolveSender(raw.PushName, senderNumber),
		SenderNumber: senderNumber,
		Content:      ExtractText(raw.Payload),
		Type:         DetectType(raw.Payload),
		Timestamp:    raw.Timestamp.UTC().Format(time.RFC3339),
	}

	if isGroup {
		msg.GroupJID = raw.ChatJID
		msg.GroupName = p.resolveGroupName(ctx, raw.ChatJID)
	}

	if media := MediaDescriptor(raw.Payload); media != nil {
		msg.HasMedia = true
		msg.Media = media
	}

	return msg
}

// resolveSender picks a display name: push name from the event, then the
// directory record, then the bare number.
func (p *Parser) resolveSender(pushName, senderNumber string) string {
	if pushName != "" {
		return pushName
	}
	if c, ok := p.dir.Contact(transport.UserJID(senderNumber)); ok {
		if name := c.DisplayName(); name != "" {
			return name
		}
	}
	return senderNumber
}

// resolveGroupName is a read-through cache: directory first, then an
// on-demand metadata fetch cached on success, then the literal fallback.
// Fetch failures never abort ingestion.
func (p *Parser) resolveGroupName(ctx context.Context, groupJID string) string {
	if name, ok := p.dir.GroupName(groupJID); ok {
		return name
	}
	if p.groups != nil {
		g, err := p.groups.FetchGroupMetadata(ctx, groupJID)
		if err == nil && g != nil && g.Name != "" {
			p.dir.MergeGroup(*g)
			return g.Name
		}
		if err != nil {
			p.logger.Warn("group metadata fetch failed",
				zap.String("group", groupJID), zap.Error(err))
		}
	}
	return GroupNameFallback
}

// ExtractText returns the first non-empty of: plain body, extended-text
// body, image caption, video caption.
func ExtractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil && ext.GetText() != "" {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil && img.GetCaption() != "" {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil && vid.GetCaption() != "" {
		return vid.GetCaption()
	}
	return ""
}

// DetectType classifies the payload into a message type tag.
func DetectType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	default:
		return "unknown"
	}
}

// MediaDescriptor builds the media descriptor for payloads carrying media.
// Returns nil for text and unknown payloads.
func MediaDescriptor(msg *waE2E.Message) *store.MediaInfo {
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		return &store.MediaInfo{
			Type:     "image",
			Mimetype: img.GetMimetype(),
			FileSize: img.GetFileLength(),
			Caption:  img.GetCaption(),
		}
	case msg.GetVideoMessage() != nil:
		vid := msg.GetVideoMessage()
		return &store.MediaInfo{
			Type:     "video",
			Mimetype: vid.GetMimetype(),
			FileSize: vid.GetFileLength(),
			Caption:  vid.GetCaption(),
		}
	case msg.GetAudioMessage() != nil:
		aud := msg.GetAudioMessage()
		return &store.MediaInfo{
			Type:     "audio",
			Mimetype: aud.GetMimetype(),
			FileSize: aud.GetFileLength(),
		}
	case msg.GetDocumentMessage() != nil:
		doc := msg.GetDocumentMessage()
		return &store.MediaInfo{
			Type:     "document",
			Mimetype: doc.GetMimetype(),
			FileName: doc.GetFileName(),
			FileSize: doc.GetFileLength(),
			Caption:  doc.GetCaption(),
		}
	case msg.GetStickerMessage() != nil:
		st := msg.GetStickerMessage()
		return &store.MediaInfo{
			Type:     "sticker",
			Mimetype: st.GetMimetype(),
			FileSize: st.GetFileLength(),
		}
	default:
		return nil
	}
}
