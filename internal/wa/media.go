package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/transport"
)

// SendText sends a plain text message. Returns the server message id.
func (h *handle) SendText(ctx context.Context, jid, body string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := h.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// SendMedia uploads the payload to the provider's media store and sends the
// referencing message.
func (h *handle) SendMedia(ctx context.Context, jid string, m transport.MediaUpload) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}

	uploaded, err := h.client.Upload(ctx, m.Data, uploadType(m.Kind))
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	resp, err := h.client.SendMessage(ctx, to, buildMediaMessage(m, uploaded))
	if err != nil {
		return "", fmt.Errorf("send media message: %w", err)
	}
	return resp.ID, nil
}

func uploadType(kind transport.MediaKind) whatsmeow.MediaType {
	switch kind {
	case transport.MediaVideo:
		return whatsmeow.MediaVideo
	case transport.MediaAudio:
		return whatsmeow.MediaAudio
	case transport.MediaDocument:
		return whatsmeow.MediaDocument
	default:
		return whatsmeow.MediaImage
	}
}

// buildMediaMessage assembles the typed message referencing an uploaded
// payload.
func buildMediaMessage(m transport.MediaUpload, up whatsmeow.UploadResponse) *waE2E.Message {
	switch m.Kind {
	case transport.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.Mimetype),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Caption:       proto.String(m.Caption),
		}}
	case transport.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.Mimetype),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			PTT:           proto.Bool(m.VoiceNote),
		}}
	case transport.MediaDocument:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.Mimetype),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			FileName:      proto.String(m.FileName),
			Caption:       proto.String(m.Caption),
		}}
	default:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.Mimetype),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Caption:       proto.String(m.Caption),
		}}
	}
}

// ResolveMedia downloads and decrypts the attachment of a retained raw
// message. The provider transparently re-requests expired media.
func (h *handle) ResolveMedia(ctx context.Context, raw *store.RawMessage) ([]byte, error) {
	data, err := h.client.DownloadAny(ctx, raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return data, nil
}

// FetchAllGroups lists every group the account participates in.
func (h *handle) FetchAllGroups(ctx context.Context) ([]store.Group, error) {
	infos, err := h.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list joined groups: %w", err)
	}
	groups := make([]store.Group, 0, len(infos))
	for _, info := range infos {
		groups = append(groups, mapGroup(info))
	}
	return groups, nil
}

// FetchGroupMetadata resolves metadata for one group.
func (h *handle) FetchGroupMetadata(ctx context.Context, jid string) (*store.Group, error) {
	gjid, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("parse group JID: %w", err)
	}
	info, err := h.client.GetGroupInfo(ctx, gjid)
	if err != nil {
		return nil, fmt.Errorf("get group info: %w", err)
	}
	g := mapGroup(info)
	return &g, nil
}

func mapGroup(info *types.GroupInfo) store.Group {
	participants := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		participants = append(participants, p.JID.ToNonAD().String())
	}
	return store.Group{
		JID:          info.JID.String(),
		Name:         info.Name,
		Participants: participants,
		CreatedAt:    info.GroupCreated,
		Description:  info.Topic,
	}
}

// Contacts returns the provider's contact roster. Lookup failures degrade
// to an empty roster; the directory keeps whatever it already has.
func (h *handle) Contacts(ctx context.Context) []store.Contact {
	all, err := h.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		h.logger.Warn("contact roster fetch failed")
		return nil
	}
	contacts := make([]store.Contact, 0, len(all))
	for jid, info := range all {
		contacts = append(contacts, store.Contact{
			JID:      jid.ToNonAD().String(),
			Name:     info.FullName,
			Notify:   info.PushName,
			Verified: info.BusinessName,
		})
	}
	return contacts
}
