package wa

import (
	"time"

	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/transport"
)

// handleEvent is the whatsmeow event callback. It maps provider events onto
// the transport stream; everything it does not understand is ignored.
func (h *handle) handleEvent(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		h.logger.Info("provider connection established")
		h.emit(transport.Event{Kind: transport.KindConnectionOpen})

	case *events.Disconnected:
		h.logger.Warn("provider connection lost")
		h.emit(transport.Event{Kind: transport.KindConnectionClosed, Reason: transport.CloseTransient})
		h.teardown()

	case *events.StreamReplaced:
		h.logger.Warn("stream replaced by another client")
		h.emit(transport.Event{Kind: transport.KindConnectionClosed, Reason: transport.CloseTransient})
		h.teardown()

	case *events.LoggedOut:
		h.logger.Warn("logged out by provider", zap.String("reason", evt.Reason.String()))
		h.emit(transport.Event{Kind: transport.KindConnectionClosed, Reason: transport.CloseLoggedOut})
		h.teardown()

	case *events.Message:
		h.emit(transport.Event{Kind: transport.KindMessage, Raw: &store.RawMessage{
			ID:        evt.Info.ID,
			ChatJID:   evt.Info.Chat.String(),
			SenderJID: evt.Info.Sender.String(),
			PushName:  evt.Info.PushName,
			FromMe:    evt.Info.IsFromMe,
			Timestamp: evt.Info.Timestamp,
			Payload:   evt.Message,
		}})

	case *events.HistorySync:
		h.handleHistorySync(evt)

	case *events.Contact:
		h.emit(transport.Event{Kind: transport.KindContactUpdate, Contact: &store.Contact{
			JID:  evt.JID.ToNonAD().String(),
			Name: evt.Action.GetFullName(),
		}})

	case *events.PushName:
		h.emit(transport.Event{Kind: transport.KindContactUpdate, Contact: &store.Contact{
			JID:    evt.JID.ToNonAD().String(),
			Notify: evt.NewPushName,
		}})
	}
}

// handleHistorySync flattens a history payload into one batch of raw
// messages, preserving provider order, and forwards the push names it
// carries as contact updates.
func (h *handle) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var batch []*store.RawMessage
	for _, conv := range data.GetConversations() {
		chatJID := conv.GetID()
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			key := wmsg.GetKey()
			sender := key.GetParticipant()
			if sender == "" {
				sender = chatJID
			}
			batch = append(batch, &store.RawMessage{
				ID:        key.GetID(),
				ChatJID:   chatJID,
				SenderJID: sender,
				PushName:  wmsg.GetPushName(),
				FromMe:    key.GetFromMe(),
				Timestamp: time.Unix(int64(wmsg.GetMessageTimestamp()), 0),
				Payload:   wmsg.GetMessage(),
			})
		}
	}

	var contacts []store.Contact
	for _, pn := range data.GetPushnames() {
		if pn.GetID() == "" || pn.GetPushname() == "" {
			continue
		}
		contacts = append(contacts, store.Contact{
			JID:    pn.GetID(),
			Notify: pn.GetPushname(),
		})
	}

	h.logger.Info("history sync received",
		zap.Int("messages", len(batch)), zap.Int("push_names", len(contacts)))

	if len(contacts) > 0 {
		h.emit(transport.Event{Kind: transport.KindContactBatch, Contacts: contacts})
	}
	if len(batch) > 0 {
		h.emit(transport.Event{Kind: transport.KindHistoryBatch, History: batch})
	}
}
