package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"github.com/wagate/wagate/internal/directory"
	"github.com/wagate/wagate/internal/store"
)

type fakeGroupFetcher struct {
	groups map[string]*store.Group
	err    error
	calls  int
}

func (f *fakeGroupFetcher) FetchGroupMetadata(_ context.Context, jid string) (*store.Group, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[jid], nil
}

func rawText(id, chat, sender, push, body string) *store.RawMessage {
	return &store.RawMessage{
		ID:        id,
		ChatJID:   chat,
		SenderJID: sender,
		PushName:  push,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Payload:   &waE2E.Message{Conversation: proto.String(body)},
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("a photo")}}, "a photo"},
		{"video caption", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String("a clip")}}, "a clip"},
		{"image without caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.msg); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, "unknown"},
		{"conversation", &waE2E.Message{Conversation: proto.String("hi")}, "text"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("hi")}}, "text"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "image"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "video"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "audio"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "document"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "sticker"},
		{"empty", &waE2E.Message{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectType(tt.msg); got != tt.want {
				t.Errorf("DetectType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDirectMessage(t *testing.T) {
	p := NewParser(directory.New(), nil, nil)
	raw := rawText("m1", "5511999999999@s.whatsapp.net", "5511999999999:3@s.whatsapp.net", "Alice", "hi")

	msg := p.Parse(context.Background(), raw)

	if msg.IsGroup {
		t.Error("IsGroup = true for direct chat")
	}
	if msg.Sender != "Alice" {
		t.Errorf("Sender = %q, want push name", msg.Sender)
	}
	if msg.SenderNumber != "5511999999999" {
		t.Errorf("SenderNumber = %q", msg.SenderNumber)
	}
	if msg.GroupJID != "" || msg.GroupName != "" {
		t.Error("group fields set for direct chat")
	}
	if msg.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", msg.Timestamp)
	}
}

func TestParseGroupSenderIsParticipant(t *testing.T) {
	fetcher := &fakeGroupFetcher{groups: map[string]*store.Group{
		"120363000@g.us": {JID: "120363000@g.us", Name: "Family"},
	}}
	p := NewParser(directory.New(), fetcher, nil)
	raw := rawText("m2", "120363000@g.us", "5521888888888:1@s.whatsapp.net", "", "hey")

	msg := p.Parse(context.Background(), raw)

	if !msg.IsGroup {
		t.Fatal("IsGroup = false")
	}
	if msg.SenderNumber != "5521888888888" {
		t.Errorf("SenderNumber = %q, want participant number", msg.SenderNumber)
	}
	if msg.Sender != "5521888888888" {
		t.Errorf("Sender = %q, want bare number fallback", msg.Sender)
	}
	if msg.GroupName != "Family" {
		t.Errorf("GroupName = %q, want Family", msg.GroupName)
	}
}

func TestParseGroupNameReadThroughCache(t *testing.T) {
	dir := directory.New()
	fetcher := &fakeGroupFetcher{groups: map[string]*store.Group{
		"120363000@g.us": {JID: "120363000@g.us", Name: "Team"},
	}}
	p := NewParser(dir, fetcher, nil)
	raw := rawText("m3", "120363000@g.us", "1@s.whatsapp.net", "Bob", "x")

	p.Parse(context.Background(), raw)
	p.Parse(context.Background(), rawText("m4", "120363000@g.us", "1@s.whatsapp.net", "Bob", "y"))

	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1 (cached)", fetcher.calls)
	}
	if name, ok := dir.GroupName("120363000@g.us"); !ok || name != "Team" {
		t.Errorf("cache not populated: %q, %v", name, ok)
	}
}

func TestParseGroupNameFetchFailureFallsBack(t *testing.T) {
	p := NewParser(directory.New(), &fakeGroupFetcher{err: errors.New("network down")}, nil)
	raw := rawText("m5", "120363000@g.us", "1@s.whatsapp.net", "", "x")

	msg := p.Parse(context.Background(), raw)
	if msg.GroupName != GroupNameFallback {
		t.Errorf("GroupName = %q, want %q", msg.GroupName, GroupNameFallback)
	}
}

func TestParseSenderDirectoryFallback(t *testing.T) {
	dir := directory.New()
	dir.MergeContact(store.Contact{JID: "5511999999999@s.whatsapp.net", Notify: "Zed"})
	p := NewParser(dir, nil, nil)

	raw := rawText("m6", "5511999999999@s.whatsapp.net", "5511999999999@s.whatsapp.net", "", "hi")
	msg := p.Parse(context.Background(), raw)

	if msg.Sender != "Zed" {
		t.Errorf("Sender = %q, want directory notify name", msg.Sender)
	}
}

func TestParseMediaDescriptor(t *testing.T) {
	p := NewParser(directory.New(), nil, nil)
	raw := &store.RawMessage{
		ID:        "m7",
		ChatJID:   "5511999999999@s.whatsapp.net",
		SenderJID: "5511999999999@s.whatsapp.net",
		Timestamp: time.Now(),
		Payload: &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Mimetype:   proto.String("application/pdf"),
			FileName:   proto.String("report.pdf"),
			FileLength: proto.Uint64(1234),
			Caption:    proto.String("Q2"),
		}},
	}

	msg := p.Parse(context.Background(), raw)
	if !msg.HasMedia || msg.Media == nil {
		t.Fatal("media descriptor missing")
	}
	if msg.Media.Type != "document" || msg.Media.FileName != "report.pdf" || msg.Media.FileSize != 1234 {
		t.Errorf("unexpected descriptor: %+v", msg.Media)
	}
	if msg.Type != "document" {
		t.Errorf("Type = %q", msg.Type)
	}
}

func TestParseTextHasNoMedia(t *testing.T) {
	p := NewParser(directory.New(), nil, nil)
	msg := p.Parse(context.Background(), rawText("m8", "1@s.whatsapp.net", "1@s.whatsapp.net", "A", "hi"))
	if msg.HasMedia || msg.Media != nil {
		t.Error("text message carries media descriptor")
	}
}
