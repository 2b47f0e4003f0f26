// Package dispatch sends outbound messages over the live session: single
// texts, group texts, media, and sequential bulk jobs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/internal/transport"
)

// ErrInvalidMediaType is returned when a media send names a type outside
// image, video, audio or document.
var ErrInvalidMediaType = errors.New("invalid media type")

// SendError wraps a failed delivery with the recipient it was addressed to.
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Receipt describes one accepted delivery.
type Receipt struct {
	Success   bool   `json:"success"`
	To        string `json:"to"`
	Body      string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// BulkEntry is the per-recipient outcome of a bulk job.
type BulkEntry struct {
	Recipient string `json:"recipient"`
	Status    string `json:"status"` // "sent" or "failed"
	Error     string `json:"error,omitempty"`
}

// BulkReport summarizes a finished bulk job.
type BulkReport struct {
	JobID   string      `json:"jobId"`
	Total   int         `json:"total"`
	Sent    int         `json:"sent"`
	Failed  int         `json:"failed"`
	Results []BulkEntry `json:"results"`
}

// MediaRequest describes an outbound media send.
type MediaRequest struct {
	To        string
	Type      string // image | video | audio | document
	Data      []byte
	Mimetype  string
	Caption   string
	FileName  string
	VoiceNote bool
}

// Service sends through whatever handle the session currently holds. It
// keeps no connection state of its own.
type Service struct {
	machine   *session.Machine
	logger    *zap.Logger
	bulkDelay time.Duration
}

// NewService creates a dispatch service. bulkDelay is the pause between
// consecutive recipients of a bulk job.
func NewService(m *session.Machine, logger *zap.Logger, bulkDelay time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{machine: m, logger: logger, bulkDelay: bulkDelay}
}

// SendText delivers a text message to a single user. Bare numbers are
// qualified with the user server suffix.
func (s *Service) SendText(ctx context.Context, to, body string) (*Receipt, error) {
	return s.sendText(ctx, transport.UserJID(to), body)
}

// SendGroup delivers a text message to a group.
func (s *Service) SendGroup(ctx context.Context, groupID, body string) (*Receipt, error) {
	return s.sendText(ctx, transport.GroupJID(groupID), body)
}

func (s *Service) sendText(ctx context.Context, jid, body string) (*Receipt, error) {
	h, err := s.machine.ConnectedHandle()
	if err != nil {
		return nil, err
	}
	if _, err := h.SendText(ctx, jid, body); err != nil {
		return nil, &SendError{Recipient: jid, Err: err}
	}
	s.logger.Info("message sent", zap.String("to", jid))
	return &Receipt{
		Success:   true,
		To:        jid,
		Body:      body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// SendMedia uploads and delivers a media message.
func (s *Service) SendMedia(ctx context.Context, req MediaRequest) (*Receipt, error) {
	kind, err := mediaKind(req.Type)
	if err != nil {
		return nil, err
	}
	h, err := s.machine.ConnectedHandle()
	if err != nil {
		return nil, err
	}

	jid := transport.UserJID(req.To)
	upload := transport.MediaUpload{
		Kind:      kind,
		Data:      req.Data,
		Mimetype:  req.Mimetype,
		Caption:   req.Caption,
		FileName:  req.FileName,
		VoiceNote: req.VoiceNote,
	}
	if _, err := h.SendMedia(ctx, jid, upload); err != nil {
		return nil, &SendError{Recipient: jid, Err: err}
	}
	s.logger.Info("media sent", zap.String("to", jid), zap.String("type", req.Type))
	return &Receipt{
		Success:   true,
		To:        jid,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// SendBulk delivers the same body to each recipient in order, pausing
// between sends. delay is the per-job pacing; non-positive falls back to
// the configured default. Individual failures are recorded and the job
// continues; the pause applies after every attempt, failed or not.
func (s *Service) SendBulk(ctx context.Context, recipients []string, body string, delay time.Duration) (*BulkReport, error) {
	if _, err := s.machine.ConnectedHandle(); err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = s.bulkDelay
	}

	report := &BulkReport{
		JobID:   uuid.NewString(),
		Total:   len(recipients),
		Results: make([]BulkEntry, 0, len(recipients)),
	}
	s.logger.Info("bulk job started",
		zap.String("job_id", report.JobID), zap.Int("recipients", len(recipients)))

	for _, to := range recipients {
		entry := BulkEntry{Recipient: to, Status: "sent"}
		if _, err := s.sendText(ctx, transport.UserJID(to), body); err != nil {
			entry.Status = "failed"
			entry.Error = err.Error()
			report.Failed++
			s.logger.Warn("bulk recipient failed",
				zap.String("job_id", report.JobID), zap.String("to", to), zap.Error(err))
		} else {
			report.Sent++
		}
		report.Results = append(report.Results, entry)

		// Pace after every attempt, failed ones included.
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(delay):
		}
	}

	s.logger.Info("bulk job finished",
		zap.String("job_id", report.JobID),
		zap.Int("sent", report.Sent), zap.Int("failed", report.Failed))
	return report, nil
}

func mediaKind(t string) (transport.MediaKind, error) {
	switch t {
	case "image":
		return transport.MediaImage, nil
	case "video":
		return transport.MediaVideo, nil
	case "audio":
		return transport.MediaAudio, nil
	case "document":
		return transport.MediaDocument, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, t)
	}
}
