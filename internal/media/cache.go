// Package media downloads message attachments on demand and caches the
// decrypted bytes on disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/pipeline"
	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/internal/store"
)

var (
	// ErrMediaNotFound means no message with the given id is retained.
	ErrMediaNotFound = errors.New("message not found")
	// ErrNoMediaContent means the message exists but carries no media.
	ErrNoMediaContent = errors.New("message has no media content")
	// ErrEmptyMedia means the download produced zero bytes.
	ErrEmptyMedia = errors.New("downloaded media is empty")
)

// File describes a cached attachment on disk.
type File struct {
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	Size     int    `json:"size"`
	Mimetype string `json:"mimetype"`
}

// extensions maps the mimetypes the network commonly produces to file
// extensions. Anything else falls back to the mimetype subtype.
var extensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/3gpp":      "3gp",
	"audio/ogg":       "ogg",
	"audio/mpeg":      "mp3",
	"audio/mp4":       "m4a",
	"audio/wav":       "wav",
	"application/pdf": "pdf",
}

// Cache resolves message attachments through the live session and stores
// them under a single directory, keyed by message id.
type Cache struct {
	log     *store.Log
	machine *session.Machine
	dir     string
	logger  *zap.Logger
}

// NewCache creates a cache writing into dir.
func NewCache(log *store.Log, m *session.Machine, dir string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{log: log, machine: m, dir: dir, logger: logger}
}

// Resolve downloads the attachment of the identified message, writes it to
// the cache directory and returns its location. The raw payload must still
// be retained; evicted messages cannot be resolved.
func (c *Cache) Resolve(ctx context.Context, messageID string) (*File, error) {
	raw, ok := c.log.Raw(messageID)
	if !ok {
		return nil, ErrMediaNotFound
	}
	info := pipeline.MediaDescriptor(raw.Payload)
	if info == nil {
		return nil, ErrNoMediaContent
	}

	h, err := c.machine.ConnectedHandle()
	if err != nil {
		return nil, err
	}
	data, err := h.ResolveMedia(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("download media for %s: %w", messageID, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyMedia
	}

	name := fileName(messageID, info)
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("write media file: %w", err)
	}

	c.logger.Info("media cached",
		zap.String("message_id", messageID),
		zap.String("file", name), zap.Int("bytes", len(data)))

	return &File{
		Path:     path,
		FileName: name,
		Size:     len(data),
		Mimetype: info.Mimetype,
	}, nil
}

// fileName picks the on-disk name: the declared document name when present,
// otherwise the message id plus a mimetype-derived extension.
func fileName(messageID string, info *store.MediaInfo) string {
	ext := extensionFor(info.Mimetype)
	if info.FileName != "" {
		if strings.Contains(info.FileName, ".") {
			return info.FileName
		}
		return info.FileName + "." + ext
	}
	return messageID + "." + ext
}

// extensionFor maps a mimetype to an extension: fixed table first, then the
// subtype, then a generic binary suffix. Parameters after ";" are ignored.
func extensionFor(mimetype string) string {
	mt := mimetype
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.TrimSpace(mt)
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	if i := strings.Index(mt, "/"); i >= 0 && i+1 < len(mt) {
		return mt[i+1:]
	}
	return "bin"
}
