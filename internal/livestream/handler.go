package livestream

import (
	"errors"
	"log"
	"path/filepath"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"streamcast/internal/config"
	"streamcast/internal/metadata"
)

// Stream identifiers become directory names and storage key segments, so
// they are restricted to a filesystem-safe alphabet.
var streamIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// StreamHandler serves the viewer-facing metadata API.
type StreamHandler struct {
	store metadata.Service
}

func NewStreamHandler(store metadata.Service) *StreamHandler {
	return &StreamHandler{store: store}
}

// GetStream resolves a stream identifier to its playable metadata record.
func (h *StreamHandler) GetStream(c *fiber.Ctx) error {
	streamID := c.Params("streamId")

	meta, err := h.store.Get(c.Context(), streamID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotLive) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Stream not live",
			})
		}
		log.Printf("StreamHandler: metadata lookup for %s failed: %v", streamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.JSON(meta)
}

// IngestHandler accepts producer websocket connections and hands each one to
// a new Session. It holds no per-stream state itself; the Manager enforces
// single ownership of an identifier.
type IngestHandler struct {
	manager   *Manager
	store     metadata.Service
	publisher ArtifactPublisher
	cfg       config.HLSConfig
}

func NewIngestHandler(manager *Manager, store metadata.Service, publisher ArtifactPublisher, cfg config.HLSConfig) *IngestHandler {
	return &IngestHandler{
		manager:   manager,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ServeWS runs for the lifetime of one producer connection.
func (h *IngestHandler) ServeWS(c *websocket.Conn) {
	streamID := c.Params("streamId")
	if !streamIDPattern.MatchString(streamID) {
		log.Printf("Ingest: rejecting invalid stream id %q", streamID)
		c.Close()
		return
	}

	outputDir := filepath.Join(h.cfg.OutputDir, streamID)
	transcoder := NewFFmpegTranscoder(h.cfg.FFmpegPath, streamID)
	session := NewSession(streamID, outputDir, transcoder, h.store, h.publisher, h.cfg.DrainGrace)

	if err := h.manager.Acquire(streamID, session); err != nil {
		log.Printf("Ingest: %v", err)
		c.Close()
		return
	}
	defer h.manager.Release(streamID, session)

	log.Printf("Ingest: producer connected for stream %s", streamID)
	session.Run(c)
	log.Printf("Ingest: producer disconnected for stream %s", streamID)
}
