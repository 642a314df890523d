package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"streamcast/internal/livestream"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/health", s.healthHandler)

	// Locally produced artifacts, useful for LAN playback and debugging.
	// Viewers normally play the object-storage URL from the metadata API.
	s.App.Static("/hls", s.cfg.HLS.OutputDir)

	streamHandler := livestream.NewStreamHandler(s.store)
	s.App.Get("/api/stream/:streamId", streamHandler.GetStream)

	// Producer ingest: a websocket carrying raw media chunks, one connection
	// per stream identifier.
	ingestHandler := livestream.NewIngestHandler(s.manager, s.store, s.publisher, s.cfg.HLS)
	s.App.Use("/ingest", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ingest/:streamId", websocket.New(ingestHandler.ServeWS))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	return c.JSON(s.store.Health())
}
