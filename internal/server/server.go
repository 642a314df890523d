package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"streamcast/internal/config"
	"streamcast/internal/livestream"
	"streamcast/internal/metadata"
)

type FiberServer struct {
	*fiber.App
	cfg       *config.Config
	store     metadata.Service
	publisher livestream.ArtifactPublisher
	manager   *livestream.Manager
}

func New(cfg *config.Config, store metadata.Service, publisher livestream.ArtifactPublisher) *FiberServer {
	app := fiber.New(fiber.Config{
		ServerHeader: "streamcast",
		AppName:      "streamcast",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	server := &FiberServer{
		App:       app,
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		manager:   livestream.NewManager(),
	}
	server.applyMiddleware()

	return server
}

func (s *FiberServer) applyMiddleware() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(s.cfg.Security.CORSOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.App.Use(limiter.New(limiter.Config{
		Max:        s.cfg.Security.RateLimit,
		Expiration: s.cfg.Security.RateWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // limit by IP address
		},
	}))
}
