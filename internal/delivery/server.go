package delivery

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"supportchat-ws/internal/auth"
	"supportchat-ws/internal/config"
	"supportchat-ws/internal/gateway"
	"supportchat-ws/internal/hub"
	redisstore "supportchat-ws/internal/infrastructure/redis"
)

// Server is the HTTP/WebSocket front of the realtime gateway.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	verifier auth.Verifier
	gw       gateway.Gateway
	presence *redisstore.Store
	log      *zap.Logger
	app      *fiber.App
}

func NewServer(cfg *config.Config, h *hub.Hub, verifier auth.Verifier, gw gateway.Gateway, presence *redisstore.Store, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      h,
		verifier: verifier,
		gw:       gw,
		presence: presence,
		log:      log,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Support Chat Realtime Gateway",
		DisableStartupMessage: cfg.IsProduction(),
	})
	app.Use(recover.New())

	corsConfig := cors.Config{
		AllowMethods:     "GET,POST,HEAD,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With",
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           86400,
	}
	if cfg.IsProduction() {
		corsConfig.AllowOrigins = cfg.CORSOrigins()
	} else {
		corsConfig.AllowOrigins = "*"
		// Credentials must never be combined with the wildcard origin.
		corsConfig.AllowCredentials = false
	}
	app.Use(cors.New(corsConfig))

	app.Get("/health", s.handleHealth)
	app.Get("/stats", s.authRequired, s.handleStats)

	api := app.Group("/api")
	api.Get("/conversations/:conversation_id/presence", s.authRequired, s.handleConversationPresence)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleSocket))

	s.app = app
	return s
}

func (s *Server) Listen() error {
	s.log.Info("realtime gateway listening", zap.String("port", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
