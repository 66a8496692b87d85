package server

import (
	"log"

	"leadgen-sync/internal/bootstrap"
	"leadgen-sync/internal/config"
	"leadgen-sync/internal/pkg/serverutils"
	"leadgen-sync/internal/remote"
	"leadgen-sync/internal/service"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sony/gobreaker"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

// errorMappings gives domain errors their HTTP status.
var errorMappings = []serverutils.ErrorMapping{
	{Target: service.ErrNoSession, Status: fiber.StatusUnauthorized},
	{Target: service.ErrUnknownKind, Status: fiber.StatusNotFound},
	{Target: service.ErrUnknownItem, Status: fiber.StatusNotFound},
	{Target: gobreaker.ErrOpenState, Status: fiber.StatusServiceUnavailable},
	{Target: gobreaker.ErrTooManyRequests, Status: fiber.StatusServiceUnavailable},
	{Target: remote.ErrRemote, Status: fiber.StatusBadGateway},
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(errorMappings...))

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.SessionController.RegisterRoutes(api)
	c.LeadsController.RegisterRoutes(api)
	c.PostsController.RegisterRoutes(api)
	c.KarmaController.RegisterRoutes(api)
	c.NoticeController.RegisterRoutes(api)
}
