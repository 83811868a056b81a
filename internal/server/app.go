// Package server exposes the engine over HTTP/JSON. Every mutating
// operation maps onto one idempotent service call; the handlers only
// parse, delegate, and translate errors to status codes.
package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"PoolLedger/internal/cap"
	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
	"PoolLedger/internal/query"
	"PoolLedger/internal/settle"
)

// Deps carries the wired services the HTTP surface needs.
type Deps struct {
	Settle  *settle.Service
	Cap     *cap.Service
	Query   *query.Service
	Store   *persistence.Store
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
}

// Server is the fiber application.
type Server struct {
	app  *fiber.App
	deps Deps
	log  zerolog.Logger
}

func New(deps Deps) *Server {
	s := &Server{
		deps: deps,
		log:  observability.NewLogger("http"),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Get("/readyz", func(c *fiber.Ctx) error {
		if !deps.Health.IsReady() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	api := app.Group("/api", APIKeyGuard(), s.observe)

	api.Post("/cap/preview", s.handleCapPreview)
	api.Post("/cap/save", s.handleCapSave)
	api.Get("/cap", s.handleCapCurrent)
	api.Post("/cap/recalc", s.handleCapRecalc)
	api.Post("/cap/recalc-all", s.handleCapRecalcAll)

	api.Post("/settle", s.handleSettle)
	api.Post("/keep", s.handleKeep)
	api.Get("/settled", s.handleIsSettled)

	api.Get("/summary", s.handleSummary)
	api.Get("/settle-view", s.handleSettleView)
	api.Get("/keep-view", s.handleKeepView)

	api.Post("/data/erase", s.handleErase)

	api.Get("/time-window/latest", s.handleLatestWindow)
	api.Post("/time-window", s.handleCreateWindow)
	api.Get("/prizes", s.handleGetPrizes)
	api.Put("/prizes", s.handlePutPrizes)

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until the listener closes.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// observe records request count and latency per route.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	route := c.Route().Path
	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}
	s.deps.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	s.deps.Metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	return err
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoWindow):
		status = fiber.StatusNotFound
	}
	if status == fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
