package handlers

import (
	"pong-platform/game"
	"pong-platform/middleware"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler exposes the session control API consumed by the
// upstream HTTP layer. All mutation goes through the registry, which
// is the single owner of live sessions.
type SessionHandler struct {
	Registry *game.Registry
}

func SetupSessionRoutes(app *fiber.App, registry *game.Registry) {
	h := &SessionHandler{Registry: registry}

	secured := app.Group("/sessions", middleware.PrincipalMiddleware())
	secured.Post("/", h.CreateSession)
	secured.Get("/:id", h.GetState)
	secured.Post("/:id/start", h.StartSession)
	secured.Post("/:id/stop", h.StopSession)
	secured.Patch("/:id/settings", h.UpdateSettings)
	secured.Delete("/:id", h.DeleteSession)
}

type createSessionRequest struct {
	Mode         string `json:"mode"`
	SessionID    string `json:"session_id,omitempty"`    // externally supplied, e.g. from a tournament match
	TournamentID string `json:"tournament_id,omitempty"` // required for tournament mode
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "error": "malformed body"})
	}

	mode := game.Mode(req.Mode)
	switch mode {
	case game.ModeLocal, game.ModeRemote:
	case game.ModeTournament:
		if req.TournamentID == "" || req.SessionID == "" {
			return c.Status(400).JSON(fiber.Map{
				"status": "error",
				"error":  "tournament mode requires tournament_id and session_id",
			})
		}
	default:
		return c.Status(400).JSON(fiber.Map{"status": "error", "error": "mode must be local, remote or tournament"})
	}

	// Concurrent creates for the same id converge on one session; the
	// caller cannot tell whether it was first.
	s := h.Registry.Create(mode, req.SessionID, req.TournamentID)
	return c.Status(201).JSON(fiber.Map{
		"status":     "ok",
		"session_id": s.ID,
		"state":      s.Snapshot(),
	})
}

func (h *SessionHandler) GetState(c *fiber.Ctx) error {
	s, ok := h.Registry.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	return c.JSON(fiber.Map{"status": "ok", "state": s.Snapshot()})
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	s, ok := h.Registry.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	if err := s.Start(); err != nil {
		return c.Status(409).JSON(fiber.Map{"status": "error", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "message": "session started", "state": s.Snapshot()})
}

func (h *SessionHandler) StopSession(c *fiber.Ctx) error {
	s, ok := h.Registry.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	s.Stop()
	return c.JSON(fiber.Map{"status": "ok", "message": "session stopped", "state": s.Snapshot()})
}

func (h *SessionHandler) UpdateSettings(c *fiber.Ctx) error {
	s, ok := h.Registry.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var cfg game.Settings
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "error": "malformed body"})
	}
	if err := s.ApplySettings(cfg); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "state": s.Snapshot()})
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	h.Registry.Delete(c.Params("id"))
	return c.JSON(fiber.Map{"status": "ok", "message": "session deleted"})
}

func sessionNotFound(c *fiber.Ctx) error {
	return c.Status(404).JSON(fiber.Map{"status": "error", "error": "session not found"})
}
