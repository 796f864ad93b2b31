package handlers

import (
	"errors"

	"pong-platform/middleware"
	"pong-platform/services"

	"github.com/gofiber/fiber/v2"
)

// TournamentHandler maps the tournament API onto the state machine in
// services. Expected business conditions (full, not found, nothing to
// play) come back as structured statuses, never a bare 500.
type TournamentHandler struct {
	Tournaments *services.TournamentService
	Players     *services.PlayerService
}

func SetupTournamentRoutes(app *fiber.App, tournaments *services.TournamentService, players *services.PlayerService) {
	h := &TournamentHandler{Tournaments: tournaments, Players: players}

	secured := app.Group("/", middleware.PrincipalMiddleware())
	secured.Post("/tournaments", h.Create)
	secured.Get("/tournaments", h.List)
	secured.Get("/tournaments/:id", h.Show)
	secured.Post("/tournaments/:id/join", h.Join)
	secured.Get("/tournaments/:id/match-to-play", h.MatchToPlay)
	secured.Get("/players/:id", h.GetPlayer)
}

func (h *TournamentHandler) Create(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	t, err := h.Tournaments.Create(p.ID)
	if err != nil {
		return tournamentError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"status": "ok", "tournament": t})
}

func (h *TournamentHandler) List(c *fiber.Ctx) error {
	tournaments, err := h.Tournaments.ListOpen()
	if err != nil {
		return tournamentError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "tournaments": tournaments})
}

func (h *TournamentHandler) Show(c *fiber.Ctx) error {
	t, roster, err := h.Tournaments.Show(c.Params("id"))
	if err != nil {
		return tournamentError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "tournament": t, "roster": roster})
}

func (h *TournamentHandler) Join(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	started, err := h.Tournaments.Join(p.ID, c.Params("id"))
	if err != nil {
		return tournamentError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "message": "joined", "started": started})
}

func (h *TournamentHandler) MatchToPlay(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	m, err := h.Tournaments.GetMatchToPlay(c.Params("id"), p.ID)
	if err != nil {
		return tournamentError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "match": m})
}

func (h *TournamentHandler) GetPlayer(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(400).JSON(fiber.Map{"status": "error", "error": "malformed player id"})
	}
	player, err := h.Players.Get(int64(id))
	if err != nil {
		return tournamentError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "player": player})
}

// tournamentError maps the service error taxonomy onto HTTP statuses.
func tournamentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNoMatchToPlay):
		return c.Status(404).JSON(fiber.Map{"status": "error", "error": "no match to play"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"status": "error", "error": "not found"})
	case errors.Is(err, services.ErrTournamentFull):
		return c.Status(409).JSON(fiber.Map{"status": "error", "error": "tournament full"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(409).JSON(fiber.Map{"status": "error", "error": "conflict"})
	case errors.Is(err, services.ErrValidation):
		return c.Status(400).JSON(fiber.Map{"status": "error", "error": "invalid input"})
	default:
		return c.Status(500).JSON(fiber.Map{"status": "error", "error": "internal error"})
	}
}
