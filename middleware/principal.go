package middleware

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Principal is the caller identity injected by the gateway. It is
// constructed once here at the boundary and passed into handlers;
// business logic never re-derives identity from headers.
type Principal struct {
	ID       int64
	Username string
}

// PrincipalKey is the fiber Locals key the identity is stored under,
// exported so the websocket handler can read it after the upgrade.
const PrincipalKey = "principal"

// PrincipalMiddleware extracts the gateway-verified identity headers.
// This service trusts them verbatim — authentication happened upstream.
func PrincipalMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := c.Get("X-User-ID")
		username := c.Get("X-User-Name")
		if idStr == "" {
			log.Printf("missing X-User-ID on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "missing identity — request must come through the gateway",
			})
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "malformed X-User-ID",
			})
		}
		c.Locals(PrincipalKey, Principal{ID: id, Username: username})
		return c.Next()
	}
}

// PrincipalFrom returns the identity stored by PrincipalMiddleware.
// The zero Principal means the route was not secured.
func PrincipalFrom(c *fiber.Ctx) Principal {
	p, _ := c.Locals(PrincipalKey).(Principal)
	return p
}
