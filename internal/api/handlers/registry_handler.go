package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/policy-navigator/backend/internal/registry"
)

type RegistryHandler struct {
	client *registry.Client
}

func NewRegistryHandler(client *registry.Client) *RegistryHandler {
	return &RegistryHandler{client: client}
}

// RecentRules lists rules published in the trailing window. Fallback data is
// flagged so clients can distinguish live registry results.
func (h *RegistryHandler) RecentRules(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)

	result := h.client.RecentRules(c.Context(), days)

	return c.JSON(fiber.Map{
		"days":  days,
		"live":  result.Available(),
		"rules": result.Value,
	})
}
