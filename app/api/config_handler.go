package api

import (
	"github.com/gofiber/fiber/v2"

	"docrag/types"
)

type ConfigHandler struct {
	cfg types.Config
}

func NewConfigHandler(cfg types.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

func (h *ConfigHandler) HandleConfig(c *fiber.Ctx) error {
	return c.JSON(h.cfg)
}
