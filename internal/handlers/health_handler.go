package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/store"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	store  store.Store
	driver string
}

func NewHealthHandler(st store.Store, driver string) *HealthHandler {
	return &HealthHandler{store: st, driver: driver}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status, storeStatus := "ok", "ok"
	code := fiber.StatusOK
	if err := h.store.Ping(c.UserContext()); err != nil {
		status, storeStatus = "degraded", "unhealthy: "+err.Error()
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(dto.HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		StoreDriver: h.driver,
		Store:       storeStatus,
	})
}
