package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/config"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/identity"
	"github.com/gofiber/fiber/v2"
)

// SupportRequired lets a request through when the member holds the support
// role in their token or is listed in SUPPORT_USER_IDS.
func SupportRequired(cfg *config.Config) fiber.Handler {
	supportUserIDs := parseCSV(cfg.SupportUserIDs)

	return func(c *fiber.Ctx) error {
		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if identity.HasRole(c, cfg.SupportRoleID) || contains(supportUserIDs, userID) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Support role required",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
