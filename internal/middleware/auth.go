package middleware

import (
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/config"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/identity"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected accepts HS256 staff tokens signed with JWT_SECRET. A token must
// name the member in "sub"; every report action is attributed to it.
func JWTProtected(cfg *config.Config) fiber.Handler {
	unauthorized := func(c *fiber.Ctx, message string) error {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error:   true,
			Message: message,
		})
	}

	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		SuccessHandler: func(c *fiber.Ctx) error {
			if _, err := identity.GetUserID(c); err != nil {
				return unauthorized(c, "Unauthorized: token has no member ID")
			}
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c, "Unauthorized: invalid or expired token")
		},
	})
}
