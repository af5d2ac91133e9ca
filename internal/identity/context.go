// Package identity reads the acting member from a request authenticated by
// the JWT middleware. Tokens are issued by the staff dashboard; "sub" holds
// the Discord user ID and "roles" the member's Discord role IDs.
package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoIdentity = errors.New("no authenticated member in request")

func claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrNoIdentity
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return mc, nil
}

// GetUserID returns the "sub" claim.
func GetUserID(c *fiber.Ctx) (string, error) {
	mc, err := claims(c)
	if err != nil {
		return "", err
	}
	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}

// GetRoles returns the string entries of the "roles" claim.
func GetRoles(c *fiber.Ctx) []string {
	mc, err := claims(c)
	if err != nil {
		return nil
	}
	raw, ok := mc["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

func HasRole(c *fiber.Ctx, role string) bool {
	if role == "" {
		return false
	}
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}
