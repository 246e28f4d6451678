package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/xsist-conector/internal/application/dto"
	"github.com/jhoicas/xsist-conector/pkg/jwt"
)

// LocalClientID key en c.Locals del cliente autenticado.
const LocalClientID = "client_id"

// AuthMiddleware valida el Bearer Token JWT y deja el client_id en c.Locals.
// Con secret vacío la API local queda abierta (solo escucha en loopback).
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtSecret == "" {
			return c.Next()
		}
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		clientID, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalClientID, clientID)
		return c.Next()
	}
}

// GetClientID devuelve el client_id del contexto (después del middleware de auth).
func GetClientID(c *fiber.Ctx) string {
	v := c.Locals(LocalClientID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
