// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/app/services"
	"github.com/gofiber/fiber/v3"
	"golang.org/x/crypto/bcrypt"
)

const (
	localCarrierID   = "carrier_id"
	localAdminID     = "admin_id"
	localTokenClaims = "token_claims"
	localRequestID   = "request_id"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// bearerToken extracts the token from the Authorization header. The returned
// code is empty on success.
func bearerToken(c fiber.Ctx) (token, code, message string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", "MISSING_AUTHORIZATION_HEADER", "Authorization header is required"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'"
	}
	token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "MISSING_ACCESS_TOKEN", "Access token is required"
	}
	return token, "", ""
}

func (m *AuthMiddleware) validate(c fiber.Ctx) (*services.TokenClaims, error) {
	token, code, message := bearerToken(c)
	if code != "" {
		return nil, unauthorized(c, code, message)
	}

	claims, err := m.tokenService.ValidateToken(token)
	if err != nil {
		if errors.Is(err, services.ErrTokenExpired) {
			return nil, unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
		}
		if errors.Is(err, services.ErrTokenInvalid) {
			return nil, unauthorized(c, "TOKEN_INVALID", "Invalid access token")
		}
		return nil, unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
	}
	return claims, nil
}

func storeClaims(c fiber.Ctx, claims *services.TokenClaims) {
	if claims.IsAdmin() {
		c.Locals(localAdminID, claims.Subject)
	} else {
		c.Locals(localCarrierID, claims.Subject)
	}
	c.Locals(localTokenClaims, claims)

	if requestID := c.Get("X-Request-ID"); requestID != "" {
		c.Locals(localRequestID, requestID)
	}
}

// CarrierAuthenticate requires a valid carrier token
func (m *AuthMiddleware) CarrierAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, err := m.validate(c)
		if claims == nil {
			return err
		}
		if claims.Role != services.RoleCarrier || claims.Subject == "" {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Carrier access required",
				Error:   dto.ErrorDetail{Code: "CARRIER_ACCESS_REQUIRED"},
			})
		}
		storeClaims(c, claims)
		return c.Next()
	}
}

// AdminAuthenticate requires a valid admin token
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, err := m.validate(c)
		if claims == nil {
			return err
		}
		if !claims.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Admin access required",
				Error:   dto.ErrorDetail{Code: "ADMIN_ACCESS_REQUIRED"},
			})
		}
		storeClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuth is a middleware that validates JWT tokens if present, but doesn't require them
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, _ := bearerToken(c)
		if code != "" {
			return c.Next()
		}
		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			return c.Next()
		}
		storeClaims(c, claims)
		return c.Next()
	}
}

// APIKeyAuth guards machine-to-machine endpoints with a shared key checked
// against a bcrypt hash
func APIKeyAuth(header, keyHash string) fiber.Handler {
	hash := []byte(keyHash)
	return func(c fiber.Ctx) error {
		key := c.Get(header)
		if key == "" {
			return unauthorized(c, "MISSING_API_KEY", "API key is required")
		}
		if len(hash) == 0 || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
			return unauthorized(c, "INVALID_API_KEY", "Invalid API key")
		}
		return c.Next()
	}
}

// GetCarrierIDFromContext extracts the authenticated carrier id
func GetCarrierIDFromContext(c fiber.Ctx) (string, bool) {
	carrierID, ok := c.Locals(localCarrierID).(string)
	return carrierID, ok && carrierID != ""
}

// GetAdminIDFromContext extracts admin ID from the request context
func GetAdminIDFromContext(c fiber.Ctx) (string, bool) {
	adminID, ok := c.Locals(localAdminID).(string)
	return adminID, ok && adminID != ""
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(localTokenClaims).(*services.TokenClaims)
	return claims, ok
}
