package middleware

import (
	"marpelink-escrow-server/internal/config"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/utils"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware creates a middleware for JWT authentication.
// The token's wallet address becomes the caller of every ledger operation in the request.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set("accountID", claims.AccountID)
		c.Set("address", claims.Address)
		c.Set("userRole", claims.Role)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetAddressFromContext returns the authenticated wallet address.
func GetAddressFromContext(c *gin.Context) (string, bool) {
	address, exists := c.Get("address")
	if !exists {
		return "", false
	}
	s, ok := address.(string)
	return s, ok && s != ""
}

// GetAccountIDFromContext returns the authenticated account id.
func GetAccountIDFromContext(c *gin.Context) (string, bool) {
	id, exists := c.Get("accountID")
	if !exists {
		return "", false
	}
	s, ok := id.(string)
	return s, ok
}

// GetUserRoleFromContext returns the authenticated role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get("userRole")
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}
