package middleware

import (
	"net/http"
	"strings"

	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/jwtutil"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context key under which AuthMiddleware stores the resolved user.
const UserKey = "user"

// AuthMiddleware validates the bearer token from the Authorization header
// and resolves it to an existing user. A valid signature is not enough: the
// user encoded in the token must still exist, otherwise the request is
// rejected exactly like an invalid token.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Token is missing"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			// Expiry, tampering and garbage all collapse to the same 401.
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
		}

		var user model.User
		if result := database.GetDB().First(&user, claims.UserID); result.Error != nil {
			log.Warn("Token resolved to a missing user", zap.Uint("user_id", claims.UserID))
			prometheus.RecordAuthError("user_not_found")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
		}

		// An account under a forced password reset can only change its
		// password or log out until the temporary password is replaced.
		if user.MustChangePassword && !passwordChangeExempt(c.Path()) {
			log.Warn("Request blocked pending password change", zap.Uint("user_id", user.ID))
			prometheus.RecordAuthError("password_change_required")
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Password change required"})
		}

		c.Set(UserKey, &user)
		c.Set("user_id", user.ID)

		return next(c)
	}
}

// passwordChangeExempt lists the routes a flagged account may still reach.
func passwordChangeExempt(path string) bool {
	return path == "/api/users/change-password" || path == "/auth/logout"
}

// RequireAdmin rejects any request whose resolved user does not hold the
// admin role. Must run after AuthMiddleware.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get(UserKey).(*model.User)
		if !ok {
			prometheus.RecordAuthError("missing_user_context")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
		}

		if user.Role != model.RoleAdmin {
			logger.FromContext(c).Warn("Admin privileges required",
				zap.Uint("user_id", user.ID),
				zap.String("role", string(user.Role)))
			prometheus.RecordAuthError("forbidden")
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Admin privileges required"})
		}

		return next(c)
	}
}

// CurrentUser returns the user resolved by AuthMiddleware.
func CurrentUser(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(UserKey).(*model.User)
	return user, ok
}
