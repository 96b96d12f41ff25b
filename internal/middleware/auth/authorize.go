package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Skotchmaster/owner_shop/internal/logging"
	"github.com/Skotchmaster/owner_shop/internal/tokens"
)

const (
	CtxOwnerID = "owner_id"
	CtxRole    = "role"
)

type Verifier interface {
	Verify(token string) (*tokens.Claims, error)
}

type Authorizer struct {
	Tokens Verifier
}

func NewAuthorizer(v Verifier) *Authorizer {
	return &Authorizer{Tokens: v}
}

// Authorize admits a request only when it carries a valid bearer token whose
// role equals requiredRole.
func (a *Authorizer) Authorize(requiredRole string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With(zap.String("middleware", "auth.authorize"))

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				l.Warn("authorize_failed", zap.Int("status", 401), zap.String("reason", "no authorization header"))
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header missing")
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				l.Warn("authorize_failed", zap.Int("status", 401), zap.String("reason", "malformed authorization header"))
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := a.Tokens.Verify(parts[1])
			if err != nil {
				var te *tokens.TokenError
				reason := "verify failed"
				if errors.As(err, &te) {
					reason = string(te.Reason)
				}
				l.Warn("authorize_failed", zap.Int("status", 401), zap.String("reason", reason), zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			if claims.Role != requiredRole {
				l.Warn("authorize_failed", zap.Int("status", 403), zap.String("reason", "role mismatch"),
					zap.String("role", claims.Role), zap.String("required", requiredRole))
				return echo.NewHTTPError(http.StatusForbidden, "Access denied")
			}

			c.Set(CtxOwnerID, claims.OwnerID)
			c.Set(CtxRole, claims.Role)
			scoped := logging.FromContext(ctx).With(zap.String("owner_id", claims.OwnerID))
			c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, scoped)))

			return next(c)
		}
	}
}

// PrincipalFrom returns the identity stored by Authorize.
func PrincipalFrom(c echo.Context) (tokens.Principal, bool) {
	id, _ := c.Get(CtxOwnerID).(string)
	role, _ := c.Get(CtxRole).(string)
	if id == "" {
		return tokens.Principal{}, false
	}
	return tokens.Principal{ID: id, Role: role}, true
}
