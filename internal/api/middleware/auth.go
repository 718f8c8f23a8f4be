package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
	"github.com/kodbank/banking-api/internal/pkg/metrics"
	"github.com/kodbank/banking-api/internal/pkg/token"
)

const tokenCookie = "token"

// tokenSource pulls a raw token from one place in the request; "" means absent.
type tokenSource func(c echo.Context) string

// tokenSources are tried in order; the first non-empty token wins.
var tokenSources = []tokenSource{fromCookie, fromBearer}

func fromCookie(c echo.Context) string {
	cookie, err := c.Cookie(tokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func fromBearer(c echo.Context) string {
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func extractToken(c echo.Context) string {
	for _, source := range tokenSources {
		if tkn := source(c); tkn != "" {
			return tkn
		}
	}
	return ""
}

// AccessGuard validates the session token and injects the caller's identity
// into the context under "identity".
//
// sessions is optional. When non-nil, each request also confirms the
// session record is still live.
func AccessGuard(tokens *token.Manager, sessions ports.SessionVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c)
			if raw == "" {
				metrics.GuardRejectionsTotal.WithLabelValues("missing_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				metrics.GuardRejectionsTotal.WithLabelValues("invalid_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			if sessions != nil {
				if err := sessions.Verify(c.Request().Context(), claims.ID); err != nil {
					if errors.Is(err, domain.ErrUnauthorized) {
						metrics.GuardRejectionsTotal.WithLabelValues("session_revoked").Inc()
						return echo.NewHTTPError(http.StatusUnauthorized, "Session expired or revoked")
					}
					return fmt.Errorf("verify session: %w", err)
				}
			}

			c.Set("identity", domain.Identity{
				Username:  claims.Username,
				Role:      claims.Role,
				SessionID: claims.ID,
			})

			return next(c)
		}
	}
}
