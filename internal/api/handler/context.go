package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// ctxIdentity extracts the identity injected by the access guard. A missing
// or empty identity means the route was mounted without the guard.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	identity, _ := c.Get("identity").(domain.Identity)
	if identity.Username == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return identity, nil
}
