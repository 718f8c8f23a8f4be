package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
)

// BalanceHandler serves the account balance of the authenticated user.
type BalanceHandler struct {
	service ports.BalanceService
}

func NewBalanceHandler(service ports.BalanceService) *BalanceHandler {
	return &BalanceHandler{service: service}
}

type balanceResponse struct {
	Success  bool          `json:"success" example:"true"`
	Message  string        `json:"message" example:"Balance fetched successfully"`
	Balance  domain.Amount `json:"balance" swaggertype:"number" example:"100000.00"`
	Username string        `json:"username" example:"alice"`
}

// CheckBalance returns the caller's balance.
//
// @Summary      Check balance
// @Tags         bank
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  balanceResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /bank/check-balance [get]
func (h *BalanceHandler) CheckBalance(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	res, err := h.service.CheckBalance(c.Request().Context(), identity)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, balanceResponse{
		Success:  true,
		Message:  "Balance fetched successfully",
		Balance:  res.Balance,
		Username: res.Username,
	})
}
