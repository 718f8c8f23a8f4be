package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
)

// TokenCookie is the name of the session cookie set at login.
const TokenCookie = "token"

type AuthHandler struct {
	authService  ports.AuthService
	secureCookie bool
}

// NewAuthHandler builds the auth endpoints. secureCookie marks the session
// cookie Secure and should be set outside local development.
func NewAuthHandler(authService ports.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

type registerRequest struct {
	Username string `json:"username" maxLength:"50" example:"alice"`
	Password string `json:"password" example:"Secr3t!"`
	Email    string `json:"email" validate:"omitempty,email" maxLength:"100" example:"alice@example.com"`
	Phone    string `json:"phone" maxLength:"20" example:"+1-555-0100"`
}

type loginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"Secr3t!"`
}

type userSummary struct {
	Username string `json:"username" example:"alice"`
	Role     string `json:"role" example:"Customer"`
}

type loginResponse struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message" example:"Login successful"`
	Token   string      `json:"token"`
	User    userSummary `json:"user"`
}

// Register creates a new customer account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  response
// @Failure      400   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewValidationError(err.Error())
	}

	_, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, ok("User registered successfully. Please login."))
}

// Login authenticates a user, returns a JWT and sets it as an http-only cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}

	res, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   res.ExpiresIn,
		Expires:  time.Now().Add(time.Duration(res.ExpiresIn) * time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	return c.JSON(http.StatusOK, loginResponse{
		Success: true,
		Message: "Login successful",
		Token:   res.Token,
		User:    userSummary{Username: res.User.Username, Role: res.User.Role},
	})
}
