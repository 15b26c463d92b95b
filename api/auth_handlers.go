package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/taskdo/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	_, link, err := h.auth.Register(c.Request().Context(), req.Email, req.Name, req.Password)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Registration successful, please confirm your email",
		"link":    link,
	})
}

func (h *Handler) confirm(c echo.Context) error {
	user, err := h.auth.ConfirmRegistration(c.Request().Context(), c.Param("token"))
	if err != nil {
		// Every confirmation failure is a 400, including a valid token
		// whose email matches no user; 401 is reserved for login.
		if errors.Is(err, auth.ErrNoSuchUser) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid confirmation link")
		}
		return translateError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Account confirmed for " + user.Email,
	})
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return translateError(err)
	}
	// Unconfirmed accounts get a fresh confirmation link instead of a
	// session token.
	if res.Token == nil {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Please confirm your email before logging in",
			"link":    res.ConfirmationLink,
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": res.Token.AccessToken,
		"token_type":   res.Token.TokenType,
	})
}
