package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const userContextKey = "taskdo.current-user"

// Middleware resolves the current user from the Authorization header and
// stores it on the request context. Requests without a valid credential
// are rejected with 401 before the handler runs.
func Middleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			user, err := svc.ResolveCurrentUser(c.Request().Context(), header)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing credentials")
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the user stored by Middleware, if any.
func CurrentUser(c echo.Context) (User, bool) {
	user, ok := c.Get(userContextKey).(User)
	return user, ok
}
