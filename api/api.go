// Package api exposes the HTTP surface: registration, confirmation,
// login, and the authenticated task endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/taskdo/auth"
	"github.com/adeilh/taskdo/task"
)

// Handler wires the auth and task services to echo routes.
type Handler struct {
	auth  *auth.Service
	tasks *task.Service
}

func NewHandler(authSvc *auth.Service, taskSvc *task.Service) *Handler {
	return &Handler{auth: authSvc, tasks: taskSvc}
}

// Register installs every route on e. Task endpoints sit behind the
// bearer-auth middleware.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/register", h.register)
	e.GET("/confirmation/:token", h.confirm)
	e.POST("/login", h.login)

	user := e.Group("/user", auth.Middleware(h.auth))
	user.POST("/task/", h.createTask)
	user.GET("/tasks/", h.listTasks)
	user.PUT("/task/:id", h.updateTask)
	user.DELETE("/task/:id", h.deleteTask)
	user.PUT("/complete-task/:id", h.completeTask)
	user.GET("/complete-tasks/", h.listCompletedTasks)
	user.GET("/due-today/", h.listDueToday)
}

// translateError maps service sentinels onto the HTTP statuses clients
// already depend on: 400 for registration and confirmation failures,
// 401 for credential failures, 404 for missing tasks.
func translateError(err error) error {
	switch {
	case errors.Is(err, auth.ErrAlreadyRegistered):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrLinkInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid confirmation link")
	case errors.Is(err, auth.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusBadRequest, "Confirmation link expired")
	case errors.Is(err, auth.ErrAlreadyConfirmed):
		return echo.NewHTTPError(http.StatusBadRequest, "Account already confirmed")
	case errors.Is(err, auth.ErrNoSuchUser), errors.Is(err, auth.ErrBadCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, auth.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing credentials")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, task.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	case errors.Is(err, task.ErrTaskExists):
		return echo.NewHTTPError(http.StatusBadRequest, "Task title already used")
	case errors.Is(err, task.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	default:
		return err
	}
}

func currentUser(c echo.Context) (auth.User, error) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return auth.User{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing credentials")
	}
	return user, nil
}
