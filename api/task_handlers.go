package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/taskdo/task"
)

const dueDateLayout = "2006-01-02"

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

type taskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Done        bool   `json:"done"`
}

func (r taskRequest) toInput() (task.Input, error) {
	in := task.Input{Title: r.Title, Description: r.Description}
	if r.DueDate != "" {
		due, err := time.Parse(dueDateLayout, r.DueDate)
		if err != nil {
			return task.Input{}, echo.NewHTTPError(http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		}
		in.DueDate = due
	}
	return in, nil
}

func renderTask(t task.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Done:        t.Done,
	}
	if !t.DueDate.IsZero() {
		resp.DueDate = t.DueDate.Format(dueDateLayout)
	}
	return resp
}

func renderTasks(tasks []task.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, renderTask(t))
	}
	return out
}

func (h *Handler) createTask(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}

	created, err := h.tasks.Create(c.Request().Context(), user.ID, in)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, renderTask(created))
}

func (h *Handler) listTasks(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tasks, err := h.tasks.List(c.Request().Context(), user.ID)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, renderTasks(tasks))
}

func (h *Handler) updateTask(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}

	updated, err := h.tasks.Update(c.Request().Context(), user.ID, c.Param("id"), in)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, renderTask(updated))
}

func (h *Handler) deleteTask(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Task deleted"})
}

func (h *Handler) completeTask(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	done, err := h.tasks.Complete(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, renderTask(done))
}

func (h *Handler) listCompletedTasks(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tasks, err := h.tasks.ListCompleted(c.Request().Context(), user.ID)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, renderTasks(tasks))
}

func (h *Handler) listDueToday(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tasks, err := h.tasks.DueToday(c.Request().Context(), user.ID)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, renderTasks(tasks))
}
