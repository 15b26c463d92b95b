// Package task implements per-user task tracking: creation, listing,
// updates, completion, and due-date queries.
package task

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTaskExists   = errors.New("task: title already used by this owner")
	ErrTaskNotFound = errors.New("task: not found")
	ErrInvalidInput = errors.New("task: invalid input")
)

// Task is a single tracked item. Titles are unique per owner; DueDate
// carries date precision only (UTC midnight).
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	DueDate     time.Time
	Done        bool
	CreatedAt   time.Time
}

// Repository persists tasks. Every operation is scoped to an owner so a
// caller can never read or mutate another user's tasks.
type Repository interface {
	Create(ctx context.Context, t Task) (Task, error)
	Get(ctx context.Context, ownerID, id string) (Task, error)
	GetByTitle(ctx context.Context, ownerID, title string) (Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	Delete(ctx context.Context, ownerID, id string) error
	Complete(ctx context.Context, ownerID, id string) (Task, error)
	ListCompleted(ctx context.Context, ownerID string) ([]Task, error)
	ListDueOn(ctx context.Context, ownerID string, date time.Time) ([]Task, error)
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func contextError(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
