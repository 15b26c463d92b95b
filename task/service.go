package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Input carries the caller-editable fields of a task.
type Input struct {
	Title       string
	Description string
	DueDate     time.Time
}

// Service enforces per-owner task rules over a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNowFunc overrides the clock, for deterministic due-date tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new task for the owner. Titles are unique per owner.
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (Task, error) {
	if ownerID == "" || in.Title == "" {
		return Task{}, ErrInvalidInput
	}
	if _, err := s.repo.GetByTitle(ctx, ownerID, in.Title); err == nil {
		return Task{}, ErrTaskExists
	} else if !errors.Is(err, ErrTaskNotFound) {
		return Task{}, err
	}
	return s.repo.Create(ctx, Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     DateOnly(in.DueDate),
		CreatedAt:   s.now(),
	})
}

// Get returns one of the owner's tasks.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Task, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// List returns every task owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID string) ([]Task, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Update replaces the editable fields of an existing task. A title
// change that collides with another of the owner's tasks is rejected.
func (s *Service) Update(ctx context.Context, ownerID, id string, in Input) (Task, error) {
	if in.Title == "" {
		return Task{}, ErrInvalidInput
	}
	existing, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return Task{}, err
	}
	if in.Title != existing.Title {
		if other, err := s.repo.GetByTitle(ctx, ownerID, in.Title); err == nil && other.ID != id {
			return Task{}, ErrTaskExists
		} else if err != nil && !errors.Is(err, ErrTaskNotFound) {
			return Task{}, err
		}
	}
	existing.Title = in.Title
	existing.Description = in.Description
	existing.DueDate = DateOnly(in.DueDate)
	return s.repo.Update(ctx, existing)
}

// Delete removes one of the owner's tasks.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Complete marks a task done.
func (s *Service) Complete(ctx context.Context, ownerID, id string) (Task, error) {
	return s.repo.Complete(ctx, ownerID, id)
}

// ListCompleted returns the owner's finished tasks.
func (s *Service) ListCompleted(ctx context.Context, ownerID string) ([]Task, error) {
	return s.repo.ListCompleted(ctx, ownerID)
}

// DueToday returns the owner's unfinished tasks due on the current
// calendar date (UTC).
func (s *Service) DueToday(ctx context.Context, ownerID string) ([]Task, error) {
	return s.repo.ListDueOn(ctx, ownerID, DateOnly(s.now()))
}
