package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for tests and single-node
// development setups.
type MemoryRepository struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[string]Task)}
}

func (r *MemoryRepository) Create(ctx context.Context, t Task) (Task, error) {
	if err := contextError(ctx); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tasks {
		if existing.OwnerID == t.OwnerID && existing.Title == t.Title {
			return Task{}, ErrTaskExists
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, id string) (Task, error) {
	if err := contextError(ctx); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (r *MemoryRepository) GetByTitle(ctx context.Context, ownerID, title string) (Task, error) {
	if err := contextError(ctx); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && t.Title == title {
			return t, nil
		}
	}
	return Task{}, ErrTaskNotFound
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]Task, error) {
	return r.list(ctx, ownerID, func(Task) bool { return true })
}

func (r *MemoryRepository) Update(ctx context.Context, t Task) (Task, error) {
	if err := contextError(ctx); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[t.ID]
	if !ok || existing.OwnerID != t.OwnerID {
		return Task{}, ErrTaskNotFound
	}
	existing.Title = t.Title
	existing.Description = t.Description
	existing.DueDate = t.DueDate
	existing.Done = t.Done
	r.tasks[t.ID] = existing
	return existing, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryRepository) Complete(ctx context.Context, ownerID, id string) (Task, error) {
	if err := contextError(ctx); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return Task{}, ErrTaskNotFound
	}
	t.Done = true
	r.tasks[id] = t
	return t, nil
}

func (r *MemoryRepository) ListCompleted(ctx context.Context, ownerID string) ([]Task, error) {
	return r.list(ctx, ownerID, func(t Task) bool { return t.Done })
}

func (r *MemoryRepository) ListDueOn(ctx context.Context, ownerID string, date time.Time) ([]Task, error) {
	date = DateOnly(date)
	return r.list(ctx, ownerID, func(t Task) bool {
		return !t.Done && t.DueDate.Equal(date)
	})
}

func (r *MemoryRepository) list(ctx context.Context, ownerID string, keep func(Task) bool) ([]Task, error) {
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
