package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adeilh/taskdo/task"
)

// TaskRepository implements task.Repository on PostgreSQL.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository wraps an existing *sql.DB connection.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, owner_id, title, description, due_date, done, created_at`

func (r *TaskRepository) Create(ctx context.Context, t task.Task) (task.Task, error) {
	const query = `INSERT INTO tasks (id, owner_id, title, description, due_date, done, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.OwnerID, t.Title, t.Description, nullDate(t.DueDate), t.Done, t.CreatedAt)
	if err != nil {
		return task.Task{}, translateTaskError(err)
	}
	return t, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, id string) (task.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND id = $2`
	return scanTask(r.db.QueryRowContext(ctx, query, ownerID, id))
}

func (r *TaskRepository) GetByTitle(ctx context.Context, ownerID, title string) (task.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND title = $2`
	return scanTask(r.db.QueryRowContext(ctx, query, ownerID, title))
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY created_at`
	return r.list(ctx, query, ownerID)
}

func (r *TaskRepository) Update(ctx context.Context, t task.Task) (task.Task, error) {
	const query = `UPDATE tasks SET title = $3, description = $4, due_date = $5, done = $6
                   WHERE owner_id = $1 AND id = $2
                   RETURNING ` + taskColumns
	return scanTask(r.db.QueryRowContext(ctx, query,
		t.OwnerID, t.ID, t.Title, t.Description, nullDate(t.DueDate), t.Done))
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM tasks WHERE owner_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return translateTaskError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return task.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) Complete(ctx context.Context, ownerID, id string) (task.Task, error) {
	const query = `UPDATE tasks SET done = TRUE WHERE owner_id = $1 AND id = $2
                   RETURNING ` + taskColumns
	return scanTask(r.db.QueryRowContext(ctx, query, ownerID, id))
}

func (r *TaskRepository) ListCompleted(ctx context.Context, ownerID string) ([]task.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND done ORDER BY created_at`
	return r.list(ctx, query, ownerID)
}

func (r *TaskRepository) ListDueOn(ctx context.Context, ownerID string, date time.Time) ([]task.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks
                   WHERE owner_id = $1 AND NOT done AND due_date = $2 ORDER BY created_at`
	return r.list(ctx, query, ownerID, task.DateOnly(date))
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateTaskError(err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row *sql.Row) (task.Task, error) {
	t, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, task.ErrTaskNotFound
		}
		return task.Task{}, translateTaskError(err)
	}
	return t, nil
}

func scanTaskRow(row rowScanner) (task.Task, error) {
	var (
		t   task.Task
		due sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &due, &t.Done, &t.CreatedAt); err != nil {
		return task.Task{}, err
	}
	if due.Valid {
		t.DueDate = task.DateOnly(due.Time)
	}
	return t, nil
}

func nullDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func translateTaskError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return task.ErrTaskExists
		case "22P02":
			return task.ErrTaskNotFound
		}
	}
	return err
}
